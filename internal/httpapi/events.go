package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"medassist/internal/eventbus"
)

// handleEvents streams bus events as server-sent events. Slow readers
// miss events rather than stall publishers (the subscription buffer
// drops on overflow).
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, unsub := s.bus.Subscribe(64)
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Initial snapshot so a fresh client can render immediately.
	writeSSE(w, eventbus.TypeUIState, s.hub.Snapshot())
	fl.Flush()

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			fl.Flush()
		case ev, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, ev.Type, ev.Data)
			fl.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		b = []byte("{}")
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
}
