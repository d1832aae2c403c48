package httpapi

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEventsStreamSendsInitialSnapshot(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	f.hub.AppendBot("hello")

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest("GET", "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.handler.ServeHTTP(w, r)
	}()

	// Give the handler a moment to write the snapshot, then disconnect.
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after disconnect")
	}

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: ui.state") {
		t.Fatalf("missing initial snapshot event:\n%s", body)
	}
	if !strings.Contains(body, "hello") {
		t.Fatalf("snapshot missing chat log:\n%s", body)
	}
}
