package ui

import (
	"fmt"
	"strings"
	"testing"

	"medassist/internal/eventbus"
)

func TestOverlayLastWriteWins(t *testing.T) {
	t.Parallel()
	h := NewHub(nil)

	h.SetOverlay(Overlay{ConfirmationID: "c1", Name: "Aspirin", Time: "08:00"})
	h.SetOverlay(Overlay{ConfirmationID: "c2", Name: "B12", Time: "08:00"})

	o, ok := h.Overlay()
	if !ok || o.ConfirmationID != "c2" {
		t.Fatalf("overlay = %+v, ok=%v", o, ok)
	}

	h.ClearOverlay()
	if _, ok := h.Overlay(); ok {
		t.Fatal("overlay not cleared")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	h := NewHub(nil)
	h.AppendBot("hello")
	h.SetOverlay(Overlay{ConfirmationID: "c1", Name: "Aspirin"})

	st := h.Snapshot()
	st.Messages[0].Text = "mutated"
	st.Overlay.Name = "mutated"

	again := h.Snapshot()
	if again.Messages[0].Text != "hello" {
		t.Fatal("snapshot shares the message slice")
	}
	if again.Overlay.Name != "Aspirin" {
		t.Fatal("snapshot shares the overlay")
	}
}

func TestMessageLogBounded(t *testing.T) {
	t.Parallel()
	h := NewHub(nil)
	for i := 0; i < maxMessages+25; i++ {
		h.AppendBot(fmt.Sprintf("msg %d", i))
	}
	st := h.Snapshot()
	if len(st.Messages) != maxMessages {
		t.Fatalf("retained %d messages, want %d", len(st.Messages), maxMessages)
	}
	if st.Messages[len(st.Messages)-1].Text != fmt.Sprintf("msg %d", maxMessages+24) {
		t.Fatalf("last message = %q", st.Messages[len(st.Messages)-1].Text)
	}
}

func TestMutationsPublishState(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	h := NewHub(bus)
	h.SetPushStatus("active")

	select {
	case ev := <-ch:
		if ev.Type != eventbus.TypeUIState {
			t.Fatalf("event type = %s", ev.Type)
		}
		st, ok := ev.Data.(State)
		if !ok || st.PushStatus != "active" {
			t.Fatalf("event data = %+v", ev.Data)
		}
	default:
		t.Fatal("no ui.state event")
	}
}

func TestLogLineAppearsAsSystemMessage(t *testing.T) {
	t.Parallel()
	h := NewHub(nil)
	h.LogLine("warn", "storage degraded")

	st := h.Snapshot()
	if len(st.Messages) != 1 || st.Messages[0].Sender != SenderSystem {
		t.Fatalf("messages = %+v", st.Messages)
	}
	if !strings.Contains(st.Messages[0].Text, "storage degraded") {
		t.Fatalf("text = %q", st.Messages[0].Text)
	}
}
