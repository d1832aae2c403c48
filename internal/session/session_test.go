package session

import (
	"testing"

	"medassist/internal/eventbus"
)

func TestSetActivePublishesOnlyOnChange(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	m := NewManager(bus)
	if m.Active() {
		t.Fatal("session starts active")
	}

	m.SetActive(true)
	m.SetActive(true) // unchanged, no second event
	if !m.Active() {
		t.Fatal("session not active")
	}

	var events int
	for {
		select {
		case ev := <-ch:
			if ev.Type != eventbus.TypeSessionChanged || ev.Data != true {
				t.Fatalf("event = %+v", ev)
			}
			events++
			continue
		default:
		}
		break
	}
	if events != 1 {
		t.Fatalf("got %d session.changed events, want 1", events)
	}

	m.SetActive(false)
	select {
	case ev := <-ch:
		if ev.Data != false {
			t.Fatalf("event = %+v", ev)
		}
	default:
		t.Fatal("no event for deactivation")
	}
}
