package eventbus

import (
	"testing"
)

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypeDoseDue, Data: "Aspirin"})

	select {
	case ev := <-ch:
		if ev.Type != TypeDoseDue || ev.Data != "Aspirin" {
			t.Fatalf("event = %+v", ev)
		}
		if ev.Time.IsZero() {
			t.Fatal("Publish did not stamp the event time")
		}
	default:
		t.Fatal("event not delivered")
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeDoseDue, Data: 1})
	b.Publish(Event{Type: TypeDoseDue, Data: 2}) // buffer full, dropped

	ev := <-ch
	if ev.Data != 1 {
		t.Fatalf("first event data = %v", ev.Data)
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event: %+v", ev)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub() // idempotent

	if _, ok := <-ch; ok {
		t.Fatal("channel not closed")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: TypeDoseDue})
}

func TestFanOut(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(1)
	defer unsubA()
	c, unsubC := b.Subscribe(1)
	defer unsubC()

	b.Publish(Event{Type: TypeScheduleChanged})
	if ev := <-a; ev.Type != TypeScheduleChanged {
		t.Fatalf("subscriber a got %+v", ev)
	}
	if ev := <-c; ev.Type != TypeScheduleChanged {
		t.Fatalf("subscriber c got %+v", ev)
	}
}
