package dispatch

import (
	"context"
	"strings"
	"testing"
	"time"

	"medassist/internal/detector"
	"medassist/internal/reminder"
	"medassist/internal/schedule"
	"medassist/internal/store"
	"medassist/internal/ui"
	"medassist/pkg/logx"
)

type fakeOSN struct {
	granted bool
	shown   []string
}

func (f *fakeOSN) Granted() bool { return f.granted }
func (f *fakeOSN) Show(title, body string) error {
	f.shown = append(f.shown, title+": "+body)
	return nil
}

func dueAt(name string) detector.DueEvent {
	return detector.DueEvent{
		Entry:     schedule.Entry{ID: "e1", Name: name, Time: "08:00", Days: schedule.EveryDay()},
		MinuteKey: "08:00",
		At:        time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func startedQueue(t *testing.T, ad *fakeAdapter) *PushQueue {
	t.Helper()
	q := NewPushQueue(PushConfig{Enabled: true, RatePerSec: 100}, ad, logx.Nop(), nil)
	q.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		q.Stop(ctx)
	})
	return q
}

func TestDispatchFanOut(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	if err := mem.SavePushLink(context.Background(), store.PushLink{ChatID: 42, LinkedAt: time.Now()}); err != nil {
		t.Fatalf("SavePushLink error: %v", err)
	}

	tracker := reminder.NewTracker()
	records := reminder.NewRecords(mem, logx.Nop())
	hub := ui.NewHub(nil)
	osn := &fakeOSN{granted: true}
	ad := newFakeAdapter()
	q := startedQueue(t, ad)

	svc := NewService(records, tracker, hub, osn, q, mem, logx.Nop())
	svc.Dispatch(context.Background(), dueAt("Aspirin"))

	// Chat log and overlay.
	st := hub.Snapshot()
	if len(st.Messages) != 1 || !strings.Contains(st.Messages[0].Text, "Time to take Aspirin (08:00)") {
		t.Fatalf("messages = %+v", st.Messages)
	}
	if st.Overlay == nil || st.Overlay.Name != "Aspirin" || st.Overlay.Title != "Medication Reminder" {
		t.Fatalf("overlay = %+v", st.Overlay)
	}

	// Tracker entry under the record's confirmation id.
	if _, ok := tracker.Get(st.Overlay.ConfirmationID); !ok {
		t.Fatal("due dose not tracked")
	}

	// OS notification.
	if len(osn.shown) != 1 {
		t.Fatalf("os notifications = %v", osn.shown)
	}

	// Push delivered with the reminder payload.
	waitFor(t, ad.delivered, "push delivery")
	if ad.sent[0].Title != "Medication Reminder" || ad.sent[0].ID != st.Overlay.ConfirmationID {
		t.Fatalf("push payload = %+v", ad.sent[0])
	}
}

func TestDispatchSuppressesPushForRepeatSlot(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	if err := mem.SavePushLink(context.Background(), store.PushLink{ChatID: 42, LinkedAt: time.Now()}); err != nil {
		t.Fatalf("SavePushLink error: %v", err)
	}

	tracker := reminder.NewTracker()
	records := reminder.NewRecords(mem, logx.Nop())
	hub := ui.NewHub(nil)
	ad := newFakeAdapter()
	q := startedQueue(t, ad)

	svc := NewService(records, tracker, hub, nil, q, mem, logx.Nop())
	svc.Dispatch(context.Background(), dueAt("Aspirin"))
	waitFor(t, ad.delivered, "first push")

	// Same slot again (e.g. after a restart inside the minute): still
	// presented locally, but no second push.
	svc.Dispatch(context.Background(), dueAt("Aspirin"))

	st := hub.Snapshot()
	if len(st.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(st.Messages))
	}
	time.Sleep(50 * time.Millisecond)
	if ad.sentCount() != 1 {
		t.Fatalf("pushes = %d, want 1", ad.sentCount())
	}
}

func TestDispatchSkipsPushWithoutLink(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	tracker := reminder.NewTracker()
	records := reminder.NewRecords(mem, logx.Nop())
	hub := ui.NewHub(nil)
	ad := newFakeAdapter()
	q := startedQueue(t, ad)

	svc := NewService(records, tracker, hub, nil, q, mem, logx.Nop())
	svc.Dispatch(context.Background(), dueAt("Aspirin"))

	if _, ok := hub.Overlay(); !ok {
		t.Fatal("overlay missing")
	}
	time.Sleep(50 * time.Millisecond)
	if ad.sentCount() != 0 {
		t.Fatalf("pushed %d without a link", ad.sentCount())
	}
}

func TestDispatchPresentsWithoutStore(t *testing.T) {
	t.Parallel()
	// No store, no queue, no links: presentation must still happen.
	records := reminder.NewRecords(nil, logx.Nop())
	tracker := reminder.NewTracker()
	hub := ui.NewHub(nil)

	svc := NewService(records, tracker, hub, nil, nil, nil, logx.Nop())
	svc.Dispatch(context.Background(), dueAt("Aspirin"))

	if _, ok := hub.Overlay(); !ok {
		t.Fatal("overlay missing")
	}
	st := hub.Snapshot()
	if len(st.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(st.Messages))
	}
}

func TestRedeliverPushesAgain(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	if err := mem.SavePushLink(context.Background(), store.PushLink{ChatID: 42, LinkedAt: time.Now()}); err != nil {
		t.Fatalf("SavePushLink error: %v", err)
	}

	tracker := reminder.NewTracker()
	records := reminder.NewRecords(mem, logx.Nop())
	hub := ui.NewHub(nil)
	ad := newFakeAdapter()
	q := startedQueue(t, ad)

	svc := NewService(records, tracker, hub, nil, q, mem, logx.Nop())
	svc.Dispatch(context.Background(), dueAt("Aspirin"))
	waitFor(t, ad.delivered, "first push")

	o, _ := hub.Overlay()
	svc.Redeliver(context.Background(), store.Confirmation{
		ID: o.ConfirmationID, EntryID: "e1", Name: "Aspirin", ScheduledTime: "08:00",
	})
	waitFor(t, ad.delivered, "re-delivery push")
	if ad.sentCount() != 2 {
		t.Fatalf("pushes = %d, want 2", ad.sentCount())
	}

	// Re-presented as pending: a confirm works again.
	if _, err := tracker.Confirm(o.ConfirmationID); err != nil {
		t.Fatalf("Confirm after redeliver error: %v", err)
	}
}
