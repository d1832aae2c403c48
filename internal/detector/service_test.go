package detector

import (
	"context"
	"sync"
	"testing"
	"time"

	"medassist/internal/eventbus"
	"medassist/internal/schedule"
	"medassist/pkg/logx"
)

type fakeSession struct{ active bool }

func (f *fakeSession) Active() bool { return f.active }

type fakeTasks struct {
	mu   sync.Mutex
	jobs map[string]func(ctx context.Context) error
}

func newFakeTasks() *fakeTasks { return &fakeTasks{jobs: map[string]func(ctx context.Context) error{}} }

func (f *fakeTasks) AddInterval(name string, every time.Duration, job func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[name] = job
	return nil
}

func (f *fakeTasks) Remove(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[name]
	delete(f.jobs, name)
	return ok
}

func (f *fakeTasks) Has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[name]
	return ok
}

func (f *fakeTasks) run(name string) {
	f.mu.Lock()
	job := f.jobs[name]
	f.mu.Unlock()
	if job != nil {
		_ = job(context.Background())
	}
}

type captureSink struct {
	mu  sync.Mutex
	got []DueEvent
}

func (c *captureSink) Dispatch(ctx context.Context, ev DueEvent) {
	c.mu.Lock()
	c.got = append(c.got, ev)
	c.mu.Unlock()
}

type listStore struct{ entries []schedule.Entry }

func (l *listStore) ListEntries(ctx context.Context) ([]schedule.Entry, error) {
	return append([]schedule.Entry(nil), l.entries...), nil
}
func (l *listStore) CreateEntry(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	l.entries = append(l.entries, e)
	return e, nil
}
func (l *listStore) UpdateEntry(ctx context.Context, e schedule.Entry) error { return nil }
func (l *listStore) DeleteEntry(ctx context.Context, id string) error        { return nil }

func TestReconsiderPredicates(t *testing.T) {
	t.Parallel()
	st := &listStore{entries: []schedule.Entry{
		{ID: "a", Name: "Aspirin", Time: "08:00", Days: schedule.EveryDay()},
	}}
	repo := schedule.NewRepository(st, logx.Nop(), nil)
	repo.Refresh(context.Background())

	sess := &fakeSession{}
	tasks := newFakeTasks()
	svc := NewService(repo, sess, tasks, &captureSink{}, logx.Nop(), nil, time.Second)

	// No session: polling stays down even with a non-empty schedule.
	svc.Reconsider()
	if tasks.Has(taskName) {
		t.Fatal("polling registered without an active session")
	}

	sess.active = true
	svc.Reconsider()
	if !tasks.Has(taskName) {
		t.Fatal("polling not registered with active session and entries")
	}

	// Empty schedule tears it down again.
	st.entries = nil
	repo.Refresh(context.Background())
	svc.Reconsider()
	if tasks.Has(taskName) {
		t.Fatal("polling kept with an empty schedule")
	}
}

func TestTickDispatchesAndPublishes(t *testing.T) {
	t.Parallel()
	st := &listStore{entries: []schedule.Entry{
		{ID: "a", Name: "Aspirin", Time: "08:00", Days: schedule.EveryDay()},
	}}
	repo := schedule.NewRepository(st, logx.Nop(), nil)
	repo.Refresh(context.Background())

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	sink := &captureSink{}
	tasks := newFakeTasks()
	svc := NewService(repo, &fakeSession{active: true}, tasks, sink, logx.Nop(), bus, time.Second)
	svc.SetNow(func() time.Time { return time.Date(2024, 1, 1, 8, 0, 5, 0, time.UTC) })

	svc.Reconsider()
	tasks.run(taskName)
	tasks.run(taskName) // same minute, no second dispatch

	if len(sink.got) != 1 {
		t.Fatalf("expected 1 dispatched dose, got %d", len(sink.got))
	}
	if sink.got[0].MinuteKey != "08:00" {
		t.Fatalf("MinuteKey = %q", sink.got[0].MinuteKey)
	}

	select {
	case ev := <-ch:
		if ev.Type != eventbus.TypeDoseDue {
			t.Fatalf("event type = %s", ev.Type)
		}
	default:
		t.Fatal("expected dose.due event")
	}
}
