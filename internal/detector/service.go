package detector

import (
	"context"
	"time"

	"medassist/internal/eventbus"
	"medassist/internal/schedule"
	"medassist/pkg/logx"
)

const taskName = "dose-detector"

// Sink receives due doses as they are detected.
type Sink interface {
	Dispatch(ctx context.Context, ev DueEvent)
}

// TaskScheduler is the slice of the sched service the detector uses.
type TaskScheduler interface {
	AddInterval(name string, every time.Duration, job func(ctx context.Context) error) error
	Remove(name string) bool
	Has(name string) bool
}

// SessionState reports whether a user session is active.
type SessionState interface {
	Active() bool
}

// Service owns the polling task: it keeps the 10-second evaluation
// registered while (session active && schedule non-empty) and removes
// it the moment either predicate flips, so idle sessions consume
// nothing and repeated session changes never leak timers.
type Service struct {
	det   Detector
	repo  *schedule.Repository
	sess  SessionState
	tasks TaskScheduler
	sink  Sink
	log   logx.Logger
	bus   eventbus.Bus

	interval time.Duration
	now      func() time.Time

	unsub func()
}

func NewService(repo *schedule.Repository, sess SessionState, tasks TaskScheduler, sink Sink, log logx.Logger, bus eventbus.Bus, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Service{
		repo:     repo,
		sess:     sess,
		tasks:    tasks,
		sink:     sink,
		log:      log,
		bus:      bus,
		interval: interval,
		now:      time.Now,
	}
}

// SetNow injects a clock for tests.
func (s *Service) SetNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Start applies the predicates once and then follows schedule/session
// changes from the bus.
func (s *Service) Start(ctx context.Context) {
	s.Reconsider()

	ch, unsub := s.bus.Subscribe(16)
	s.unsub = unsub
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				switch ev.Type {
				case eventbus.TypeScheduleChanged, eventbus.TypeSessionChanged:
					s.Reconsider()
				}
			}
		}
	}()
}

func (s *Service) Stop() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.tasks.Remove(taskName)
	s.det.Reset()
}

// Reconsider registers or removes the polling task per the predicates.
func (s *Service) Reconsider() {
	want := s.sess.Active() && s.repo.Len() > 0
	have := s.tasks.Has(taskName)
	switch {
	case want && !have:
		if err := s.tasks.AddInterval(taskName, s.interval, s.tick); err != nil {
			s.log.Error("detector task register failed", logx.Err(err))
			return
		}
		s.log.Info("due-dose polling started", logx.Duration("every", s.interval))
	case !want && have:
		s.tasks.Remove(taskName)
		s.det.Reset()
		s.log.Info("due-dose polling stopped")
	}
}

// tick is one detection pass.
func (s *Service) tick(ctx context.Context) error {
	now := s.now()
	due := s.det.Evaluate(s.repo.Entries(), now)
	for _, ev := range due {
		s.log.Debug("dose due", logx.String("name", ev.Entry.Name), logx.String("minute", ev.MinuteKey))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeDoseDue, Time: now, Data: ev.Entry.Name})
		}
		s.sink.Dispatch(ctx, ev)
	}
	return nil
}
