package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medassist/internal/store"
	"medassist/internal/ui"
	"medassist/pkg/logx"
)

// DefaultSnoozeMinutes is used when a snooze request carries no
// duration.
const DefaultSnoozeMinutes = 5

// OnceScheduler arms one-shot re-fire timers.
type OnceScheduler interface {
	AddOnce(name string, at time.Time, job func(ctx context.Context) error) error
	Remove(name string) bool
}

// Redeliver re-presents a snoozed reminder when its window elapses.
// Bound late (see BindRedeliver) because delivery lives a layer above.
type Redeliver func(ctx context.Context, c store.Confirmation)

// Service applies user responses to presented reminders: it drives the
// tracker state machine, persists the outcome best-effort, updates the
// UI, and arms the snooze re-fire timer.
type Service struct {
	tracker *Tracker
	records *Records
	hub     *ui.Hub
	tasks   OnceScheduler
	log     logx.Logger

	redeliver     Redeliver
	now           func() time.Time
	defaultSnooze int
}

func NewService(tracker *Tracker, records *Records, hub *ui.Hub, tasks OnceScheduler, log logx.Logger) *Service {
	return &Service{
		tracker:       tracker,
		records:       records,
		hub:           hub,
		tasks:         tasks,
		log:           log,
		now:           time.Now,
		defaultSnooze: DefaultSnoozeMinutes,
	}
}

// SetDefaultSnooze overrides the snooze window used when a request
// carries no duration.
func (s *Service) SetDefaultSnooze(minutes int) {
	if minutes > 0 {
		s.defaultSnooze = minutes
	}
}

// DefaultSnooze reports the effective default snooze window in minutes.
func (s *Service) DefaultSnooze() int { return s.defaultSnooze }

// BindRedeliver installs the re-delivery hook. Must be called before
// Snooze or RearmSnoozed.
func (s *Service) BindRedeliver(fn Redeliver) { s.redeliver = fn }

// SetNow injects a clock for tests.
func (s *Service) SetNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Confirm resolves a pending reminder as taken. The confirmation is
// acknowledged locally whether or not the record update lands.
func (s *Service) Confirm(ctx context.Context, confirmationID string) error {
	p, err := s.tracker.Confirm(confirmationID)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknown):
		// Response for a reminder we no longer track (restart, prune, or
		// a push tap from a previous run). Record it anyway.
		s.records.MarkTaken(ctx, confirmationID)
		s.clearOverlayFor(confirmationID)
		return nil
	default:
		return err
	}

	s.records.MarkTaken(ctx, confirmationID)
	s.tasks.Remove(snoozeTask(confirmationID))
	s.clearOverlayFor(confirmationID)
	s.hub.AppendBot(fmt.Sprintf("Great! I've marked %s as taken. ✅", p.Name))
	s.log.Info("dose confirmed", logx.String("name", p.Name), logx.String("id", confirmationID))
	return nil
}

// Snooze resolves a pending reminder as snoozed and arms a one-shot
// re-delivery. The record update is best-effort: a storage failure is
// swallowed so the overlay still clears and the timer still arms.
func (s *Service) Snooze(ctx context.Context, confirmationID string, minutes int) error {
	if minutes <= 0 {
		minutes = s.defaultSnooze
	}

	p, err := s.tracker.Snooze(confirmationID)
	if err != nil && !errors.Is(err, ErrUnknown) {
		return err
	}
	known := err == nil

	// Capture enough to re-present without the store.
	c := store.Confirmation{
		ID:            confirmationID,
		EntryID:       p.EntryID,
		Name:          p.Name,
		ScheduledTime: p.Time,
		Status:        store.StatusSnoozed,
	}
	if !known {
		// Snooze for a reminder we no longer track (restart, or a push
		// tap from a previous run). Re-arm only from the stored record;
		// an id with no record must not produce a re-delivery.
		cur, err := s.records.Get(ctx, confirmationID)
		if err != nil || cur.Status == store.StatusTaken {
			s.log.Debug("snooze ignored for unknown confirmation", logx.String("id", confirmationID))
			s.clearOverlayFor(confirmationID)
			return nil
		}
		cur.Status = store.StatusSnoozed
		c = cur
	}

	until := s.now().Add(time.Duration(minutes) * time.Minute)
	s.records.MarkSnoozed(ctx, confirmationID, until)
	s.armRefire(c, until)

	s.clearOverlayFor(confirmationID)
	if known {
		s.hub.AppendBot(fmt.Sprintf("⏰ Okay, I'll remind you about %s again in %d minutes.", p.Name, minutes))
		s.log.Info("dose snoozed", logx.String("name", p.Name), logx.Int("minutes", minutes))
	}
	return nil
}

// RearmSnoozed restores re-fire timers for today's snoozed records
// after a restart. Windows that already elapsed fire immediately.
func (s *Service) RearmSnoozed(ctx context.Context) {
	now := s.now()
	snoozed, err := s.records.Snoozed(ctx, now)
	if err != nil {
		s.log.Warn("snoozed records load failed", logx.Err(err))
		return
	}
	for _, c := range snoozed {
		until := minuteToday(now, c.SnoozeUntil)
		if until.IsZero() {
			continue
		}
		s.armRefire(c, until)
	}
	if len(snoozed) > 0 {
		s.log.Info("snooze timers re-armed", logx.Int("count", len(snoozed)))
	}
}

func (s *Service) armRefire(c store.Confirmation, until time.Time) {
	err := s.tasks.AddOnce(snoozeTask(c.ID), until, func(ctx context.Context) error {
		s.fireSnoozed(ctx, c)
		return nil
	})
	if err != nil {
		s.log.Error("snooze timer arm failed", logx.String("id", c.ID), logx.Err(err))
	}
}

func (s *Service) fireSnoozed(ctx context.Context, c store.Confirmation) {
	// The window may have been resolved in the meantime (confirm from
	// another surface). Skip re-delivery if so.
	if s.records.Persistent() {
		cur, err := s.records.Get(ctx, c.ID)
		if err == nil {
			if cur.Status != store.StatusSnoozed {
				return
			}
			c = cur
		}
	}
	s.records.MarkResent(ctx, c.ID)
	if s.redeliver != nil {
		s.redeliver(ctx, c)
	}
}

func (s *Service) clearOverlayFor(confirmationID string) {
	if o, ok := s.hub.Overlay(); ok && o.ConfirmationID == confirmationID {
		s.hub.ClearOverlay()
	}
}

func snoozeTask(id string) string { return "snooze-refire:" + id }

// minuteToday interprets an "HH:MM" minute key on now's date. Returns
// zero time if the key does not parse.
func minuteToday(now time.Time, hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
}
