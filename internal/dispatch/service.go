package dispatch

import (
	"context"
	"fmt"
	"time"

	"medassist/internal/detector"
	"medassist/internal/reminder"
	"medassist/internal/store"
	"medassist/internal/transport"
	"medassist/internal/ui"
	"medassist/pkg/logx"
)

const reminderTitle = "Medication Reminder"

// Service is the delivery fan-out. One due dose becomes a chat
// message, the active overlay, an OS notification (if permitted), and
// a queued push (if a target is linked and this is the slot's first
// delivery).
type Service struct {
	records *reminder.Records
	tracker *reminder.Tracker
	hub     *ui.Hub
	osn     OSNotifier // nil when unavailable
	queue   *PushQueue
	links   LinkSource // nil when storage is disabled
	log     logx.Logger
}

func NewService(records *reminder.Records, tracker *reminder.Tracker, hub *ui.Hub, osn OSNotifier, queue *PushQueue, links LinkSource, log logx.Logger) *Service {
	return &Service{
		records: records,
		tracker: tracker,
		hub:     hub,
		osn:     osn,
		queue:   queue,
		links:   links,
		log:     log,
	}
}

// Dispatch delivers one due dose. Implements the detector sink.
func (s *Service) Dispatch(ctx context.Context, ev detector.DueEvent) {
	rec, created, err := s.records.RecordSent(ctx, ev.Entry, ev.At)
	if err != nil {
		// Present anyway; a storage hiccup must not hide the reminder.
		// Push is skipped: without the record, re-delivery dedup is gone.
		s.log.Warn("confirmation record failed", logx.String("name", ev.Entry.Name), logx.Err(err))
		rec = store.Confirmation{
			EntryID:       ev.Entry.ID,
			Name:          ev.Entry.Name,
			ScheduledTime: ev.MinuteKey,
			SentAt:        ev.At,
		}
		created = false
	}

	s.present(rec, ev.At)

	if created {
		s.push(ctx, rec)
	}
}

// Redeliver re-presents a snoozed reminder whose window elapsed.
// The push channel fires again here: re-delivery is the point.
func (s *Service) Redeliver(ctx context.Context, c store.Confirmation) {
	s.present(c, time.Now())
	s.push(ctx, c)
}

func (s *Service) present(c store.Confirmation, at time.Time) {
	if c.ID != "" {
		s.tracker.Present(c.ID, c.EntryID, c.Name, c.ScheduledTime, at)
	}

	body := fmt.Sprintf("Time to take %s (%s)", c.Name, c.ScheduledTime)
	s.hub.AppendBot("💊 " + body)
	s.hub.SetOverlay(ui.Overlay{
		ConfirmationID: c.ID,
		Name:           c.Name,
		Time:           c.ScheduledTime,
		Title:          reminderTitle,
	})

	if s.osn != nil && s.osn.Granted() {
		if err := s.osn.Show(reminderTitle, body); err != nil {
			s.log.Debug("os notification failed", logx.Err(err))
		}
	}
}

func (s *Service) push(ctx context.Context, c store.Confirmation) {
	if s.queue == nil || !s.queue.Enabled() || s.links == nil || c.ID == "" {
		return
	}
	link, ok, err := s.links.GetPushLink(ctx)
	if err != nil {
		s.log.Warn("push link lookup failed", logx.Err(err))
		return
	}
	if !ok {
		return
	}
	p := transport.Payload{
		ID:    c.ID,
		Name:  c.Name,
		Title: reminderTitle,
		Body:  fmt.Sprintf("Time to take %s (%s)", c.Name, c.ScheduledTime),
		Time:  c.ScheduledTime,
	}
	if err := s.queue.Enqueue(transport.Target{ChatID: link.ChatID}, p); err != nil {
		s.log.Warn("push enqueue failed", logx.String("name", c.Name), logx.Err(err))
	}
}

var _ detector.Sink = (*Service)(nil)
