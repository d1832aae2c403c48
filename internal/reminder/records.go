package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"medassist/internal/schedule"
	"medassist/internal/store"
	"medassist/pkg/logx"
)

// RecordStore is the slice of the store the reminder core needs.
type RecordStore interface {
	RecordSent(ctx context.Context, c store.Confirmation) (store.Confirmation, bool, error)
	GetConfirmation(ctx context.Context, id string) (store.Confirmation, error)
	SetConfirmationStatus(ctx context.Context, id, status, snoozeUntil string) error
	ListSnoozed(ctx context.Context, date string) ([]store.Confirmation, error)
	PruneConfirmations(ctx context.Context, beforeDate string) (int64, error)
}

// Records mediates confirmation persistence. With no store configured
// it degrades to ephemeral ids: reminders still present and resolve in
// memory, nothing survives a restart.
type Records struct {
	db  RecordStore // nil when storage is disabled
	log logx.Logger
}

func NewRecords(db RecordStore, log logx.Logger) *Records {
	return &Records{db: db, log: log}
}

func (r *Records) Persistent() bool { return r.db != nil }

// RecordSent creates (or finds) the confirmation record for a fired
// dose. created=false means this (entry, time, date) slot already
// fired, so the caller must not push again.
func (r *Records) RecordSent(ctx context.Context, e schedule.Entry, at time.Time) (store.Confirmation, bool, error) {
	c := store.Confirmation{
		EntryID:       e.ID,
		Name:          e.Name,
		ScheduledTime: schedule.MinuteKey(at),
		Date:          schedule.DateKey(at),
		Status:        store.StatusSent,
		SentAt:        at,
	}
	if r.db == nil {
		c.ID = uuid.NewString()
		return c, true, nil
	}
	return r.db.RecordSent(ctx, c)
}

func (r *Records) Get(ctx context.Context, id string) (store.Confirmation, error) {
	if r.db == nil {
		return store.Confirmation{}, store.ErrNotFound
	}
	return r.db.GetConfirmation(ctx, id)
}

// MarkTaken records the confirm. Best-effort: persistence failure is
// logged, never surfaced, so the in-app flow stays responsive.
func (r *Records) MarkTaken(ctx context.Context, id string) {
	if r.db == nil {
		return
	}
	if err := r.db.SetConfirmationStatus(ctx, id, store.StatusTaken, ""); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.Warn("confirmation update failed", logx.String("id", id), logx.Err(err))
	}
}

// MarkSnoozed records the snooze target minute. Best-effort like
// MarkTaken; the in-memory re-fire timer is armed regardless.
func (r *Records) MarkSnoozed(ctx context.Context, id string, until time.Time) {
	if r.db == nil {
		return
	}
	if err := r.db.SetConfirmationStatus(ctx, id, store.StatusSnoozed, schedule.MinuteKey(until)); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.Warn("snooze update failed", logx.String("id", id), logx.Err(err))
	}
}

// MarkResent flips a snoozed record back to sent when its re-fire
// delivers.
func (r *Records) MarkResent(ctx context.Context, id string) {
	if r.db == nil {
		return
	}
	if err := r.db.SetConfirmationStatus(ctx, id, store.StatusSent, ""); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.Warn("re-sent update failed", logx.String("id", id), logx.Err(err))
	}
}

// Snoozed lists today's snoozed records (used to re-arm timers after a
// restart).
func (r *Records) Snoozed(ctx context.Context, now time.Time) ([]store.Confirmation, error) {
	if r.db == nil {
		return nil, nil
	}
	return r.db.ListSnoozed(ctx, schedule.DateKey(now))
}

// Prune removes confirmation records older than the retention window.
func (r *Records) Prune(ctx context.Context, now time.Time, retentionDays int) (int64, error) {
	if r.db == nil || retentionDays <= 0 {
		return 0, nil
	}
	cutoff := schedule.DateKey(now.AddDate(0, 0, -retentionDays))
	return r.db.PruneConfirmations(ctx, cutoff)
}
