package store

import (
	"context"
	"errors"
	"time"

	"medassist/internal/schedule"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("storage: not found")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//
// If Driver is "none", storage is disabled and every call returns
// ErrDisabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Confirmation statuses. A record is created as "sent" when a dose
// fires, and moves to "taken" or "snoozed" on user action. A snoozed
// record flips back to "sent" when its snooze window elapses.
const (
	StatusSent    = "sent"
	StatusTaken   = "taken"
	StatusSnoozed = "snoozed"
)

// Confirmation links a delivered reminder to its server-side record.
// Keyed at-most-once per (entry, scheduled time, date).
type Confirmation struct {
	ID            string
	EntryID       string
	Name          string
	ScheduledTime string // "HH:MM"
	Date          string // "YYYY-MM-DD"
	Status        string
	SnoozeUntil   string // "HH:MM", only while snoozed
	SentAt        time.Time
	UpdatedAt     time.Time
}

// PushLink is the registered push delivery target. One per install.
type PushLink struct {
	ChatID   int64
	LinkedAt time.Time
}

// Store is the persistence surface for the reminder core.
type Store interface {
	Close() error

	// Schedule entries.
	ListEntries(ctx context.Context) ([]schedule.Entry, error)
	CreateEntry(ctx context.Context, e schedule.Entry) (schedule.Entry, error)
	UpdateEntry(ctx context.Context, e schedule.Entry) error
	DeleteEntry(ctx context.Context, id string) error

	// Confirmation records.
	RecordSent(ctx context.Context, c Confirmation) (Confirmation, bool, error)
	GetConfirmation(ctx context.Context, id string) (Confirmation, error)
	SetConfirmationStatus(ctx context.Context, id, status, snoozeUntil string) error
	ListSnoozed(ctx context.Context, date string) ([]Confirmation, error)
	PruneConfirmations(ctx context.Context, beforeDate string) (int64, error)

	// Push delivery target.
	SavePushLink(ctx context.Context, l PushLink) error
	GetPushLink(ctx context.Context) (PushLink, bool, error)
}
