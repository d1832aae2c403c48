// Package reminder tracks presented reminders and their confirmation
// lifecycle: a reminder surfaces as Pending, and a user response moves
// it to Confirmed or Snoozed exactly once.
package reminder

import (
	"errors"
	"time"
)

var (
	// ErrNotPending is returned when a confirm/snooze arrives for a
	// reminder that has already been resolved (or was never presented).
	ErrNotPending = errors.New("reminder is not pending")

	// ErrUnknown is returned when no reminder with the given
	// confirmation id is being tracked.
	ErrUnknown = errors.New("unknown reminder")
)

type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateSnoozed   State = "snoozed"
)

// Presented is one reminder shown to the user, keyed by its
// confirmation id. Transitions are one-way: Pending is the only state
// a response is accepted from.
type Presented struct {
	ConfirmationID string
	EntryID        string
	Name           string
	Time           string // "HH:MM" scheduled time
	PresentedAt    time.Time

	state State
}

func (p *Presented) State() State { return p.state }

func (p *Presented) confirm() error {
	if p.state != StatePending {
		return ErrNotPending
	}
	p.state = StateConfirmed
	return nil
}

func (p *Presented) snooze() error {
	if p.state != StatePending {
		return ErrNotPending
	}
	p.state = StateSnoozed
	return nil
}
