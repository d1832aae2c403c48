package reminder

import (
	"sync"
	"time"
)

// maxTracked caps the in-memory set of pending reminders. Old resolved
// or abandoned entries are pruned oldest-first once the cap is hit; a
// response for a pruned reminder gets ErrUnknown, which callers treat
// the same as an already-resolved one.
const maxTracked = 200

// Tracker is the in-memory registry of presented reminders. All
// transitions go through it so that concurrent responses (overlay tap
// and push-button tap racing) resolve to exactly one winner.
type Tracker struct {
	mu   sync.Mutex
	byID map[string]*Presented
}

func NewTracker() *Tracker {
	return &Tracker{byID: map[string]*Presented{}}
}

// Present registers a new pending reminder. Presenting the same
// confirmation id again (a snooze re-delivery) resets it to pending.
func (t *Tracker) Present(confirmationID, entryID, name, hhmm string, at time.Time) *Presented {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := &Presented{
		ConfirmationID: confirmationID,
		EntryID:        entryID,
		Name:           name,
		Time:           hhmm,
		PresentedAt:    at,
		state:          StatePending,
	}
	t.byID[confirmationID] = p
	t.pruneLocked()
	return p
}

// Get returns a snapshot of the tracked reminder, if any.
func (t *Tracker) Get(confirmationID string) (Presented, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byID[confirmationID]
	if !ok {
		return Presented{}, false
	}
	return *p, true
}

// Confirm moves the reminder to Confirmed. Returns a snapshot of the
// resolved reminder on success.
func (t *Tracker) Confirm(confirmationID string) (Presented, error) {
	return t.resolve(confirmationID, (*Presented).confirm)
}

// Snooze moves the reminder to Snoozed.
func (t *Tracker) Snooze(confirmationID string) (Presented, error) {
	return t.resolve(confirmationID, (*Presented).snooze)
}

func (t *Tracker) resolve(id string, fn func(*Presented) error) (Presented, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byID[id]
	if !ok {
		return Presented{}, ErrUnknown
	}
	if err := fn(p); err != nil {
		return *p, err
	}
	return *p, nil
}

func (t *Tracker) pruneLocked() {
	if len(t.byID) <= maxTracked {
		return
	}
	// Drop resolved entries first, then the oldest pending ones.
	for id, p := range t.byID {
		if p.state != StatePending {
			delete(t.byID, id)
			if len(t.byID) <= maxTracked {
				return
			}
		}
	}
	for len(t.byID) > maxTracked {
		var (
			oldID string
			oldAt time.Time
			set   bool
		)
		for id, p := range t.byID {
			if !set || p.PresentedAt.Before(oldAt) {
				oldID, oldAt, set = id, p.PresentedAt, true
			}
		}
		if oldID == "" {
			return
		}
		delete(t.byID, oldID)
	}
}
