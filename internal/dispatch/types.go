// Package dispatch fans a due dose out to every delivery channel: the
// in-app chat log and overlay, the OS notification surface, and the
// push transport for closed-app delivery.
package dispatch

import (
	"context"
	"time"

	"medassist/internal/store"
)

// PushConfig tunes the async push pipeline.
type PushConfig struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

// OSNotifier is the desktop notification surface. Delivery is
// permission-gated: when Granted is false the channel is skipped
// silently.
type OSNotifier interface {
	Granted() bool
	Show(title, body string) error
}

// LinkSource resolves the registered push target, if any.
type LinkSource interface {
	GetPushLink(ctx context.Context) (store.PushLink, bool, error)
}

// PushEvent is the bus payload for push delivery outcomes.
type PushEvent struct {
	ConfirmationID string    `json:"confirmation_id"`
	Name           string    `json:"name"`
	ChatID         int64     `json:"chat_id"`
	At             time.Time `json:"at"`
	Error          string    `json:"error,omitempty"`
}
