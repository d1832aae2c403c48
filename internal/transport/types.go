// Package transport defines the push delivery surface. The delivery
// worker runs outside the main application's execution context: it
// shares no session state with the core and reports user intent back
// only as opaque updates.
package transport

import "context"

// Target identifies a push delivery destination.
type Target struct {
	ChatID int64
}

// Payload is the wire form of a push reminder. ID is the confirmation
// identifier the reminder is linked to.
type Payload struct {
	ID    string
	Name  string
	Title string
	Body  string
	Time  string
}

// Action offered on a delivered push reminder.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionSnooze  Action = "snooze"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

// Message is an inbound text from the push channel (used for the
// one-time link handshake).
type Message struct {
	ChatID int64
	FromID int64
	Text   string
}

// Callback is a tapped action on a delivered reminder.
type Callback struct {
	ID        string
	ChatID    int64
	FromID    int64
	Action    Action
	PayloadID string
}

// Adapter is a push delivery backend.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendReminder(ctx context.Context, to Target, p Payload) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
