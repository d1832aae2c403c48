// Package ui owns the state the (external) presentation layer renders:
// the chat-style message log, the single active reminder overlay, and
// the push channel status line.
package ui

import (
	"sync"
	"time"

	"medassist/internal/eventbus"
)

// Senders for chat messages.
const (
	SenderBot    = "bot"
	SenderUser   = "user"
	SenderSystem = "system"
)

// maxMessages bounds the retained chat log.
const maxMessages = 500

type Message struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Overlay is the single active on-screen reminder awaiting a confirm or
// snooze action. ConfirmationID is empty for purely in-app reminders.
type Overlay struct {
	ConfirmationID string `json:"confirmation_id,omitempty"`
	Name           string `json:"name"`
	Time           string `json:"time"`
	Title          string `json:"title"`
}

// State is the snapshot handed to subscribers.
type State struct {
	Messages   []Message `json:"messages"`
	Overlay    *Overlay  `json:"overlay,omitempty"`
	PushStatus string    `json:"push_status"`
}

// Hub applies every mutation atomically under one lock, so no
// subscriber ever observes a half-updated overlay, and publishes a
// fresh snapshot on the bus after each change.
type Hub struct {
	mu         sync.Mutex
	messages   []Message
	overlay    *Overlay
	pushStatus string

	bus eventbus.Bus
}

func NewHub(bus eventbus.Bus) *Hub {
	return &Hub{bus: bus, pushStatus: "Checking..."}
}

func (h *Hub) AppendBot(text string)  { h.append(SenderBot, text) }
func (h *Hub) AppendUser(text string) { h.append(SenderUser, text) }

func (h *Hub) append(sender, text string) {
	h.mu.Lock()
	h.messages = append(h.messages, Message{Sender: sender, Text: text, At: time.Now()})
	if len(h.messages) > maxMessages {
		h.messages = h.messages[len(h.messages)-maxMessages:]
	}
	h.publishLocked()
	h.mu.Unlock()
}

// SetOverlay installs the active overlay. Last write wins: a newer
// reminder replaces the current overlay; the older one stays in the log.
func (h *Hub) SetOverlay(o Overlay) {
	h.mu.Lock()
	cp := o
	h.overlay = &cp
	h.publishLocked()
	h.mu.Unlock()
}

func (h *Hub) ClearOverlay() {
	h.mu.Lock()
	h.overlay = nil
	h.publishLocked()
	h.mu.Unlock()
}

// Overlay returns the current overlay, if any.
func (h *Hub) Overlay() (Overlay, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.overlay == nil {
		return Overlay{}, false
	}
	return *h.overlay, true
}

func (h *Hub) SetPushStatus(s string) {
	h.mu.Lock()
	h.pushStatus = s
	h.publishLocked()
	h.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (h *Hub) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() State {
	st := State{
		Messages:   append([]Message(nil), h.messages...),
		PushStatus: h.pushStatus,
	}
	if h.overlay != nil {
		cp := *h.overlay
		st.Overlay = &cp
	}
	return st
}

func (h *Hub) publishLocked() {
	if h.bus == nil {
		return
	}
	h.bus.Publish(eventbus.Event{Type: eventbus.TypeUIState, Data: h.snapshotLocked()})
}

// LogLine satisfies logx.LineSink: WARN+ log lines show up in the chat
// log as system messages so the user sees degraded-mode hints.
func (h *Hub) LogLine(level, line string) {
	h.append(SenderSystem, "["+level+"] "+line)
}
