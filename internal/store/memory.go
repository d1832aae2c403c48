package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"medassist/internal/schedule"
)

// Memory is an in-process Store. It backs the no-persistence mode
// (everything is lost on restart) and doubles as the test fake.
type Memory struct {
	mu      sync.Mutex
	entries []schedule.Entry
	confs   map[string]Confirmation
	slots   map[string]string // (entry,time,date) slot -> confirmation id
	link    *PushLink
}

func NewMemory() *Memory {
	return &Memory{
		confs: map[string]Confirmation{},
		slots: map[string]string{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) ListEntries(ctx context.Context) ([]schedule.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schedule.Entry(nil), m.entries...), nil
}

func (m *Memory) CreateEntry(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *Memory) UpdateEntry(ctx context.Context, e schedule.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == e.ID {
			m.entries[i] = e
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) DeleteEntry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func slotKey(c Confirmation) string {
	return c.EntryID + "|" + c.ScheduledTime + "|" + c.Date
}

func (m *Memory) RecordSent(ctx context.Context, c Confirmation) (Confirmation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := slotKey(c)
	if id, ok := m.slots[key]; ok {
		return m.confs[id], false, nil
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.SentAt.IsZero() {
		c.SentAt = time.Now()
	}
	c.UpdatedAt = c.SentAt
	m.slots[key] = c.ID
	m.confs[c.ID] = c
	return c, true, nil
}

func (m *Memory) GetConfirmation(ctx context.Context, id string) (Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.confs[id]
	if !ok {
		return Confirmation{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) SetConfirmationStatus(ctx context.Context, id, status, snoozeUntil string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.confs[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	c.SnoozeUntil = snoozeUntil
	c.UpdatedAt = time.Now()
	m.confs[id] = c
	return nil
}

func (m *Memory) ListSnoozed(ctx context.Context, date string) ([]Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Confirmation
	for _, c := range m.confs {
		if c.Status == StatusSnoozed && c.Date == date {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) PruneConfirmations(ctx context.Context, beforeDate string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.confs {
		if c.Date < beforeDate {
			delete(m.confs, id)
			delete(m.slots, slotKey(c))
			n++
		}
	}
	return n, nil
}

func (m *Memory) SavePushLink(ctx context.Context, l PushLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := l
	m.link = &cp
	return nil
}

func (m *Memory) GetPushLink(ctx context.Context) (PushLink, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link == nil {
		return PushLink{}, false, nil
	}
	return *m.link, true, nil
}

var _ Store = (*Memory)(nil)
