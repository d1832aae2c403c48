// Package session tracks whether an authenticated user session is
// active. The due-dose detector only runs while one is; flipping the
// flag is announced on the bus so the detector can tear down or
// re-establish its polling task.
package session

import (
	"sync"

	"medassist/internal/eventbus"
)

type Manager struct {
	mu     sync.Mutex
	active bool

	bus eventbus.Bus
}

func NewManager(bus eventbus.Bus) *Manager {
	return &Manager{bus: bus}
}

func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SetActive flips the session flag; no-op (and no event) if unchanged.
func (m *Manager) SetActive(active bool) {
	m.mu.Lock()
	changed := m.active != active
	m.active = active
	m.mu.Unlock()

	if changed && m.bus != nil {
		m.bus.Publish(eventbus.Event{Type: eventbus.TypeSessionChanged, Data: active})
	}
}
