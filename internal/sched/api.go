package sched

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medassist/pkg/logx"
)

// AddInterval registers a repeating job. Upserts by name so repeated
// registrations (e.g. after a config reload) don't stack duplicates.
func (s *Service) AddInterval(name string, every time.Duration, job func(ctx context.Context) error) error {
	if every <= 0 {
		return errors.New("interval must be > 0")
	}
	return s.AddCron(name, fmt.Sprintf("@every %s", every.String()), job)
}

// AddCron registers a cron-triggered job, upserting by name.
func (s *Service) AddCron(name, spec string, job func(ctx context.Context) error) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid spec %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeDefLocked(name)
	s.defs = append(s.defs, scheduleDef{name: name, spec: spec, job: job, state: &runState{}})
	if s.c != nil {
		s.addCronLocked(&s.defs[len(s.defs)-1])
	}
	// Not started yet: the definition is registered when Start runs.
	return nil
}

// AddOnce arms a one-shot job at the given instant, upserting by name.
// A past instant fires immediately.
func (s *Service) AddOnce(name string, at time.Time, job func(ctx context.Context) error) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if at.IsZero() {
		return errors.New("at required")
	}
	if job == nil {
		return errors.New("job required")
	}

	s.tmu.Lock()
	if t, ok := s.timers[name]; ok {
		_ = t.Stop()
		delete(s.timers, name)
	}
	// Bump the version so callbacks from replaced timers are ignored.
	ver := s.onceVer[name] + 1
	s.onceVer[name] = ver
	s.onceJob[name] = job

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	localName := name
	localVer := ver
	timer := time.AfterFunc(delay, func() {
		s.tmu.Lock()
		curVer := s.onceVer[localName]
		jobNow := s.onceJob[localName]
		if curVer != localVer || jobNow == nil {
			s.tmu.Unlock()
			return
		}
		delete(s.timers, localName)
		delete(s.onceJob, localName)
		delete(s.onceVer, localName)
		s.tmu.Unlock()

		s.enqueue(task{name: localName, run: jobNow, state: &runState{}})
	})
	s.timers[name] = timer
	s.tmu.Unlock()

	s.log.Debug("one-shot armed", logx.String("name", name), logx.Time("at", at))
	return nil
}

// Remove unschedules everything registered under name. Returns true if
// something was removed. Safe to call while stopped.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	removed := false

	s.mu.Lock()
	removed = s.removeDefLocked(name) || removed
	s.mu.Unlock()

	s.tmu.Lock()
	if t, ok := s.timers[name]; ok {
		_ = t.Stop()
		delete(s.timers, name)
		removed = true
	}
	if _, ok := s.onceJob[name]; ok {
		delete(s.onceJob, name)
		delete(s.onceVer, name)
		removed = true
	}
	s.tmu.Unlock()

	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

// Has reports whether a repeating definition is registered under name.
func (s *Service) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.defs {
		if d.name == name {
			return true
		}
	}
	return false
}

// removeDefLocked removes repeating defs matching name. Call with s.mu held.
func (s *Service) removeDefLocked(name string) bool {
	removed := false
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}
