// Package detector decides, once per wall-clock minute, which schedule
// entries are due at the current tick.
package detector

import (
	"sync"
	"time"

	"medassist/internal/schedule"
)

// DueEvent is one entry matching the current tick. Derived, never
// stored: at most one per (entry, minute key) during a continuous run.
type DueEvent struct {
	Entry     schedule.Entry
	MinuteKey string // "HH:MM" of the tick that produced it
	At        time.Time
}

// Detector holds the minute-key guard. It is evaluated on a cadence
// well below a minute (10s by default), so without the guard a due dose
// would re-fire on every tick inside its matching minute.
type Detector struct {
	mu         sync.Mutex
	lastMinute string
}

// Evaluate runs one detection pass against the given snapshot.
//
// The recorded minute key is only advanced after all matches for the
// pass have been collected, so a late tick for the same minute never
// reprocesses, and an early return (same minute) does no work at all.
//
// Clock changes and DST transitions are not compensated: a skipped
// wall-clock minute misses its doses, a repeated one fires them twice.
func (d *Detector) Evaluate(entries []schedule.Entry, now time.Time) []DueEvent {
	minute := schedule.MinuteKey(now)
	day := schedule.DayTag(now)

	d.mu.Lock()
	defer d.mu.Unlock()
	if minute == d.lastMinute {
		return nil
	}

	var due []DueEvent
	for _, e := range entries {
		if e.Time != minute {
			continue
		}
		if !e.Days.Contains(day) {
			continue
		}
		due = append(due, DueEvent{Entry: e, MinuteKey: minute, At: now})
	}

	if len(due) > 0 {
		d.lastMinute = minute
	}
	return due
}

// Reset clears the minute-key guard (used when a run stops, so a later
// restart starts fresh).
func (d *Detector) Reset() {
	d.mu.Lock()
	d.lastMinute = ""
	d.mu.Unlock()
}
