package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayTags lists the weekday abbreviations used throughout the schedule
// model, ordered Sunday-first to match time.Weekday.
var DayTags = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Days is a set of weekday tags. An empty set means the entry never
// fires; that is an inert entry, not an error.
type Days []string

func (d Days) Contains(tag string) bool {
	for _, t := range d {
		if t == tag {
			return true
		}
	}
	return false
}

// Normalize de-duplicates and orders the set Sunday-first. Unknown tags
// are reported as an error.
func (d Days) Normalize() (Days, error) {
	seen := map[string]bool{}
	for _, t := range d {
		known := false
		for _, tag := range DayTags {
			if t == tag {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown weekday tag %q", t)
		}
		seen[t] = true
	}
	out := make(Days, 0, len(seen))
	for _, tag := range DayTags {
		if seen[tag] {
			out = append(out, tag)
		}
	}
	return out, nil
}

// EveryDay returns the full weekday set.
func EveryDay() Days {
	return append(Days(nil), DayTags...)
}

// Entry is one recurring medication instruction. Time and Days together
// define the deterministic trigger set; Period is a display label only
// and never participates in matching.
type Entry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Time   string `json:"time"` // "HH:MM", 24-hour local wall clock
	Days   Days   `json:"days"`
	Period string `json:"period,omitempty"` // "Morning" / "Afternoon" / "Night" / ""
}

var (
	ErrEmptyName   = errors.New("schedule: medicine name is empty")
	ErrInvalidTime = errors.New("schedule: invalid time of day")
)

// Validate checks the user-supplied fields. An empty Days set is valid
// (the entry is inert).
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if _, _, err := ParseHHMM(e.Time); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	if _, err := e.Days.Normalize(); err != nil {
		return err
	}
	return nil
}

// ParseHHMM parses a minute-resolution 24-hour time of day.
func ParseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// MinuteKey truncates a wall-clock instant to its "HH:MM" form.
func MinuteKey(t time.Time) string { return t.Format("15:04") }

// DayTag returns the weekday abbreviation for an instant ("Sun".."Sat").
func DayTag(t time.Time) string { return DayTags[int(t.Weekday())] }

// DateKey returns the "YYYY-MM-DD" form used to key confirmation records.
func DateKey(t time.Time) string { return t.Format("2006-01-02") }
