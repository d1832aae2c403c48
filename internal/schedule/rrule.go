package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// icalByDay maps weekday tags to RFC 5545 BYDAY codes.
var icalByDay = map[string]string{
	"Sun": "SU", "Mon": "MO", "Tue": "TU", "Wed": "WE",
	"Thu": "TH", "Fri": "FR", "Sat": "SA",
}

// RRuleString renders the entry's trigger set as an RFC 5545 RRULE.
// Matching stays the minute-key comparison in the detector; the rule is
// used for next-occurrence previews and the iCalendar export.
// Returns "" for inert entries (empty day set).
func (e Entry) RRuleString() string {
	if len(e.Days) == 0 {
		return ""
	}
	h, m, err := ParseHHMM(e.Time)
	if err != nil {
		return ""
	}
	days, err := e.Days.Normalize()
	if err != nil {
		return ""
	}
	codes := make([]string, 0, len(days))
	for _, d := range days {
		codes = append(codes, icalByDay[d])
	}
	return fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s;BYHOUR=%d;BYMINUTE=%d;BYSECOND=0",
		strings.Join(codes, ","), h, m)
}

// NextOccurrence computes the first fire time strictly after now, in
// now's location. The zero time means the entry never fires.
func (e Entry) NextOccurrence(now time.Time) time.Time {
	raw := e.RRuleString()
	if raw == "" {
		return time.Time{}
	}
	r, err := rrule.StrToRRule(raw)
	if err != nil {
		return time.Time{}
	}
	// Anchor the rule a week back so occurrences earlier in the current
	// week are still part of the set.
	r.DTStart(now.AddDate(0, 0, -7).Truncate(time.Minute))
	next := r.After(now, false)
	if next.IsZero() {
		return time.Time{}
	}
	return next.In(now.Location())
}
