package schedule

import (
	"testing"
	"time"
)

func TestRRuleString(t *testing.T) {
	t.Parallel()
	e := Entry{Name: "Aspirin", Time: "08:30", Days: Days{"Mon", "Wed", "Fri"}}
	got := e.RRuleString()
	want := "FREQ=WEEKLY;BYDAY=MO,WE,FR;BYHOUR=8;BYMINUTE=30;BYSECOND=0"
	if got != want {
		t.Fatalf("RRuleString = %q, want %q", got, want)
	}

	if got := (Entry{Name: "Aspirin", Time: "08:30"}).RRuleString(); got != "" {
		t.Fatalf("inert entry RRuleString = %q, want empty", got)
	}
	if got := (Entry{Name: "Aspirin", Time: "bad", Days: EveryDay()}).RRuleString(); got != "" {
		t.Fatalf("invalid time RRuleString = %q, want empty", got)
	}
}

func TestNextOccurrence(t *testing.T) {
	t.Parallel()
	// 2024-01-01 is a Monday.
	now := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)

	e := Entry{Name: "Aspirin", Time: "08:00", Days: Days{"Mon"}}
	next := e.NextOccurrence(now)
	if next.IsZero() {
		t.Fatal("expected an occurrence")
	}
	if next.Weekday() != time.Monday || next.Hour() != 8 || next.Minute() != 0 {
		t.Fatalf("NextOccurrence = %v", next)
	}
	if !next.After(now) {
		t.Fatalf("NextOccurrence %v is not after now %v", next, now)
	}

	// After today's slot has passed, the next Monday is a week away.
	later := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	next2 := e.NextOccurrence(later)
	if next2.IsZero() || !next2.After(later) {
		t.Fatalf("NextOccurrence after slot = %v", next2)
	}
	if next2.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %v", next2.Weekday())
	}

	if got := (Entry{Name: "Aspirin", Time: "08:00"}).NextOccurrence(now); !got.IsZero() {
		t.Fatalf("inert entry NextOccurrence = %v, want zero", got)
	}
}
