package detector

import (
	"testing"
	"time"

	"medassist/internal/schedule"
)

// monday8 is a Monday at 08:00 local-free (UTC) wall clock.
var monday8 = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func entries() []schedule.Entry {
	return []schedule.Entry{
		{ID: "a", Name: "Aspirin", Time: "08:00", Days: schedule.Days{"Mon", "Wed"}},
		{ID: "b", Name: "B12", Time: "08:00", Days: schedule.EveryDay()},
		{ID: "c", Name: "Calcium", Time: "21:00", Days: schedule.EveryDay()},
		{ID: "d", Name: "D3", Time: "08:00", Days: nil}, // inert
	}
}

func TestEvaluateMatchesOncePerMinute(t *testing.T) {
	t.Parallel()
	var d Detector

	due := d.Evaluate(entries(), monday8)
	if len(due) != 2 {
		t.Fatalf("expected 2 due doses, got %d", len(due))
	}
	for _, ev := range due {
		if ev.MinuteKey != "08:00" {
			t.Fatalf("MinuteKey = %q", ev.MinuteKey)
		}
	}

	// Later ticks inside the same minute do nothing.
	for _, off := range []time.Duration{10 * time.Second, 30 * time.Second, 59 * time.Second} {
		if got := d.Evaluate(entries(), monday8.Add(off)); len(got) != 0 {
			t.Fatalf("tick at +%v re-fired %d doses", off, len(got))
		}
	}

	// The next minute with no matching entry yields nothing.
	if got := d.Evaluate(entries(), monday8.Add(time.Minute)); len(got) != 0 {
		t.Fatalf("unexpected doses at 08:01: %d", len(got))
	}
}

func TestEvaluateMinuteAdvancesOnlyOnMatch(t *testing.T) {
	t.Parallel()
	var d Detector

	// 07:59 matches nothing; the guard must not latch onto it.
	if got := d.Evaluate(entries(), monday8.Add(-time.Minute)); len(got) != 0 {
		t.Fatalf("unexpected doses at 07:59: %d", len(got))
	}
	if got := d.Evaluate(entries(), monday8); len(got) != 2 {
		t.Fatalf("expected 2 due doses at 08:00, got %d", len(got))
	}
}

func TestEvaluateDayGate(t *testing.T) {
	t.Parallel()
	var d Detector

	// 2024-01-02 is a Tuesday: the Mon/Wed entry stays quiet.
	tuesday8 := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	due := d.Evaluate(entries(), tuesday8)
	if len(due) != 1 || due[0].Entry.ID != "b" {
		t.Fatalf("expected only the every-day entry, got %+v", due)
	}
}

func TestEvaluateAfterReset(t *testing.T) {
	t.Parallel()
	var d Detector

	if got := d.Evaluate(entries(), monday8); len(got) != 2 {
		t.Fatalf("expected 2 due doses, got %d", len(got))
	}
	d.Reset()
	// Same minute fires again after a reset (fresh run).
	if got := d.Evaluate(entries(), monday8.Add(20*time.Second)); len(got) != 2 {
		t.Fatalf("expected 2 due doses after reset, got %d", len(got))
	}
}
