package reminder

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTrackerLifecycle(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	now := time.Now()

	tr.Present("c1", "e1", "Aspirin", "08:00", now)

	p, ok := tr.Get("c1")
	if !ok || p.State() != StatePending {
		t.Fatalf("Get = %+v, ok=%v", p, ok)
	}

	resolved, err := tr.Confirm("c1")
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if resolved.State() != StateConfirmed || resolved.Name != "Aspirin" {
		t.Fatalf("resolved = %+v", resolved)
	}

	// A second response loses.
	if _, err := tr.Confirm("c1"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("second Confirm = %v, want ErrNotPending", err)
	}
	if _, err := tr.Snooze("c1"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("Snooze after Confirm = %v, want ErrNotPending", err)
	}

	if _, err := tr.Confirm("nope"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("unknown Confirm = %v, want ErrUnknown", err)
	}
}

func TestTrackerRePresentResetsToPending(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	now := time.Now()

	tr.Present("c1", "e1", "Aspirin", "08:00", now)
	if _, err := tr.Snooze("c1"); err != nil {
		t.Fatalf("Snooze error: %v", err)
	}

	// Snooze re-delivery presents the same confirmation id again.
	tr.Present("c1", "e1", "Aspirin", "08:00", now.Add(5*time.Minute))
	if _, err := tr.Confirm("c1"); err != nil {
		t.Fatalf("Confirm after re-present error: %v", err)
	}
}

func TestTrackerPrunesResolvedFirst(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	base := time.Now()

	tr.Present("resolved", "e0", "Old", "07:00", base.Add(-time.Hour))
	if _, err := tr.Confirm("resolved"); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}

	for i := 0; i < maxTracked; i++ {
		id := fmt.Sprintf("p%d", i)
		tr.Present(id, "e", "Med", "08:00", base.Add(time.Duration(i)*time.Second))
	}

	// The resolved entry went first; the pending ones are still tracked.
	if _, ok := tr.Get("resolved"); ok {
		t.Fatal("resolved entry survived pruning")
	}
	if _, ok := tr.Get("p0"); !ok {
		t.Fatal("pending entry was pruned while a resolved one existed")
	}
}
