package timer_test

import (
	"testing"
	"time"

	"github.com/lattice-run/lio/internal/timer"
)

func TestAdvanceFiresDueEntriesInDeadlineOrder(t *testing.T) {
	w := timer.New()
	base := time.Unix(0, 0)

	w.Insert(3, base.Add(30*time.Millisecond))
	w.Insert(1, base.Add(10*time.Millisecond))
	w.Insert(2, base.Add(20*time.Millisecond))

	due := w.Advance(base.Add(25 * time.Millisecond))
	if len(due) != 2 {
		t.Fatalf("fired %d entries, want 2", len(due))
	}
	if due[0].OpID != 1 || due[1].OpID != 2 {
		t.Fatalf("fired order = %v, want [1, 2]", due)
	}

	due = w.Advance(base.Add(31 * time.Millisecond))
	if len(due) != 1 || due[0].OpID != 3 {
		t.Fatalf("fired = %v, want [3]", due)
	}
}

func TestCancelTombstonesWithoutRemoving(t *testing.T) {
	w := timer.New()
	base := time.Unix(0, 0)
	w.Insert(1, base.Add(10*time.Millisecond))

	if !w.Cancel(1) {
		t.Fatal("cancel of live entry should succeed")
	}
	if w.Cancel(1) {
		t.Fatal("cancel of already-tombstoned entry should fail")
	}
	if got := w.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0 (tombstoned entries don't count as live)", got)
	}

	due := w.Advance(base.Add(10 * time.Millisecond))
	if len(due) != 1 || !due[0].Cancelled {
		t.Fatalf("fired = %v, want one cancelled entry", due)
	}
}

func TestNextDeadlineSkipsTombstones(t *testing.T) {
	w := timer.New()
	base := time.Unix(0, 0)
	w.Insert(1, base.Add(10*time.Millisecond))
	w.Insert(2, base.Add(20*time.Millisecond))

	w.Cancel(1)

	d, ok := w.NextDeadline()
	if !ok {
		t.Fatal("expected a next deadline")
	}
	if !d.Equal(base.Add(20 * time.Millisecond)) {
		t.Fatalf("next deadline = %v, want 20ms", d)
	}
}

func TestNextDeadlineEmpty(t *testing.T) {
	w := timer.New()
	if _, ok := w.NextDeadline(); ok {
		t.Fatal("expected no next deadline on an empty wheel")
	}
}
