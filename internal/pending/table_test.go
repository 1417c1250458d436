package pending_test

import (
	"testing"

	"github.com/lattice-run/lio/internal/pending"
)

func TestInsertRemoveRoundTrip(t *testing.T) {
	tb := pending.New(4)

	var got int32
	id := tb.Insert(pending.PendingOp{
		Opcode: pending.OpRead,
		Callback: func(result int32, buf []byte) {
			got = result
		},
	})

	op, ok := tb.Remove(id)
	if !ok {
		t.Fatal("remove of just-inserted id failed")
	}
	op.Callback(7, nil)
	if got != 7 {
		t.Fatalf("callback result = %d, want 7", got)
	}

	if _, ok := tb.Remove(id); ok {
		t.Fatal("second remove of the same id should fail")
	}
}

func TestGenerationPreventsStaleOpId(t *testing.T) {
	tb := pending.New(1)

	id1 := tb.Insert(pending.PendingOp{Opcode: pending.OpClose})
	if _, ok := tb.Remove(id1); !ok {
		t.Fatal("remove id1 failed")
	}

	id2 := tb.Insert(pending.PendingOp{Opcode: pending.OpClose})

	slot1, _ := pending.Unpack(id1)
	slot2, gen2 := pending.Unpack(id2)
	if slot1 != slot2 {
		t.Fatalf("expected slot reuse, got %d and %d", slot1, slot2)
	}

	if _, ok := tb.Remove(id1); ok {
		t.Fatal("stale generation should not remove the reused slot")
	}
	if _, ok := tb.Remove(id2); !ok {
		t.Fatal("current generation should remove the slot")
	}
	_ = gen2
}

func TestTableGrowsByDoubling(t *testing.T) {
	tb := pending.New(2)
	ids := make([]uint64, 0, 10)
	for i := 0; i < 10; i++ {
		ids = append(ids, tb.Insert(pending.PendingOp{Opcode: pending.OpTimeout}))
	}
	if got := tb.Len(); got != 10 {
		t.Fatalf("len = %d, want 10", got)
	}
	for _, id := range ids {
		if _, ok := tb.Remove(id); !ok {
			t.Fatalf("remove %d failed", id)
		}
	}
	if got := tb.Len(); got != 0 {
		t.Fatalf("len after drain = %d, want 0", got)
	}
}

func TestCancelMarksSlotWithoutRemoving(t *testing.T) {
	tb := pending.New(1)
	id := tb.Insert(pending.PendingOp{Opcode: pending.OpRead})

	if !tb.Cancel(id) {
		t.Fatal("cancel of live id should succeed")
	}
	if !tb.Cancelled(id) {
		t.Fatal("cancelled flag should be visible before reap")
	}
	if got := tb.Len(); got != 1 {
		t.Fatalf("len = %d, want 1 (cancel does not remove)", got)
	}

	op, ok := tb.Remove(id)
	if !ok {
		t.Fatal("remove after cancel should still succeed")
	}
	if !op.WasCancelled() {
		t.Fatal("removed op should carry the cancelled flag")
	}
}

func TestDrainAllInvokesEveryCallback(t *testing.T) {
	tb := pending.New(1)
	n := 5
	results := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		tb.Insert(pending.PendingOp{
			Opcode: pending.OpWrite,
			Callback: func(result int32, buf []byte) {
				results = append(results, result)
			},
		})
	}

	ops := tb.DrainAll()
	if len(ops) != n {
		t.Fatalf("drained %d ops, want %d", len(ops), n)
	}
	for _, op := range ops {
		op.Callback(-5, nil)
	}
	if len(results) != n {
		t.Fatalf("invoked %d callbacks, want %d", len(results), n)
	}
	for _, r := range results {
		if r != -5 {
			t.Fatalf("result = %d, want -5", r)
		}
	}
	if tb.Len() != 0 {
		t.Fatal("table should be empty after DrainAll")
	}
}
