package dispatch_test

import (
	"testing"

	"github.com/lattice-run/lio/internal/dispatch"
	"github.com/lattice-run/lio/internal/pending"
)

type inlineScheduler struct {
	ran []func()
}

func (s *inlineScheduler) Dispatch(task func()) {
	s.ran = append(s.ran, task)
}

func (s *inlineScheduler) runAll() {
	for _, t := range s.ran {
		t()
	}
	s.ran = nil
}

func TestHandleCompletionReunitesCallbackWithResultAndBuffer(t *testing.T) {
	table := pending.New(2)
	sched := &inlineScheduler{}
	d := dispatch.New(table, sched)

	var gotResult int32
	var gotBuf []byte
	buf := []byte("payload")
	id := table.Insert(pending.PendingOp{
		Opcode: pending.OpRead,
		Buf:    buf,
		Callback: func(result int32, b []byte) {
			gotResult = result
			gotBuf = b
		},
	})

	d.HandleCompletion(id, 7, nil)
	sched.runAll()

	if gotResult != 7 {
		t.Fatalf("result = %d, want 7", gotResult)
	}
	if string(gotBuf) != "payload" {
		t.Fatalf("buf = %q, want %q", gotBuf, "payload")
	}
	if table.Len() != 0 {
		t.Fatal("table should be empty after completion")
	}
}

func TestHandleCompletionOnCancelledOpOverridesNonNegativeResult(t *testing.T) {
	table := pending.New(1)
	sched := &inlineScheduler{}
	d := dispatch.New(table, sched)

	var gotResult int32
	id := table.Insert(pending.PendingOp{
		Opcode: pending.OpClose,
		Callback: func(result int32, b []byte) {
			gotResult = result
		},
	})
	table.Cancel(id)

	d.HandleCompletion(id, 0, nil)
	sched.runAll()

	if gotResult >= 0 {
		t.Fatalf("result = %d, want a negated ECANCELED", gotResult)
	}
}

func TestHandleCompletionOnUnknownOpIDIsANoop(t *testing.T) {
	table := pending.New(1)
	sched := &inlineScheduler{}
	d := dispatch.New(table, sched)

	d.HandleCompletion(pending.Pack(99, 0), 1, nil)
	sched.runAll()

	if len(sched.ran) != 0 {
		t.Fatal("unknown opID should not schedule anything")
	}
}

func TestHandleFatalSchedulesEveryDrainedOp(t *testing.T) {
	table := pending.New(1)
	sched := &inlineScheduler{}
	d := dispatch.New(table, sched)

	var results []int32
	for i := 0; i < 3; i++ {
		table.Insert(pending.PendingOp{
			Opcode: pending.OpWrite,
			Callback: func(result int32, b []byte) {
				results = append(results, result)
			},
		})
	}

	ops := table.DrainAll()
	d.HandleFatal(ops, -5)
	sched.runAll()

	if len(results) != 3 {
		t.Fatalf("scheduled %d callbacks, want 3", len(results))
	}
	for _, r := range results {
		if r != -5 {
			t.Fatalf("result = %d, want -5", r)
		}
	}
}
