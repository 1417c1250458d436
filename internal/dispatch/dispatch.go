// Package dispatch implements the bridge between reactor completions
// and the worker pool: for every completion it atomically removes the
// PendingOp from its slot, reunites the user callback with the result
// (and owned buffer, if any), and hands the resulting closure to the
// scheduler. It is grounded on the original implementation's
// driver.rs/backends/threading.rs tick step (store.remove, then
// callback.call).
package dispatch

import (
	"github.com/lattice-run/lio/internal/pending"
	"github.com/lattice-run/lio/internal/reactor"
)

// Scheduler is the subset of scheduler.Pool the dispatcher needs: a way
// to hand a ready closure to a worker.
type Scheduler interface {
	Dispatch(task func())
}

// Dispatcher bridges a Reactor's completions into a Scheduler. It runs
// on the reactor thread and must not execute user code directly —
// Dispatch always goes through the scheduler, so callbacks run on a
// worker thread as the shim contract requires.
type Dispatcher struct {
	table *pending.Table
	sched Scheduler
}

// New returns a Dispatcher bound to table and sched.
func New(table *pending.Table, sched Scheduler) *Dispatcher {
	return &Dispatcher{table: table, sched: sched}
}

// HandleCompletion implements reactor.Deliver: remove the PendingOp for
// opID, fold in the cancellation override, and schedule the bound
// callback. A miss (already reaped, or a stale generation) is silently
// ignored. It happens when a timer entry that Reactor.Cancel already
// delivered as cancelled later reaches Advance and is reported again.
func (d *Dispatcher) HandleCompletion(opID uint64, result int32, buf []byte) {
	op, ok := d.table.Remove(opID)
	if !ok {
		return
	}
	if buf == nil {
		buf = op.Buf
	}
	if op.WasCancelled() && result >= 0 {
		result = -reactor.ECANCELED
	}
	cb := op.Callback
	if cb == nil {
		return
	}
	d.sched.Dispatch(func() {
		cb(result, buf)
	})
}

// HandleFatal schedules result (conventionally -EIO) for every op
// already extracted from the table by the lifecycle controller's
// shutdown-on-fatal-error path. Unlike HandleCompletion it does not
// touch the table — the caller has already drained it — but it still
// routes through the scheduler so callbacks run on a worker thread.
func (d *Dispatcher) HandleFatal(ops []pending.PendingOp, result int32) {
	for _, op := range ops {
		cb := op.Callback
		if cb == nil {
			continue
		}
		buf := op.Buf
		d.sched.Dispatch(func() {
			cb(result, buf)
		})
	}
}
