package lio

import (
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lattice-run/lio/internal/dispatch"
	"github.com/lattice-run/lio/internal/pending"
	"github.com/lattice-run/lio/internal/reactor"
	"github.com/lattice-run/lio/internal/scheduler"
	"github.com/lattice-run/lio/internal/timer"
)

// EIO is the result delivered to every outstanding callback when the
// runtime transitions to Exited because of a fatal reactor error.
const EIO = -5

// global is the process-wide handle: the single owned Runtime instance,
// reached by every package-level function (Init, Submit, ...). Grounded
// on the original implementation's AtomicPtr<Driver> singleton.
var global atomic.Pointer[Runtime]

// Runtime is the lifecycle controller: it owns the reactor, the
// pending-op table, the timer wheel, the worker pool and the
// dispatcher bridging them together.
type Runtime struct {
	lc lifecycle

	table   *pending.Table
	wheel   *timer.Wheel
	backend reactor.Backend
	react   *reactor.Reactor
	pool    *scheduler.Pool
	disp    *dispatch.Dispatcher

	opts *Options

	stopCh  chan struct{}
	doneCh  chan struct{} // closed when the reactor goroutine returns
	g       errgroup.Group
	nextSeq atomic.Uint64
}

func current() *Runtime {
	return global.Load()
}

func (rt *Runtime) trace(opcode uint8, event string) {
	if rt.opts.debugTrace == nil {
		return
	}
	rt.opts.debugTrace(rt.nextSeq.Add(1), opcode, event)
}

// Init initializes the process-wide runtime: creates the reactor, the
// pending-op table and the timer wheel, but does not yet spawn
// workers. It panics if the runtime is already initialized, matching
// the foreign ABI's init() contract.
func Init(opts ...Option) {
	if err := TryInit(opts...); err != nil {
		panic(err)
	}
}

// TryInit is the non-panicking variant of Init: it reports
// ErrAlreadyInited rather than aborting if called more than once.
func TryInit(opts ...Option) error {
	o, err := resolveOptions(opts...)
	if err != nil {
		return newSubmitError(errMetaOpInit, err)
	}

	backend, err := newBackend()
	if err != nil {
		return newSubmitError(errMetaOpInit, err)
	}

	table := pending.New(64)
	wheel := timer.New()
	pool := scheduler.New(o.workers)
	disp := dispatch.New(table, pool)

	rt := &Runtime{
		table:   table,
		wheel:   wheel,
		backend: backend,
		pool:    pool,
		disp:    disp,
		opts:    o,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	rt.react = reactor.New(backend, wheel, o.waitCap, rt.disp.HandleCompletion)
	rt.lc.advance(Uninit, Inited)

	if !global.CompareAndSwap(nil, rt) {
		_ = backend.Close()
		return ErrAlreadyInited
	}
	rt.trace(0, "inited")
	return nil
}

// Start spawns the worker pool and the reactor thread. Safe to call
// once, after Init/TryInit.
func Start() error {
	rt := current()
	if rt == nil {
		return ErrNotInited
	}
	if !rt.lc.advance(Inited, Running) {
		return newSubmitError(errMetaOpStart, ErrAlreadyInited)
	}
	rt.pool.Start()
	rt.g.Go(func() error {
		rt.react.Run(rt.stopCh)
		close(rt.doneCh)
		return rt.react.FatalErr()
	})
	rt.trace(0, "started")
	return nil
}

// Stop moves the controller to Stopping, after which new submissions
// fail with ErrStopped. It does not wait, and it stops neither the
// workers nor the reactor: operations already in flight still complete
// and their callbacks still run on the workers, which park whenever
// they are idle. Exit joins both.
func Stop() error {
	rt := current()
	if rt == nil {
		return ErrNotInited
	}
	if !rt.lc.advance(Running, Stopping) {
		return nil
	}
	rt.trace(0, "stopping")
	return nil
}

// Exit blocks until every in-flight operation has completed and every
// callback has returned, then joins the reactor and worker threads. It
// is idempotent: calling it again after it has returned is a no-op.
func Exit() error {
	rt := current()
	if rt == nil {
		return ErrNotInited
	}
	if rt.lc.load() == Exited {
		return nil
	}

drain:
	for rt.table.Len() > 0 || rt.wheel.Len() > 0 {
		select {
		case <-rt.doneCh:
			// The reactor goroutine already returned — almost certainly a
			// fatal backend error, since a normal return only happens
			// after stopCh closes below. Nothing will ever deliver the
			// ops still sitting in the table, so stop waiting on them and
			// let the fatal check below drain them with -EIO.
			break drain
		default:
			time.Sleep(time.Millisecond)
		}
	}

	close(rt.stopCh)
	_ = rt.g.Wait()

	if fatal := rt.react.FatalErr(); fatal != nil {
		ops := rt.table.DrainAll()
		rt.disp.HandleFatal(ops, EIO)
	}

	rt.pool.Stop()
	rt.pool.Wait()
	_ = rt.backend.Close()

	rt.lc.state.Store(int32(Exited))
	rt.trace(0, "exited")
	return nil
}

// Cancel marks opID cancelled and wakes the reactor to tombstone its
// timer entry or deregister its armed fd promptly, rather than waiting
// for a natural completion that may be far off (a long timer) or may
// never arrive (an fd that never becomes ready). table.Cancel also
// marks the slot so a completion already in flight on the reactor
// thread is still overridden with -ECANCELED even if it races ahead of
// the reactor-side cancellation below. Best-effort per the runtime's
// cancellation contract — the callback is still invoked exactly once.
func Cancel(opID uint64) bool {
	rt := current()
	if rt == nil {
		return false
	}
	if !rt.table.Cancel(opID) {
		return false
	}
	rt.react.Submit(reactor.ArmRequest{
		OpID: opID,
		Install: func(r *reactor.Reactor) {
			r.Cancel(opID)
		},
	})
	return true
}

// submit allocates a pending-op slot and hands its installation to the
// reactor thread. It returns ErrNotInited/ErrStopped synchronously
// rather than allocating a slot when the controller isn't running, per
// the runtime's submission-error contract.
func submit(op pending.PendingOp, install func(id uint64, r *reactor.Reactor)) (uint64, error) {
	rt := current()
	if rt == nil {
		return 0, ErrNotInited
	}
	switch rt.lc.load() {
	case Running:
	case Uninit, Inited:
		return 0, ErrNotInited
	default:
		return 0, ErrStopped
	}

	id := rt.table.Insert(op)
	rt.trace(uint8(op.Opcode), "submitted")
	rt.react.Submit(reactor.ArmRequest{
		OpID: id,
		Install: func(r *reactor.Reactor) {
			install(id, r)
		},
	})
	return id, nil
}
