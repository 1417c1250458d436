// Package reactor implements the runtime's platform I/O reactor: the
// turn loop that waits on the kernel for readiness events, advances the
// timer wheel, and produces completions for the dispatcher. See Backend
// for the per-OS readiness-polling contract.
package reactor

import (
	"time"

	"github.com/lattice-run/lio/internal/lfqueue"
	"github.com/lattice-run/lio/internal/timer"
)

// ECANCELED is the negated errno delivered to a callback whose
// operation was cancelled before it completed naturally.
const ECANCELED = 125

// Event reports readiness for one registered file descriptor.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
}

// Backend is the per-OS readiness poller the reactor turn loop drives.
// Both the Linux epoll backend and the Darwin/BSD kqueue backend
// implement it; a future completion-based backend (io_uring) could
// satisfy the same interface without the dispatcher or scheduler
// changing, since both only ever see Deliver calls keyed by OpID.
type Backend interface {
	Register(fd int, read, write bool) error
	Modify(fd int, read, write bool) error
	Deregister(fd int) error
	// Wait blocks for at most timeout (clamped to >= 0 by the caller)
	// and appends ready events to dst, returning the extended slice.
	Wait(timeout time.Duration, dst []Event) ([]Event, error)
	// Wake causes a blocked Wait to return promptly.
	Wake()
	Close() error
}

// Poll performs the actual syscall for an armed fd-based operation once
// it becomes ready. ready is false on EAGAIN/EWOULDBLOCK, in which case
// the registration stays armed for the next readiness event on fd.
type Poll func() (result int32, buf []byte, ready bool)

// Deliver is called once per completed operation — kernel readiness
// event or timer firing — from the reactor thread. It must not block;
// its job is to remove the PendingOp from the table and schedule the
// bound callback onto a worker, which is exactly the dispatcher's
// responsibility (internal/dispatch.Dispatcher.HandleCompletion).
type Deliver func(opID uint64, result int32, buf []byte)

// ArmRequest is queued by Submit and drained at the top of the next
// turn. Install runs on the reactor thread and is responsible for
// either arming a fd-based Poll, inserting a timer entry, or calling
// deliver directly for a submission that completed (or failed)
// synchronously.
type ArmRequest struct {
	OpID    uint64
	Install func(r *Reactor)
}

type registration struct {
	opID uint64
	fd   int
	poll Poll
}

// Reactor owns the kernel interface, the timer wheel, and the armed-fd
// registrations. All of its state is touched exclusively by the Run
// goroutine; Submit is the one method safe to call from any thread.
type Reactor struct {
	backend Backend
	wheel   *timer.Wheel
	ring    *lfqueue.Queue[ArmRequest]
	waitCap time.Duration
	deliver Deliver

	byFd map[int]*registration

	fatalErr error
}

// New constructs a Reactor. deliver is invoked from the reactor thread
// for every kernel-readiness or timer completion; it must not block.
// The pending-op table itself is owned by the dispatcher the deliver
// closure is bound to, not by the Reactor — the reactor only produces
// (OpID, result, buf) triples, per the runtime's data model.
func New(backend Backend, wheel *timer.Wheel, waitCap time.Duration, deliver Deliver) *Reactor {
	return &Reactor{
		backend: backend,
		wheel:   wheel,
		ring:    lfqueue.New[ArmRequest](),
		waitCap: waitCap,
		deliver: deliver,
		byFd:    make(map[int]*registration),
	}
}

// Submit queues req for installation on the reactor thread and wakes
// the backend in case it is parked in Wait. Safe from any goroutine;
// this is the cross-thread half of the submission path described by
// the runtime's single-entry-point submit contract (OpId allocation
// itself happens synchronously in the caller via the pending table,
// before Submit is ever called).
func (r *Reactor) Submit(req ArmRequest) {
	r.ring.Enqueue(&req)
	r.backend.Wake()
}

// ArmFd registers a Poll against fd for the given interest. Must only
// be called from an ArmRequest.Install callback (i.e. on the reactor
// thread).
func (r *Reactor) ArmFd(opID uint64, fd int, read, write bool, poll Poll) error {
	r.byFd[fd] = &registration{opID: opID, fd: fd, poll: poll}
	return r.backend.Register(fd, read, write)
}

// InsertTimer installs a timer entry for opID firing at deadline. Must
// only be called from an Install callback.
func (r *Reactor) InsertTimer(opID uint64, deadline time.Time) {
	r.wheel.Insert(opID, deadline)
}

// CompleteNow delivers a completion immediately, for submissions whose
// syscall the Install callback performed inline (bind, listen, close
// and the like) or that failed before they could be armed.
func (r *Reactor) CompleteNow(opID uint64, result int32, buf []byte) {
	r.deliver(opID, result, buf)
}

// Cancel tombstones opID's timer entry, or deregisters its armed fd
// registration, and delivers -ECANCELED immediately rather than
// waiting for the timer's natural deadline or for kernel readiness
// that may never arrive. A no-op if opID refers to neither (already
// completed, or unknown). Must only be called from an Install callback
// (i.e. queued via Submit, never directly from another goroutine).
func (r *Reactor) Cancel(opID uint64) {
	if r.wheel.Cancel(opID) {
		r.deliver(opID, -ECANCELED, nil)
		return
	}
	for fd, reg := range r.byFd {
		if reg.opID == opID {
			delete(r.byFd, fd)
			_ = r.backend.Deregister(fd)
			r.deliver(opID, -ECANCELED, nil)
			return
		}
	}
}

// FatalErr returns the error that stopped Run, if Run stopped because
// of a backend failure rather than the stop channel closing.
func (r *Reactor) FatalErr() error {
	return r.fatalErr
}

// Run executes turns until stop is closed or the backend reports a
// fatal error, per the five-step turn algorithm: drain submissions,
// compute the capped wait, block on the backend, advance the timer
// wheel, then deliver every completion discovered this turn — kernel
// events before timers.
func (r *Reactor) Run(stop <-chan struct{}) {
	events := make([]Event, 0, 64)
	for {
		select {
		case <-stop:
			return
		default:
		}

		r.drainSubmissions()

		waitFor := r.waitCap
		if d, ok := r.wheel.NextDeadline(); ok {
			until := time.Until(d)
			if until < 0 {
				until = 0
			}
			if until < waitFor {
				waitFor = until
			}
		}
		if waitFor < 0 {
			waitFor = 0
		}

		events = events[:0]
		var err error
		events, err = r.backend.Wait(waitFor, events)
		if err != nil {
			r.fatalErr = err
			return
		}

		for _, ev := range events {
			r.handleEvent(ev)
		}

		for _, fired := range r.wheel.Advance(time.Now()) {
			result := int32(0)
			if fired.Cancelled {
				result = -ECANCELED
			}
			r.deliver(fired.OpID, result, nil)
		}
	}
}

func (r *Reactor) drainSubmissions() {
	for {
		req := r.ring.Dequeue()
		if req == nil {
			return
		}
		req.Install(r)
	}
}

func (r *Reactor) handleEvent(ev Event) {
	reg, ok := r.byFd[ev.Fd]
	if !ok {
		return
	}
	result, buf, ready := reg.poll()
	if !ready {
		return
	}
	delete(r.byFd, ev.Fd)
	_ = r.backend.Deregister(ev.Fd)
	r.deliver(reg.opID, result, buf)
}
