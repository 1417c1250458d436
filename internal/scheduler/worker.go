// Package scheduler implements the runtime's worker pool: N workers,
// each with a mutex-guarded local deque plus its own lock-free
// injector queue, under a work-stealing policy (push local, steal from
// a random victim on starvation, park when nothing is available).
package scheduler

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/lattice-run/lio/internal/lfqueue"
)

// Task is a ready closure handed down by the dispatcher. It must not
// block for long; it runs on a worker thread, never on the reactor
// thread.
type Task func()

// fairnessInterval is F in the scheduler's fairness rule: a worker must
// check its injector at least once every F consecutive local-deque
// pops, bounding starvation of externally-scheduled callbacks by
// cache-hot local work.
const fairnessInterval = 61

// stealParkMultiplier is the K = 4*N failed-steal-attempts threshold
// after which a worker parks on its parker.
const stealParkMultiplier = 4

// Worker owns one local deque and runs tasks popped from it, its
// injector, or stolen from a sibling, until the pool is stopped.
type Worker struct {
	id       int
	pool     *Pool
	mu       sync.Mutex
	deque    []Task
	injector *lfqueue.Queue[Task]
	wake     chan struct{}
	parked   atomic.Bool
	rng      *rand.Rand
}

func newWorker(id int, pool *Pool) *Worker {
	return &Worker{
		id:       id,
		pool:     pool,
		injector: lfqueue.New[Task](),
		wake:     make(chan struct{}, 1),
		rng:      rand.New(rand.NewSource(int64(id)*2654435761 + 1)),
	}
}

// pushLocal pushes t onto the tail of this worker's own deque. Nothing
// in the package calls it: every task, including work a callback
// submits, reaches a worker through PushInjector, and a local deque is
// filled only by the overflow of a steal.
func (w *Worker) pushLocal(t Task) {
	w.mu.Lock()
	w.deque = append(w.deque, t)
	w.mu.Unlock()
}

// PushInjector enqueues t on this worker's injector list and unparks it
// if it was parked. This is how the dispatcher round-robins ready
// closures onto workers.
func (w *Worker) PushInjector(t Task) {
	w.injector.Enqueue(&t)
	w.unpark()
}

func (w *Worker) unpark() {
	if w.parked.CompareAndSwap(true, false) {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

// popLocalLIFO pops from the tail of the local deque for cache locality.
func (w *Worker) popLocalLIFO() (Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.deque)
	if n == 0 {
		return nil, false
	}
	t := w.deque[n-1]
	w.deque = w.deque[:n-1]
	return t, true
}

// popInjectorFIFO pops the oldest task from the injector queue.
func (w *Worker) popInjectorFIFO() (Task, bool) {
	t := w.injector.Dequeue()
	if t == nil {
		return nil, false
	}
	return *t, true
}

// stealHalf removes half of the victim's local deque, rounded up, from
// its head (FIFO, the opposite end from the owner's LIFO pop) and returns
// them. Returns nil if the victim's deque is empty.
func (w *Worker) stealHalf() []Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.deque)
	if n == 0 {
		return nil
	}
	take := (n + 1) / 2
	if take == 0 {
		take = 1
	}
	stolen := make([]Task, take)
	copy(stolen, w.deque[:take])
	w.deque = w.deque[take:]
	return stolen
}

func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	sinceInjectorCheck := 0
	failedSteals := 0

	for {
		if w.pool.stopping.Load() && w.idle() {
			return
		}

		if sinceInjectorCheck >= fairnessInterval {
			sinceInjectorCheck = 0
			if t, ok := w.popInjectorFIFO(); ok {
				t()
				failedSteals = 0
				continue
			}
		}

		if t, ok := w.popLocalLIFO(); ok {
			sinceInjectorCheck++
			t()
			failedSteals = 0
			continue
		}

		if t, ok := w.popInjectorFIFO(); ok {
			sinceInjectorCheck = 0
			t()
			failedSteals = 0
			continue
		}

		if t, ok := w.pool.stealFrom(w); ok {
			failedSteals = 0
			t()
			continue
		}

		failedSteals++
		if failedSteals >= stealParkMultiplier*w.pool.n {
			w.park()
			failedSteals = 0
		}
	}
}

func (w *Worker) idle() bool {
	w.mu.Lock()
	empty := len(w.deque) == 0
	w.mu.Unlock()
	return empty && w.injector.Length() == 0
}

func (w *Worker) park() {
	w.parked.Store(true)
	select {
	case <-w.wake:
	case <-w.pool.stopSignal:
	}
	w.parked.Store(false)
}
