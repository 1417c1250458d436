// Package pending implements the runtime's pending-operation table: a
// dense, generation-tagged slot vector keyed by the slot index held in
// the high 32 bits of an OpId. It is grounded on the driver.OpStore of the original
// implementation, strengthened from a hash map to a contiguous vector per
// the runtime's own free-list growth-by-doubling requirement.
package pending

import (
	"sync"
)

// Opcode identifies which operation a PendingOp represents. It mirrors
// the callback shapes of the C ABI.
type Opcode uint8

const (
	OpUnknown Opcode = iota
	OpSymlinkAt
	OpLinkAt
	OpFsync
	OpWrite
	OpRead
	OpTruncate
	OpSocket
	OpBind
	OpAccept
	OpListen
	OpConnect
	OpSend
	OpRecv
	OpClose
	OpTimeout
	OpShutdown
)

// Callback is the user closure bound to a submission. result follows
// kernel conventions: non-negative is a success payload, negative is
// -errno. buf is the ownership-transferred buffer, returned unmodified;
// it is nil for opcodes that don't own a buffer.
type Callback func(result int32, buf []byte)

// PendingOp is the record held in an occupied slot. It is created on
// submit and destroyed only once its callback has been invoked.
type PendingOp struct {
	Opcode    Opcode
	Buf       []byte
	Callback  Callback
	Seq       uint64
	cancelled bool
}

// WasCancelled reports whether this PendingOp had been cancelled before
// it was reaped from the table.
func (op PendingOp) WasCancelled() bool {
	return op.cancelled
}

type slot struct {
	generation uint32
	nextFree   int32 // meaningful only when occupied == false
	occupied   bool
	op         PendingOp
}

// Table is the contiguous vector of slots described by the runtime's
// data model: each slot is Free(next_free_index) or Occupied(PendingOp),
// with a per-slot generation counter. Insert runs on the submitting
// goroutine and Cancel on the cancelling one, Remove on the reactor
// thread, and Len and DrainAll in the lifecycle controller; writes are
// therefore not confined to the reactor thread, and a mutex serialises
// every method.
type Table struct {
	mu       sync.Mutex
	slots    []slot
	freeHead int32 // -1 means empty
	seq      uint64
}

// New returns an empty table with the given initial capacity (rounded up
// to at least 1). The table grows by doubling and never shrinks.
func New(initialCapacity int) *Table {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	t := &Table{
		slots:    make([]slot, 0, initialCapacity),
		freeHead: -1,
	}
	t.grow(initialCapacity)
	return t
}

func (t *Table) grow(n int) {
	start := len(t.slots)
	t.slots = append(t.slots, make([]slot, n)...)
	// Thread the new slots onto the free list, highest index first so
	// freeHead ends up pointing at start.
	for i := len(t.slots) - 1; i >= start; i-- {
		t.slots[i].nextFree = t.freeHead
		t.freeHead = int32(i)
	}
}

// Insert allocates a slot for op and returns its packed OpId. Growth
// doubles the table when the free list is exhausted; the table never
// shrinks for the process lifetime.
func (t *Table) Insert(op PendingOp) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.freeHead == -1 {
		cur := len(t.slots)
		grown := cur
		if grown == 0 {
			grown = 1
		}
		t.grow(grown)
	}

	idx := t.freeHead
	s := &t.slots[idx]
	t.freeHead = s.nextFree

	t.seq++
	op.Seq = t.seq
	s.occupied = true
	s.op = op

	return Pack(uint32(idx), s.generation)
}

// Remove atomically takes the PendingOp out of its slot, bumps the
// slot's generation (invalidating any stale OpId referring to it), and
// returns it to the free list. The second return value is false if id
// does not refer to a currently-occupied slot (already reaped, or a
// stale generation — a use-after-reap that must not panic).
func (t *Table) Remove(id uint64) (PendingOp, bool) {
	idx, gen := Unpack(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if int(idx) >= len(t.slots) {
		return PendingOp{}, false
	}
	s := &t.slots[idx]
	if !s.occupied || s.generation != gen {
		return PendingOp{}, false
	}

	op := s.op
	s.op = PendingOp{}
	s.occupied = false
	s.generation++
	s.nextFree = t.freeHead
	t.freeHead = int32(idx)

	return op, true
}

// Cancel marks the slot referenced by id as cancelled, if it is still
// occupied. It does not remove the slot: the reactor still reaps it on
// the next completion, delivering -ECANCELED to the callback per the
// runtime's cancellation contract.
func (t *Table) Cancel(id uint64) bool {
	idx, gen := Unpack(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if int(idx) >= len(t.slots) {
		return false
	}
	s := &t.slots[idx]
	if !s.occupied || s.generation != gen {
		return false
	}
	s.op.cancelled = true
	return true
}

// Cancelled reports whether the slot referenced by id has been marked
// cancelled. It returns false once the slot has been reaped; the
// dispatcher reads the flag from the removed op via WasCancelled.
func (t *Table) Cancelled(id uint64) bool {
	idx, gen := Unpack(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if int(idx) >= len(t.slots) {
		return false
	}
	s := &t.slots[idx]
	if !s.occupied || s.generation != gen {
		return false
	}
	return s.op.cancelled
}

// Len reports the number of currently-occupied slots. Used by the
// lifecycle controller to decide whether shutdown may proceed.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := range t.slots {
		if t.slots[i].occupied {
			n++
		}
	}
	return n
}

// DrainAll removes every occupied slot and returns its PendingOps, used
// by the lifecycle controller on a fatal reactor error to invoke every
// outstanding callback with -EIO.
func (t *Table) DrainAll() []PendingOp {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]PendingOp, 0)
	for i := range t.slots {
		s := &t.slots[i]
		if s.occupied {
			out = append(out, s.op)
			s.op = PendingOp{}
			s.occupied = false
			s.generation++
			s.nextFree = t.freeHead
			t.freeHead = int32(i)
		}
	}
	return out
}
