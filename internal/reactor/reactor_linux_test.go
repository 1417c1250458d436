//go:build linux

package reactor_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lattice-run/lio/internal/pending"
	"github.com/lattice-run/lio/internal/reactor"
	"github.com/lattice-run/lio/internal/timer"
)

func newTestReactor(t *testing.T, deliver reactor.Deliver) (*reactor.Reactor, *pending.Table) {
	t.Helper()
	backend, err := reactor.NewEpoll()
	if err != nil {
		t.Fatalf("NewEpoll: %v", err)
	}
	table := pending.New(4)
	wheel := timer.New()
	r := reactor.New(backend, wheel, 50*time.Millisecond, deliver)
	return r, table
}

func TestReactorDeliversReadReadiness(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	readFd, writeFd := fds[0], fds[1]
	defer unix.Close(writeFd)

	results := make(chan int32, 1)
	r, table := newTestReactor(t, func(opID uint64, result int32, buf []byte) {
		results <- result
	})

	stop := make(chan struct{})
	go r.Run(stop)
	defer close(stop)

	id := table.Insert(pending.PendingOp{Opcode: pending.OpRead})
	r.Submit(reactor.ArmRequest{
		OpID: id,
		Install: func(r *reactor.Reactor) {
			buf := make([]byte, 8)
			_ = r.ArmFd(id, readFd, true, false, func() (int32, []byte, bool) {
				n, err := unix.Read(readFd, buf)
				if err != nil {
					if err == unix.EAGAIN {
						return 0, nil, false
					}
					return -1, nil, true
				}
				return int32(n), buf[:n], true
			})
		},
	})

	if _, err := unix.Write(writeFd, []byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case result := <-results:
		if result != 2 {
			t.Fatalf("result = %d, want 2", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for readiness completion")
	}
}

func TestReactorFiresTimer(t *testing.T) {
	results := make(chan int32, 1)
	r, table := newTestReactor(t, func(opID uint64, result int32, buf []byte) {
		results <- result
	})

	stop := make(chan struct{})
	go r.Run(stop)
	defer close(stop)

	id := table.Insert(pending.PendingOp{Opcode: pending.OpTimeout})
	r.Submit(reactor.ArmRequest{
		OpID: id,
		Install: func(r *reactor.Reactor) {
			r.InsertTimer(id, time.Now().Add(20*time.Millisecond))
		},
	})

	select {
	case result := <-results:
		if result != 0 {
			t.Fatalf("result = %d, want 0", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timer completion")
	}
}
