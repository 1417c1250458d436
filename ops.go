package lio

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/lattice-run/lio/internal/pending"
	"github.com/lattice-run/lio/internal/reactor"
	"github.com/lattice-run/lio/internal/sockio"
)

// ResultCallback is the callback shape for opcodes whose completion
// carries nothing but a result — shutdown, symlinkat, linkat, fsync,
// truncate, bind, listen, close and timeout, per the runtime's
// callback-shape table.
type ResultCallback func(result int32)

// BufferCallback is the callback shape for opcodes that hand an owned
// buffer back on completion — write, read, send, recv. buf is the same
// slice that was submitted; result carries the byte count (or a
// negative errno) independently of len(buf).
type BufferCallback func(result int32, buf []byte)

// PeerCallback is accept's callback shape: result is the new fd (or a
// negative errno), and peer is the accepted peer's raw sockaddr, nil on
// error.
type PeerCallback func(result int32, peer []byte)

// negErrno converts a syscall error into the runtime's negative-errno
// result convention. A non-Errno error (shouldn't happen: every
// sockio call wraps the raw syscall) falls back to -EIO.
func negErrno(err error) int32 {
	if err == nil {
		return 0
	}
	if errno, ok := unwrapErrno(err); ok {
		return -int32(errno)
	}
	return EIO
}

// unwrapErrno walks err's Unwrap chain looking for the underlying
// unix.Errno — os.NewSyscallError wraps one for the opcodes sockio
// reports via os.SyscallError rather than a bare unix.Errno.
func unwrapErrno(err error) (unix.Errno, bool) {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if errno, ok := err.(unix.Errno); ok {
			return errno, true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}

func syncReject(cb ResultCallback, result int32) (uint64, error) {
	cb(result)
	return 0, nil
}

// Timeout submits a timer firing durationMs from now. A negative
// duration is rejected synchronously with -EINVAL and no OpId is
// allocated, per the runtime's design notes on the timeout opcode's
// unspecified-duration edge case.
func Timeout(durationMs int32, cb ResultCallback) (uint64, error) {
	if durationMs < 0 {
		return syncReject(cb, -int32(unix.EINVAL))
	}
	return submit(pending.PendingOp{
		Opcode:   pending.OpTimeout,
		Callback: func(result int32, _ []byte) { cb(result) },
	}, func(id uint64, r *reactor.Reactor) {
		r.InsertTimer(id, time.Now().Add(time.Duration(durationMs)*time.Millisecond))
	})
}

// Socket opens a non-blocking socket. The completion result is the new
// fd, or a negative errno.
func Socket(domain, sotype, proto int, cb ResultCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpSocket,
		Callback: func(result int32, _ []byte) { cb(result) },
	}, func(id uint64, r *reactor.Reactor) {
		fd, err := sockio.NewSocket(domain, sotype, proto)
		if err != nil {
			r.CompleteNow(id, negErrno(err), nil)
			return
		}
		r.CompleteNow(id, int32(fd), nil)
	})
}

// Bind binds fd to addr, a raw sockaddr exactly as the kernel would lay
// it out.
func Bind(fd int, addr []byte, cb ResultCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpBind,
		Callback: func(result int32, _ []byte) { cb(result) },
	}, func(id uint64, r *reactor.Reactor) {
		r.CompleteNow(id, negErrno(sockio.Bind(fd, addr)), nil)
	})
}

// Listen marks fd as a listening socket with the given backlog.
func Listen(fd, backlog int, cb ResultCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpListen,
		Callback: func(result int32, _ []byte) { cb(result) },
	}, func(id uint64, r *reactor.Reactor) {
		r.CompleteNow(id, negErrno(sockio.Listen(fd, backlog)), nil)
	})
}

// Accept waits for fd to become readable and accepts one connection.
// The peer's raw sockaddr is handed to cb on success, nil on error.
func Accept(fd int, cb PeerCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpAccept,
		Callback: func(result int32, buf []byte) { cb(result, buf) },
	}, func(id uint64, r *reactor.Reactor) {
		armAccept(id, fd, r)
	})
}

func armAccept(id uint64, fd int, r *reactor.Reactor) {
	if tryAccept(id, fd, r) {
		return
	}
	err := r.ArmFd(id, fd, true, false, func() (int32, []byte, bool) {
		return pollAccept(fd)
	})
	if err != nil {
		r.CompleteNow(id, negErrno(err), nil)
	}
}

func tryAccept(id uint64, fd int, r *reactor.Reactor) bool {
	result, buf, ready := pollAccept(fd)
	if !ready {
		return false
	}
	r.CompleteNow(id, result, buf)
	return true
}

func pollAccept(fd int) (int32, []byte, bool) {
	peerFd, peer, ready, err := sockio.Accept(fd)
	if !ready {
		return 0, nil, false
	}
	if err != nil {
		return negErrno(err), nil, true
	}
	return int32(peerFd), peer, true
}

// Connect initiates a non-blocking connect to addr, completing once the
// socket becomes writable and SO_ERROR confirms the outcome. Not part
// of the original ABI surface; added alongside bind/listen/accept to
// round out the protocol-level primitives the runtime's operation set
// otherwise leaves incomplete.
func Connect(fd int, addr []byte, cb ResultCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpConnect,
		Callback: func(result int32, _ []byte) { cb(result) },
	}, func(id uint64, r *reactor.Reactor) {
		armConnect(id, fd, addr, r)
	})
}

func armConnect(id uint64, fd int, addr []byte, r *reactor.Reactor) {
	ready, err := sockio.Connect(fd, addr)
	if ready {
		r.CompleteNow(id, negErrno(err), nil)
		return
	}
	armErr := r.ArmFd(id, fd, false, true, func() (int32, []byte, bool) {
		return negErrno(sockio.ConnectCompleted(fd)), nil, true
	})
	if armErr != nil {
		r.CompleteNow(id, negErrno(armErr), nil)
	}
}

// Send attempts a non-blocking send, arming fd for writability if the
// kernel buffer is currently full.
func Send(fd int, buf []byte, flags int32, cb BufferCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpSend,
		Buf:      buf,
		Callback: pending.Callback(cb),
	}, func(id uint64, r *reactor.Reactor) {
		armReadWrite(id, fd, false, true, r, func() (int32, []byte, bool) {
			return pollSend(fd, buf, flags)
		})
	})
}

func pollSend(fd int, buf []byte, flags int32) (int32, []byte, bool) {
	n, ready, err := sockio.Send(fd, buf, int(flags))
	if !ready {
		return 0, nil, false
	}
	if err != nil {
		return negErrno(err), buf, true
	}
	return int32(n), buf, true
}

// Recv attempts a non-blocking recv, arming fd for readability if no
// data is currently available.
func Recv(fd int, buf []byte, flags int32, cb BufferCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpRecv,
		Buf:      buf,
		Callback: pending.Callback(cb),
	}, func(id uint64, r *reactor.Reactor) {
		armReadWrite(id, fd, true, false, r, func() (int32, []byte, bool) {
			return pollRecv(fd, buf, flags)
		})
	})
}

func pollRecv(fd int, buf []byte, flags int32) (int32, []byte, bool) {
	n, ready, err := sockio.Recv(fd, buf, int(flags))
	if !ready {
		return 0, nil, false
	}
	if err != nil {
		return negErrno(err), buf, true
	}
	return int32(n), buf, true
}

// Write writes buf to fd at offset (-1 meaning the current file
// position), arming fd for writability if the write would block.
func Write(fd int, buf []byte, offset int64, cb BufferCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpWrite,
		Buf:      buf,
		Callback: pending.Callback(cb),
	}, func(id uint64, r *reactor.Reactor) {
		armReadWrite(id, fd, false, true, r, func() (int32, []byte, bool) {
			return pollWrite(fd, buf, offset)
		})
	})
}

func pollWrite(fd int, buf []byte, offset int64) (int32, []byte, bool) {
	n, ready, err := sockio.Write(fd, buf, offset)
	if !ready {
		return 0, nil, false
	}
	if err != nil {
		return negErrno(err), buf, true
	}
	return int32(n), buf, true
}

// Read reads into buf from fd at offset, arming fd for readability if
// no data is currently available. The byte count is carried in the
// result, independently of len(buf).
func Read(fd int, buf []byte, offset int64, cb BufferCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpRead,
		Buf:      buf,
		Callback: pending.Callback(cb),
	}, func(id uint64, r *reactor.Reactor) {
		armReadWrite(id, fd, true, false, r, func() (int32, []byte, bool) {
			return pollRead(fd, buf, offset)
		})
	})
}

func pollRead(fd int, buf []byte, offset int64) (int32, []byte, bool) {
	n, ready, err := sockio.Read(fd, buf, offset)
	if !ready {
		return 0, nil, false
	}
	if err != nil {
		return negErrno(err), buf, true
	}
	return int32(n), buf, true
}

// armReadWrite tries poll once inline before paying for a Register
// syscall; if the kernel isn't ready yet it arms fd for the requested
// interest and waits for the next readiness event.
func armReadWrite(id uint64, fd int, read, write bool, r *reactor.Reactor, poll reactor.Poll) {
	if result, buf, ready := poll(); ready {
		r.CompleteNow(id, result, buf)
		return
	}
	if err := r.ArmFd(id, fd, read, write, poll); err != nil {
		r.CompleteNow(id, negErrno(err), nil)
	}
}

// Close closes fd.
func Close(fd int, cb ResultCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpClose,
		Callback: func(result int32, _ []byte) { cb(result) },
	}, func(id uint64, r *reactor.Reactor) {
		r.CompleteNow(id, negErrno(sockio.Close(fd)), nil)
	})
}

// Shutdown shuts down fd's send and/or receive side per how
// (SHUT_RD/SHUT_WR/SHUT_RDWR).
func Shutdown(fd int, how int32, cb ResultCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpShutdown,
		Callback: func(result int32, _ []byte) { cb(result) },
	}, func(id uint64, r *reactor.Reactor) {
		r.CompleteNow(id, negErrno(sockio.Shutdown(fd, int(how))), nil)
	})
}

// Fsync flushes fd's data and metadata to its backing store.
func Fsync(fd int, cb ResultCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpFsync,
		Callback: func(result int32, _ []byte) { cb(result) },
	}, func(id uint64, r *reactor.Reactor) {
		r.CompleteNow(id, negErrno(sockio.Fsync(fd)), nil)
	})
}

// Truncate sets fd's length.
func Truncate(fd int, length int64, cb ResultCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpTruncate,
		Callback: func(result int32, _ []byte) { cb(result) },
	}, func(id uint64, r *reactor.Reactor) {
		r.CompleteNow(id, negErrno(sockio.Truncate(fd, length)), nil)
	})
}

// SymlinkAt creates a symlink at linkpath (relative to newDirFd)
// pointing at target.
func SymlinkAt(newDirFd int, target, linkpath string, cb ResultCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpSymlinkAt,
		Callback: func(result int32, _ []byte) { cb(result) },
	}, func(id uint64, r *reactor.Reactor) {
		r.CompleteNow(id, negErrno(sockio.SymlinkAt(target, newDirFd, linkpath)), nil)
	})
}

// LinkAt creates a hard link at (newDirFd, newpath) pointing at
// (oldDirFd, oldpath).
func LinkAt(oldDirFd int, oldpath string, newDirFd int, newpath string, cb ResultCallback) (uint64, error) {
	return submit(pending.PendingOp{
		Opcode:   pending.OpLinkAt,
		Callback: func(result int32, _ []byte) { cb(result) },
	}, func(id uint64, r *reactor.Reactor) {
		r.CompleteNow(id, negErrno(sockio.LinkAt(oldDirFd, oldpath, newDirFd, newpath)), nil)
	})
}
