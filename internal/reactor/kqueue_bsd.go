//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// kqueueBackend adapts kqueue plus a self-pipe wake mechanism into the
// Backend interface, for the readiness-based BSD/Darwin fallback.
type kqueueBackend struct {
	fd       int
	wakeR    int
	wakeW    int
	interest map[int]struct{ read, write bool }
}

// NewKqueue opens a fresh kqueue instance with a self-pipe registered
// for Wake.
func NewKqueue() (Backend, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("pipe", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("setnonblock", err)
	}
	b := &kqueueBackend{fd: fd, wakeR: fds[0], wakeW: fds[1], interest: make(map[int]struct{ read, write bool })}
	change := unix.Kevent_t{}
	unix.SetKevent(&change, b.wakeR, unix.EVFILT_READ, unix.EV_ADD)
	if _, err := unix.Kevent(fd, []unix.Kevent_t{change}, nil, nil); err != nil {
		_ = b.Close()
		return nil, os.NewSyscallError("kevent", err)
	}
	return b, nil
}

func (b *kqueueBackend) applyInterest(fd int, read, write bool) error {
	var changes []unix.Kevent_t
	prev := b.interest[fd]

	if read != prev.read {
		kv := unix.Kevent_t{}
		flag := uint16(unix.EV_ADD)
		if !read {
			flag = unix.EV_DELETE
		}
		unix.SetKevent(&kv, fd, unix.EVFILT_READ, int(flag))
		changes = append(changes, kv)
	}
	if write != prev.write {
		kv := unix.Kevent_t{}
		flag := uint16(unix.EV_ADD)
		if !write {
			flag = unix.EV_DELETE
		}
		unix.SetKevent(&kv, fd, unix.EVFILT_WRITE, int(flag))
		changes = append(changes, kv)
	}
	b.interest[fd] = struct{ read, write bool }{read, write}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(b.fd, changes, nil, nil)
	return err
}

func (b *kqueueBackend) Register(fd int, read, write bool) error {
	return b.applyInterest(fd, read, write)
}

func (b *kqueueBackend) Modify(fd int, read, write bool) error {
	return b.applyInterest(fd, read, write)
}

func (b *kqueueBackend) Deregister(fd int) error {
	err := b.applyInterest(fd, false, false)
	delete(b.interest, fd)
	return err
}

func (b *kqueueBackend) Wake() {
	_, _ = unix.Write(b.wakeW, []byte{0})
}

func (b *kqueueBackend) Wait(timeout time.Duration, dst []Event) ([]Event, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		s := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &s
	}

	raw := make([]unix.Kevent_t, 64)
	n, err := unix.Kevent(b.fd, nil, raw, ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, os.NewSyscallError("kevent", err)
	}

	byFd := make(map[int]*Event)
	for i := 0; i < n; i++ {
		fd := int(raw[i].Ident)
		if fd == b.wakeR {
			var drain [64]byte
			_, _ = unix.Read(b.wakeR, drain[:])
			continue
		}
		e, ok := byFd[fd]
		if !ok {
			e = &Event{Fd: fd}
			byFd[fd] = e
		}
		switch raw[i].Filter {
		case unix.EVFILT_READ:
			e.Readable = true
		case unix.EVFILT_WRITE:
			e.Writable = true
		}
		if raw[i].Flags&unix.EV_EOF != 0 {
			e.Readable = true
			e.Writable = true
		}
	}
	for _, e := range byFd {
		dst = append(dst, *e)
	}
	return dst, nil
}

func (b *kqueueBackend) Close() error {
	_ = unix.Close(b.wakeR)
	_ = unix.Close(b.wakeW)
	return unix.Close(b.fd)
}
