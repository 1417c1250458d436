//go:build linux

package reactor

import (
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// epollBackend adapts epoll_create1 plus an eventfd wake channel into
// the Backend interface. Level-triggered, matching the readiness model
// the runtime's Poll-and-retry contract expects.
type epollBackend struct {
	fd  int
	wfd int
}

// NewEpoll opens a fresh epoll instance with an eventfd registered for
// Wake.
func NewEpoll() (Backend, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("eventfd2", err)
	}
	b := &epollBackend{fd: fd, wfd: wfd}
	if err := unix.EpollCtl(fd, unix.EPOLL_CTL_ADD, wfd, &unix.EpollEvent{Fd: int32(wfd), Events: unix.EPOLLIN}); err != nil {
		_ = unix.Close(wfd)
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("epoll_ctl", err)
	}
	return b, nil
}

func epollEvents(read, write bool) uint32 {
	var ev uint32
	if read {
		ev |= unix.EPOLLIN
	}
	if write {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (b *epollBackend) Register(fd int, read, write bool) error {
	err := unix.EpollCtl(b.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: epollEvents(read, write)})
	if err != nil {
		return os.NewSyscallError("epoll_ctl add", err)
	}
	return nil
}

func (b *epollBackend) Modify(fd int, read, write bool) error {
	err := unix.EpollCtl(b.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: epollEvents(read, write)})
	if err != nil {
		return os.NewSyscallError("epoll_ctl mod", err)
	}
	return nil
}

func (b *epollBackend) Deregister(fd int) error {
	err := unix.EpollCtl(b.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil {
		return os.NewSyscallError("epoll_ctl del", err)
	}
	return nil
}

func (b *epollBackend) Wake() {
	var x uint64 = 1
	buf := (*(*[8]byte)(unsafe.Pointer(&x)))[:]
	_, _ = unix.Write(b.wfd, buf)
}

func (b *epollBackend) Wait(timeout time.Duration, dst []Event) ([]Event, error) {
	msec := int(timeout / time.Millisecond)
	if timeout > 0 && msec == 0 {
		msec = 1
	}
	if timeout < 0 {
		msec = -1
	}

	raw := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(b.fd, raw, msec)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, os.NewSyscallError("epoll_wait", err)
	}

	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == b.wfd {
			var drain [8]byte
			_, _ = unix.Read(b.wfd, drain[:])
			continue
		}
		dst = append(dst, Event{
			Fd:       fd,
			Readable: raw[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: raw[i].Events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0,
		})
	}
	return dst, nil
}

func (b *epollBackend) Close() error {
	_ = unix.Close(b.wfd)
	return unix.Close(b.fd)
}
