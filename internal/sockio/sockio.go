package sockio

import (
	"os"

	"golang.org/x/sys/unix"
)

// NewSocket opens a non-blocking, close-on-exec socket, falling back to
// a separate fcntl dance on kernels that reject the combined
// SOCK_NONBLOCK|SOCK_CLOEXEC flags — the same compatibility shape the
// pack's higher-level socket constructor uses.
func NewSocket(domain, sotype, proto int) (int, error) {
	fd, err := unix.Socket(domain, sotype|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err == nil {
		return fd, nil
	}
	if err != unix.EPROTONOSUPPORT && err != unix.EINVAL {
		return -1, os.NewSyscallError("socket", err)
	}

	fd, err = unix.Socket(domain, sotype, proto)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, os.NewSyscallError("setnonblock", err)
	}
	return fd, nil
}

// Bind binds fd to the address encoded in raw sockaddr bytes.
func Bind(fd int, raw []byte) error {
	sa, err := ToUnixSockaddr(raw)
	if err != nil {
		return err
	}
	return unix.Bind(fd, sa)
}

// Listen marks fd as a listening socket with the given backlog.
func Listen(fd, backlog int) error {
	return unix.Listen(fd, backlog)
}

// Accept attempts a non-blocking accept on fd. ready is false on
// EAGAIN/EWOULDBLOCK, signalling the caller should retry once fd is
// readable again.
func Accept(fd int) (peerFd int, peer []byte, ready bool, err error) {
	nfd, sa, aerr := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if aerr != nil {
		if aerr == unix.EAGAIN || aerr == unix.EWOULDBLOCK {
			return 0, nil, false, nil
		}
		return 0, nil, true, aerr
	}
	return nfd, FromUnixSockaddr(sa), true, nil
}

// Connect attempts a non-blocking connect on fd. ready is false while
// the connect is still in progress (EINPROGRESS/EALREADY); the caller
// should retry the completion check once fd is writable.
func Connect(fd int, raw []byte) (ready bool, err error) {
	sa, perr := ToUnixSockaddr(raw)
	if perr != nil {
		return true, perr
	}
	cerr := unix.Connect(fd, sa)
	if cerr == nil {
		return true, nil
	}
	if cerr == unix.EINPROGRESS || cerr == unix.EALREADY {
		return false, nil
	}
	return true, cerr
}

// ConnectCompleted checks SO_ERROR on fd once it becomes writable,
// which is how a non-blocking connect's outcome is discovered.
func ConnectCompleted(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// Send attempts a non-blocking send on fd.
func Send(fd int, buf []byte, flags int) (n int, ready bool, err error) {
	n, serr := unix.SendmsgN(fd, buf, nil, nil, flags)
	if serr != nil {
		if serr == unix.EAGAIN || serr == unix.EWOULDBLOCK {
			return 0, false, nil
		}
		return 0, true, serr
	}
	return n, true, nil
}

// Recv attempts a non-blocking recv on fd.
func Recv(fd int, buf []byte, flags int) (n int, ready bool, err error) {
	n, _, rerr := unix.Recvfrom(fd, buf, flags)
	if rerr != nil {
		if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK {
			return 0, false, nil
		}
		return 0, true, rerr
	}
	return n, true, nil
}

// Read attempts a non-blocking read, honoring offset (-1 meaning the
// current file position) via pread when an explicit offset is given.
func Read(fd int, buf []byte, offset int64) (n int, ready bool, err error) {
	var rerr error
	if offset < 0 {
		n, rerr = unix.Read(fd, buf)
	} else {
		n, rerr = unix.Pread(fd, buf, offset)
	}
	if rerr != nil {
		if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK {
			return 0, false, nil
		}
		return 0, true, rerr
	}
	return n, true, nil
}

// Write attempts a non-blocking write, honoring offset as Read does.
func Write(fd int, buf []byte, offset int64) (n int, ready bool, err error) {
	var werr error
	if offset < 0 {
		n, werr = unix.Write(fd, buf)
	} else {
		n, werr = unix.Pwrite(fd, buf, offset)
	}
	if werr != nil {
		if werr == unix.EAGAIN || werr == unix.EWOULDBLOCK {
			return 0, false, nil
		}
		return 0, true, werr
	}
	return n, true, nil
}

// Fsync, Truncate, SymlinkAt, LinkAt and Shutdown are blocking-free at
// the syscall level on regular files/sockets and complete synchronously
// from the submitting goroutine's point of view; the runtime still
// routes them through the reactor so the callback-runs-on-a-worker
// contract is uniform across every opcode.

func Fsync(fd int) error {
	return unix.Fsync(fd)
}

func Truncate(fd int, length int64) error {
	return unix.Ftruncate(fd, length)
}

func SymlinkAt(target string, newDirFd int, linkpath string) error {
	return unix.Symlinkat(target, newDirFd, linkpath)
}

func LinkAt(oldDirFd int, oldpath string, newDirFd int, newpath string) error {
	return unix.Linkat(oldDirFd, oldpath, newDirFd, newpath, 0)
}

func Shutdown(fd, how int) error {
	return unix.Shutdown(fd, how)
}

func Close(fd int) error {
	return unix.Close(fd)
}
