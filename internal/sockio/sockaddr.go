// Package sockio provides the raw-pointer socket syscalls the C ABI's
// socket/bind/accept/connect opcodes need. Unlike a net.Addr-oriented
// socket layer, it speaks the same currency the ABI does: byte slices
// that are exactly a kernel sockaddr, addressed by family tag, never a
// parsed Go address.
package sockio

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// ToUnixSockaddr parses a raw sockaddr byte slice — as handed across
// the C ABI boundary — into the golang.org/x/sys/unix.Sockaddr the
// syscall wrappers expect. It supports AF_INET, AF_INET6 and AF_UNIX;
// any other family is reported as an error rather than guessed at.
func ToUnixSockaddr(raw []byte) (unix.Sockaddr, error) {
	if len(raw) < 2 {
		return nil, unix.EINVAL
	}
	family := binary.LittleEndian.Uint16(raw[0:2])

	switch family {
	case unix.AF_INET:
		if len(raw) < 8 {
			return nil, unix.EINVAL
		}
		sa := &unix.SockaddrInet4{
			Port: int(binary.BigEndian.Uint16(raw[2:4])),
		}
		copy(sa.Addr[:], raw[4:8])
		return sa, nil

	case unix.AF_INET6:
		if len(raw) < 28 {
			return nil, unix.EINVAL
		}
		sa := &unix.SockaddrInet6{
			Port:   int(binary.BigEndian.Uint16(raw[2:4])),
			ZoneId: binary.LittleEndian.Uint32(raw[24:28]),
		}
		copy(sa.Addr[:], raw[8:24])
		return sa, nil

	case unix.AF_UNIX:
		path := raw[2:]
		if i := indexZero(path); i >= 0 {
			path = path[:i]
		}
		return &unix.SockaddrUnix{Name: string(path)}, nil

	default:
		return nil, unix.EAFNOSUPPORT
	}
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

// FromUnixSockaddr encodes sa back into raw sockaddr bytes, sized and
// laid out the way the kernel would have written them — used to hand
// the accepted peer address back across the ABI as a sockaddr_storage.
func FromUnixSockaddr(sa unix.Sockaddr) []byte {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		raw := make([]byte, 16)
		binary.LittleEndian.PutUint16(raw[0:2], unix.AF_INET)
		binary.BigEndian.PutUint16(raw[2:4], uint16(a.Port))
		copy(raw[4:8], a.Addr[:])
		return raw

	case *unix.SockaddrInet6:
		raw := make([]byte, 28)
		binary.LittleEndian.PutUint16(raw[0:2], unix.AF_INET6)
		binary.BigEndian.PutUint16(raw[2:4], uint16(a.Port))
		copy(raw[8:24], a.Addr[:])
		binary.LittleEndian.PutUint32(raw[24:28], a.ZoneId)
		return raw

	case *unix.SockaddrUnix:
		raw := make([]byte, 2+len(a.Name)+1)
		binary.LittleEndian.PutUint16(raw[0:2], unix.AF_UNIX)
		copy(raw[2:], a.Name)
		return raw

	default:
		return nil
	}
}
