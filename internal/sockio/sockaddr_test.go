package sockio_test

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/lattice-run/lio/internal/sockio"
)

func TestSockaddrInet4RoundTrip(t *testing.T) {
	want := &unix.SockaddrInet4{Port: 8080, Addr: [4]byte{127, 0, 0, 1}}
	raw := sockio.FromUnixSockaddr(want)

	got, err := sockio.ToUnixSockaddr(raw)
	if err != nil {
		t.Fatalf("ToUnixSockaddr: %v", err)
	}
	gotInet4, ok := got.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("got %T, want *unix.SockaddrInet4", got)
	}
	if gotInet4.Port != want.Port || gotInet4.Addr != want.Addr {
		t.Fatalf("round trip = %+v, want %+v", gotInet4, want)
	}
}

func TestSockaddrInet6RoundTrip(t *testing.T) {
	want := &unix.SockaddrInet6{Port: 9090, Addr: [16]byte{0: 0xfe, 1: 0x80, 15: 1}}
	raw := sockio.FromUnixSockaddr(want)

	got, err := sockio.ToUnixSockaddr(raw)
	if err != nil {
		t.Fatalf("ToUnixSockaddr: %v", err)
	}
	gotInet6, ok := got.(*unix.SockaddrInet6)
	if !ok {
		t.Fatalf("got %T, want *unix.SockaddrInet6", got)
	}
	if gotInet6.Port != want.Port || gotInet6.Addr != want.Addr {
		t.Fatalf("round trip = %+v, want %+v", gotInet6, want)
	}
}

func TestToUnixSockaddrRejectsShortBuffer(t *testing.T) {
	if _, err := sockio.ToUnixSockaddr([]byte{1}); err == nil {
		t.Fatal("expected an error for a too-short sockaddr")
	}
}

func TestToUnixSockaddrRejectsUnknownFamily(t *testing.T) {
	raw := make([]byte, 16)
	raw[0] = 0xff
	raw[1] = 0xff
	if _, err := sockio.ToUnixSockaddr(raw); err == nil {
		t.Fatal("expected an error for an unsupported family")
	}
}
