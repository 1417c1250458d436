// Package main is the C-ABI shim: it adapts the lio package's
// Go-native Submit* functions into the extern "C" callback surface
// described by the original include/lio.h, so a foreign caller built
// against a C toolchain can drive the runtime without linking Go
// directly. Build with `go build -buildmode=c-shared` to produce
// liblio.{so,dylib}.
package main

/*
#include <stdint.h>
#include <stdlib.h>
#include <string.h>
#include <sys/socket.h>

typedef void (*lio_result_cb)(int32_t);
typedef void (*lio_buffer_cb)(int32_t, uint8_t*, uintptr_t);
typedef void (*lio_peer_cb)(int32_t, const void*);

static inline void lio_call_result_cb(lio_result_cb cb, int32_t result) {
	cb(result);
}

static inline void lio_call_buffer_cb(lio_buffer_cb cb, int32_t result, uint8_t *buf, uintptr_t len) {
	cb(result, buf, len);
}

static inline void lio_call_peer_cb(lio_peer_cb cb, int32_t result, const void *addr) {
	cb(result, addr);
}
*/
import "C"

import (
	"unsafe"

	"github.com/lattice-run/lio"
)

// resultCB wraps a C function pointer of type lio_result_cb as a
// lio.ResultCallback. The trampoline in the cgo preamble exists because
// cgo cannot call a C function pointer directly from Go.
func resultCB(cb C.lio_result_cb) lio.ResultCallback {
	return func(result int32) {
		C.lio_call_result_cb(cb, C.int32_t(result))
	}
}

// bufferCB wraps a C function pointer of type lio_buffer_cb. A non-empty
// buf is the same malloc'd memory the caller originally submitted —
// Go never copies it, only aliases it via unsafe.Slice, so the pointer
// handed back to C here is the one the caller must free. A zero-length
// buffer is not aliased (see cBuf), so its callback receives a NULL
// pointer with length 0, not the submitted pointer.
func bufferCB(cb C.lio_buffer_cb) lio.BufferCallback {
	return func(result int32, buf []byte) {
		var ptr *C.uint8_t
		if len(buf) > 0 {
			ptr = (*C.uint8_t)(unsafe.Pointer(&buf[0]))
		}
		C.lio_call_buffer_cb(cb, C.int32_t(result), ptr, C.uintptr_t(len(buf)))
	}
}

// peerCB wraps a C function pointer of type lio_peer_cb. Unlike
// bufferCB, the peer address Go produces is its own byte slice, not
// caller-owned memory — it is copied into a freshly malloc'd block so
// the ownership contract ("caller must free on success") still holds.
func peerCB(cb C.lio_peer_cb) lio.PeerCallback {
	return func(result int32, peer []byte) {
		var ptr unsafe.Pointer
		if len(peer) > 0 {
			ptr = C.malloc(C.size_t(len(peer)))
			if ptr != nil {
				C.memcpy(ptr, unsafe.Pointer(&peer[0]), C.size_t(len(peer)))
			}
		}
		C.lio_call_peer_cb(cb, C.int32_t(result), ptr)
	}
}

// cBuf aliases a C-owned buffer as a Go byte slice without copying. The
// caller retains the allocation; lio only ever reads or writes within
// [0, length).
func cBuf(buf *C.uint8_t, length C.uintptr_t) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(length))
}

//export lio_init
func lio_init() {
	lio.Init()
}

//export lio_try_init
func lio_try_init() C.int {
	if err := lio.TryInit(); err != nil {
		return -1
	}
	return 0
}

//export lio_start
func lio_start() {
	if err := lio.Start(); err != nil {
		panic(err)
	}
}

//export lio_stop
func lio_stop() {
	_ = lio.Stop()
}

//export lio_exit
func lio_exit() {
	_ = lio.Exit()
}

//export lio_shutdown
func lio_shutdown(fd C.int, how C.int32_t, cb C.lio_result_cb) {
	_, _ = lio.Shutdown(int(fd), int32(how), resultCB(cb))
}

//export lio_symlinkat
func lio_symlinkat(newDirFd C.int, target, linkpath *C.char, cb C.lio_result_cb) {
	_, _ = lio.SymlinkAt(int(newDirFd), C.GoString(target), C.GoString(linkpath), resultCB(cb))
}

//export lio_linkat
func lio_linkat(oldDirFd C.int, oldPath *C.char, newDirFd C.int, newPath *C.char, cb C.lio_result_cb) {
	_, _ = lio.LinkAt(int(oldDirFd), C.GoString(oldPath), int(newDirFd), C.GoString(newPath), resultCB(cb))
}

//export lio_fsync
func lio_fsync(fd C.int, cb C.lio_result_cb) {
	_, _ = lio.Fsync(int(fd), resultCB(cb))
}

//export lio_write
func lio_write(fd C.int, buf *C.uint8_t, bufLen C.uintptr_t, offset C.int64_t, cb C.lio_buffer_cb) {
	_, _ = lio.Write(int(fd), cBuf(buf, bufLen), int64(offset), bufferCB(cb))
}

//export lio_read
func lio_read(fd C.int, buf *C.uint8_t, bufLen C.uintptr_t, offset C.int64_t, cb C.lio_buffer_cb) {
	_, _ = lio.Read(int(fd), cBuf(buf, bufLen), int64(offset), bufferCB(cb))
}

//export lio_truncate
func lio_truncate(fd C.int, length C.uint64_t, cb C.lio_result_cb) {
	_, _ = lio.Truncate(int(fd), int64(length), resultCB(cb))
}

//export lio_socket
func lio_socket(domain, ty, proto C.int32_t, cb C.lio_result_cb) {
	_, _ = lio.Socket(int(domain), int(ty), int(proto), resultCB(cb))
}

//export lio_bind
func lio_bind(fd C.int, sock unsafe.Pointer, sockLen *C.socklen_t, cb C.lio_result_cb) {
	raw := C.GoBytes(sock, C.int(*sockLen))
	_, _ = lio.Bind(int(fd), raw, resultCB(cb))
}

//export lio_accept
func lio_accept(fd C.int, cb C.lio_peer_cb) {
	_, _ = lio.Accept(int(fd), peerCB(cb))
}

//export lio_listen
func lio_listen(fd C.int, backlog C.int32_t, cb C.lio_result_cb) {
	_, _ = lio.Listen(int(fd), int(backlog), resultCB(cb))
}

//export lio_connect
func lio_connect(fd C.int, sock unsafe.Pointer, sockLen C.socklen_t, cb C.lio_result_cb) {
	raw := C.GoBytes(sock, C.int(sockLen))
	_, _ = lio.Connect(int(fd), raw, resultCB(cb))
}

//export lio_send
func lio_send(fd C.int, buf *C.uint8_t, bufLen C.uintptr_t, flags C.int32_t, cb C.lio_buffer_cb) {
	_, _ = lio.Send(int(fd), cBuf(buf, bufLen), int32(flags), bufferCB(cb))
}

//export lio_recv
func lio_recv(fd C.int, buf *C.uint8_t, bufLen C.uintptr_t, flags C.int32_t, cb C.lio_buffer_cb) {
	_, _ = lio.Recv(int(fd), cBuf(buf, bufLen), int32(flags), bufferCB(cb))
}

//export lio_close
func lio_close(fd C.int, cb C.lio_result_cb) {
	_, _ = lio.Close(int(fd), resultCB(cb))
}

//export lio_timeout
func lio_timeout(millis C.int, cb C.lio_result_cb) {
	_, _ = lio.Timeout(int32(millis), resultCB(cb))
}

func main() {}
