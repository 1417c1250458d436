package lio

import (
	"github.com/brickingsoft/errors"
)

var (
	// ErrNotInited is returned by operations submitted before Init/TryInit
	// has completed successfully.
	ErrNotInited = errors.Define("runtime not initialized")
	// ErrAlreadyInited is returned by Init/TryInit when the runtime is past
	// the Uninit state.
	ErrAlreadyInited = errors.Define("runtime already initialized")
	// ErrStopped is returned by Submit once the runtime has entered
	// Stopping or Exited.
	ErrStopped = errors.Define("runtime stopped")
	// ErrExited marks a runtime that has exited and is matched by
	// IsStopped. No call in this package returns it: submissions made
	// after Exit return ErrStopped, and Stop and Exit return nil.
	ErrExited = errors.Define("runtime exited")
	// ErrQueueFull reports submission backpressure. No call in this
	// package returns it: the submission queue is unbounded and Enqueue
	// never fails.
	ErrQueueFull = errors.Define("submission queue full")
	// ErrInvalidArgument flags a synchronously-rejected submission, such as
	// a negative timer duration.
	ErrInvalidArgument = errors.Define("invalid argument")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "lio"
)

const (
	errMetaOpKey     = "op"
	errMetaOpInit    = "init"
	errMetaOpStart   = "start"
	errMetaOpStop    = "stop"
	errMetaOpExit    = "exit"
	errMetaOpSubmit  = "submit"
	errMetaOpTimeout = "timeout"
)

func newSubmitError(op string, cause error) error {
	return errors.New("submit failed",
		errors.WithWrap(cause),
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
	)
}

// IsNotInited reports whether err indicates the runtime has not been
// initialized yet.
func IsNotInited(err error) bool {
	return errors.Is(err, ErrNotInited)
}

// IsStopped reports whether err indicates the runtime is stopping or has
// stopped accepting new submissions.
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped) || errors.Is(err, ErrExited)
}

// IsQueueFull reports whether err is the terminal backpressure error.
func IsQueueFull(err error) bool {
	return errors.Is(err, ErrQueueFull)
}

// IsAlreadyInited reports whether err indicates TryInit was called on a
// runtime past the Uninit state.
func IsAlreadyInited(err error) bool {
	return errors.Is(err, ErrAlreadyInited)
}
