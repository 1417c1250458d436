// Package lio implements a multi-threaded, work-stealing async I/O
// runtime: a platform reactor (epoll on Linux, kqueue on Darwin/BSD)
// feeding a pending-operation table, a timer wheel, and a pool of
// worker goroutines that run user callbacks off the reactor thread.
//
// Submission is the single entry point into the runtime: each
// Submit-shaped function (Read, Write, Accept, Timeout, ...) allocates
// an operation identifier and hands installation to the reactor
// thread, returning immediately. The callback is always invoked
// exactly once, carrying a non-negative result on success or a negated
// errno on failure. It runs on a worker goroutine, except for a Timeout
// with a negative duration, whose -EINVAL callback runs inline before
// Timeout returns.
//
// The cabi subpackage exposes the same operation set across a
// C-compatible boundary for foreign callers.
package lio
