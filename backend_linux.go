//go:build linux

package lio

import "github.com/lattice-run/lio/internal/reactor"

func newBackend() (reactor.Backend, error) {
	return reactor.NewEpoll()
}
