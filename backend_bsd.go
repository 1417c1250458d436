//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package lio

import "github.com/lattice-run/lio/internal/reactor"

func newBackend() (reactor.Backend, error) {
	return reactor.NewKqueue()
}
