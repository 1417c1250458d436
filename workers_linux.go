//go:build linux

package lio

import (
	"runtime"

	"github.com/lattice-run/lio/pkg/maxprocs/cpu"
)

// resolveDefaultWorkers mirrors pkg/maxprocs's cgroup-quota-aware CPU
// count rather than a bare runtime.NumCPU(), so a container with a
// fractional CPU quota doesn't over-subscribe workers and induce the
// steal-thrashing the scheduler's fairness rule exists to bound.
func resolveDefaultWorkers() int {
	n := runtime.NumCPU()
	if quota, status, err := cpu.QuotaToGOMAXPROCS(minWorkers, cpu.DefaultRoundFunc); err == nil && status != cpu.QuotaUndefined {
		n = quota
	}
	return clampWorkers(n)
}
