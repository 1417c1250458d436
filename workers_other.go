//go:build !linux

package lio

import "runtime"

// resolveDefaultWorkers falls back to the logical CPU count on
// platforms without the cgroup-quota reader (pkg/maxprocs/cpu is
// Linux-only, matching the teacher's own scope).
func resolveDefaultWorkers() int {
	return clampWorkers(runtime.NumCPU())
}
