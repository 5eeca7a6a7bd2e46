//go:build linux

package frame

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// NumProcessors returns the CPUs this process may run on. The affinity mask
// is narrower than runtime.NumCPU inside cgroups/taskset.
func NumProcessors() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return runtime.NumCPU()
	}
	if n := set.Count(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}
