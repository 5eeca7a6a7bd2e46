//go:build !linux

package frame

import "runtime"

// NumProcessors returns the logical CPUs usable by the process.
func NumProcessors() int { return runtime.NumCPU() }
