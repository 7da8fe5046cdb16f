package ksched

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// RunPinned pins the calling goroutine to its own OS thread and,
// if cpu >= 0, to that specific CPU, then runs fn. This is the Go
// analogue of the original kernel's single dispatcher running
// permanently on its one physical CPU: the teacher pins each io_uring
// queue's goroutine the same way because the ublk driver requires
// same-thread submission, and a simulated single-CPU scheduler has
// the identical requirement — one real OS thread must own dispatch for
// the ready-list invariants to mean anything.
func RunPinned(cpu int, fn func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if cpu >= 0 {
		var mask unix.CPUSet
		mask.Set(cpu)
		if err := unix.SchedSetaffinity(0, &mask); err != nil {
			klogAffinityWarning(err)
		}
	}

	fn()
}

// klogAffinityWarning is a narrow seam so affinity.go doesn't need to
// carry a *klog.Logger through RunPinned's signature just to report a
// non-fatal SchedSetaffinity failure.
var klogAffinityWarning = func(err error) {}
