//go:build linux

package barrier

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// futexWait blocks while *addr == expect, waking early if another
// process calls futexWake on the same word. It returns false only on
// timeout; a spurious wake (returns true) is harmless because callers
// always re-check the predicate in a loop.
func futexWait(addr *uint32, expect uint32, timeout time.Duration) bool {
	var ts *unix.Timespec
	if timeout > 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWaitShared),
		uintptr(expect),
		uintptr(unsafe.Pointer(ts)),
		0, 0,
	)
	return errno != unix.ETIMEDOUT
}

// futexWake wakes up to n waiters blocked on addr.
func futexWake(addr *uint32, n int) {
	unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWakeShared),
		uintptr(n),
		0, 0, 0,
	)
}

// The barrier's semaphore words live in a MAP_SHARED mmap crossing
// process boundaries, so FUTEX_PRIVATE_FLAG (which assumes a single
// address space) must not be used here — only the plain, process-shared
// futex operations are valid across the coordinator/module boundary.
const (
	futexWaitShared = 0 // FUTEX_WAIT
	futexWakeShared = 1 // FUTEX_WAKE
)
