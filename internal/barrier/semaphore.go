// Package barrier implements the frame barrier described in spec §4.2:
// a pair of named, process-shared counting semaphores that rendezvous
// one coordinator and N module workers per frame.
package barrier

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
	"unsafe"
)

// semaphore is a named, process-shared counting semaphore backed by a
// single mmap'd uint32 word and futex wait/wake. Unlike a POSIX named
// semaphore (sem_open), this needs no cgo: the word lives in the same
// kind of /dev/shm-backed mapping as a backplane segment, and blocking
// is implemented with the raw Linux futex syscalls (see futex_linux.go)
// with a portable polling fallback elsewhere.
type semaphore struct {
	name string
	mem  []byte
	file *os.File
	word *uint32
}

func createSemaphore(name string) (*semaphore, error) {
	mem, f, err := createWord(name)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", errAlreadyExists, name)
		}
		return nil, err
	}
	return &semaphore{name: name, mem: mem, file: f, word: (*uint32)(unsafe.Pointer(&mem[0]))}, nil
}

func attachSemaphore(name string) (*semaphore, error) {
	mem, f, err := openWord(name)
	if err != nil {
		return nil, err
	}
	return &semaphore{name: name, mem: mem, file: f, word: (*uint32)(unsafe.Pointer(&mem[0]))}, nil
}

var errAlreadyExists = fmt.Errorf("semaphore already exists")

// post atomically increases the semaphore's count by n and wakes up to
// n waiters.
func (s *semaphore) post(n int) {
	atomic.AddUint32(s.word, uint32(n))
	futexWake(s.word, n)
}

// wait blocks until the count is > 0, then atomically decrements it by
// one, returning false on timeout, never silently (spec §4.2
// "Contracts"). timeout <= 0 is a non-blocking poll — spec §8.3's
// documented boundary is "wait_step(0) returns immediately with a
// pending release, or with timeout if none" — so it checks the count
// once and returns without ever calling into the futex wait syscall.
func (s *semaphore) wait(timeout time.Duration) bool {
	if timeout <= 0 {
		cur := atomic.LoadUint32(s.word)
		for cur > 0 {
			if atomic.CompareAndSwapUint32(s.word, cur, cur-1) {
				return true
			}
			cur = atomic.LoadUint32(s.word)
		}
		return false
	}

	deadline := time.Now().Add(timeout)
	for {
		cur := atomic.LoadUint32(s.word)
		if cur > 0 {
			if atomic.CompareAndSwapUint32(s.word, cur, cur-1) {
				return true
			}
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		futexWait(s.word, 0, remaining)
		if time.Now().After(deadline) {
			// One more check before giving up: a post may have
			// landed between the futex return and this check.
			if atomic.LoadUint32(s.word) == 0 {
				return false
			}
		}
	}
}

// value returns the current count, for tests and the "quiescent point"
// invariant (spec §3.3).
func (s *semaphore) value() uint32 { return atomic.LoadUint32(s.word) }

func (s *semaphore) detach() error {
	err := unmapWord(s.mem, s.file)
	s.mem, s.file = nil, nil
	return err
}

func (s *semaphore) destroy() error {
	detachErr := s.detach()
	unlinkErr := unlinkWord(s.name)
	if detachErr != nil {
		return detachErr
	}
	return unlinkErr
}
