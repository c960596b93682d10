package barrier

import (
	"fmt"
	"time"
)

// DefaultTimeout is the coordinator's default upper bound on any wait
// (spec §5 "Timeouts").
const DefaultTimeout = 5 * time.Second

// Barrier is the coordinator's side of the frame barrier: it owns both
// semaphores and knows the participant count N (spec §3.3, §4.2).
type Barrier struct {
	base string
	n    int
	step *semaphore
	done *semaphore
}

// StepName and DoneName return the two named semaphores derived from a
// base name (spec §6.3), used by module attachments to find the same
// pair the coordinator created.
func StepName(base string) string { return base + "_step" }
func DoneName(base string) string { return base + "_done" }

// Create creates both semaphores for a new barrier with n participants.
func Create(base string, n int) (*Barrier, error) {
	step, err := createSemaphore(StepName(base))
	if err != nil {
		return nil, fmt.Errorf("create step semaphore: %w", err)
	}
	done, err := createSemaphore(DoneName(base))
	if err != nil {
		step.destroy()
		return nil, fmt.Errorf("create done semaphore: %w", err)
	}
	return &Barrier{base: base, n: n, step: step, done: done}, nil
}

// Attachment is a module's handle on an existing barrier's semaphores.
// It has Detach but no Destroy (spec §5 "Resource ownership").
type Attachment struct {
	step *semaphore
	done *semaphore
}

// Attach maps both named semaphores for a module process.
func Attach(base string) (*Attachment, error) {
	step, err := attachSemaphore(StepName(base))
	if err != nil {
		return nil, fmt.Errorf("attach step semaphore: %w", err)
	}
	done, err := attachSemaphore(DoneName(base))
	if err != nil {
		step.detach()
		return nil, fmt.Errorf("attach done semaphore: %w", err)
	}
	return &Attachment{step: step, done: done}, nil
}

// WaitStep blocks until the coordinator releases this frame's step
// permit, or timeout elapses. It returns false on timeout, never
// silently (spec §4.2).
func (a *Attachment) WaitStep(timeout time.Duration) bool { return a.step.wait(timeout) }

// SignalDone posts one permit to the done semaphore. It always
// succeeds unless the semaphore has been destroyed (spec §4.2).
func (a *Attachment) SignalDone() { a.done.post(1) }

// Detach releases this module's mapping without unlinking the
// semaphores.
func (a *Attachment) Detach() error {
	err1 := a.step.detach()
	err2 := a.done.detach()
	if err1 != nil {
		return err1
	}
	return err2
}

// ReleaseStep posts n permits to the step semaphore, waking every
// module for the next frame (spec §4.2 "Coordinator" row).
func (b *Barrier) ReleaseStep(n int) { b.step.post(n) }

// WaitDone blocks for one module's completion permit. Coordinator-side
// callers iterate this once per module in configured execution order
// (spec §4.5 "this serialization within a frame is intentional").
// It returns false on timeout.
func (b *Barrier) WaitDone(timeout time.Duration) bool { return b.done.wait(timeout) }

// N returns the configured participant count.
func (b *Barrier) N() int { return b.n }

// Quiescent reports whether both semaphores currently read zero (spec
// §3.3 invariant, used by tests).
func (b *Barrier) Quiescent() bool { return b.step.value() == 0 && b.done.value() == 0 }

// Destroy unlinks both semaphores. Idempotent.
func (b *Barrier) Destroy() error {
	err1 := b.step.destroy()
	err2 := b.done.destroy()
	if err1 != nil {
		return err1
	}
	return err2
}
