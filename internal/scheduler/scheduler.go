// Package scheduler drives the simulation clock described in spec
// §4.6: it advances frames through the process manager, paces them to
// wall-clock or runs them as-fast-as-possible, and exposes
// pause/resume/stop safe to call from any goroutine.
package scheduler

import (
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"
)

// Mode selects the pacing strategy for run() (spec §4.6 "State").
type Mode int

const (
	Realtime Mode = iota
	AFAP
	SingleFrame
)

func (m Mode) String() string {
	switch m {
	case Realtime:
		return "realtime"
	case AFAP:
		return "afap"
	case SingleFrame:
		return "single_frame"
	default:
		return "unknown"
	}
}

// ParseMode parses the config-level spelling of a mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "realtime":
		return Realtime, nil
	case "afap":
		return AFAP, nil
	case "single_frame":
		return SingleFrame, nil
	default:
		return 0, fmt.Errorf("unknown scheduler mode %q", s)
	}
}

// DtNs computes dt_ns = round(1e9 / rate_hz) (spec §3.1, §4.6). Error
// against the requested rate is bounded by 0.5 ns per frame and never
// compounds because time_ns is always frame*dt_ns, never accumulated.
func DtNs(rateHz float64) uint64 {
	return uint64(math.Round(1e9 / rateHz))
}

// stepper is the process manager surface the scheduler drives. It is
// an interface so tests can exercise run() without any real backplane
// or barrier resources.
type stepper interface {
	StepAll(frame, timeNs uint64) error
}

// Callback is invoked once per completed frame, from the run() loop's
// own goroutine (spec §4.6 "run(callback)").
type Callback func(frame, timeNs uint64)

// AFAPYieldEvery is how often (in frames) the AFAP loop yields to let
// a host event loop service I/O (spec §4.6 step 6).
const AFAPYieldEvery = 100

// pausedPollInterval bounds how long a paused run() loop sleeps
// between checks of paused/running (spec §4.6 step 2: "≤ 10 ms").
const pausedPollInterval = 10 * time.Millisecond

// singleFramePollInterval is the sleep single-frame mode uses while
// waiting for an external Step call (spec §4.6 step 3).
const singleFramePollInterval = 10 * time.Millisecond

// Scheduler owns the simulation clock state. Every exported method is
// safe to call from a goroutine other than the one executing Run
// (spec §4.6 "Cancellation").
type Scheduler struct {
	step stepper
	mode Mode
	dtNs uint64

	endTimeNs uint64
	hasEnd    bool

	frame  atomic.Uint64
	timeNs atomic.Uint64

	running atomic.Bool
	paused  atomic.Bool
}

// New builds a scheduler at rate rateHz in mode, driving step through
// the process manager (or a stub, in tests).
func New(step stepper, rateHz float64, mode Mode, endTimeNs uint64, hasEnd bool) (*Scheduler, error) {
	if rateHz <= 0 {
		return nil, fmt.Errorf("rate_hz must be > 0, got %v", rateHz)
	}
	return &Scheduler{
		step:      step,
		mode:      mode,
		dtNs:      DtNs(rateHz),
		endTimeNs: endTimeNs,
		hasEnd:    hasEnd,
	}, nil
}

// Frame and TimeNs read the current clock state.
func (s *Scheduler) Frame() uint64  { return s.frame.Load() }
func (s *Scheduler) TimeNs() uint64 { return s.timeNs.Load() }
func (s *Scheduler) DtNs() uint64   { return s.dtNs }

// Stage zeroes the clock (spec §4.6 "stage()"). Call once, before the
// first Step or Run.
func (s *Scheduler) Stage() {
	s.frame.Store(0)
	s.timeNs.Store(0)
}

// Step advances the clock by n frames, calling the process manager's
// StepAll once per frame (spec §4.6 "step(n = 1)"): frame += 1,
// time_ns = frame*dt_ns computed fresh each time, never accumulated.
func (s *Scheduler) Step(n int) error {
	for i := 0; i < n; i++ {
		frame := s.frame.Add(1)
		timeNs := frame * s.dtNs
		s.timeNs.Store(timeNs)
		if err := s.step.StepAll(frame, timeNs); err != nil {
			return err
		}
	}
	return nil
}

// Run drives frames until Stop is called, end_time_ns is reached, or
// the process manager returns an error (spec §4.6 "run(callback)").
func (s *Scheduler) Run(callback Callback) error {
	s.running.Store(true)
	defer s.running.Store(false)

	wallStart := time.Now()
	frames := 0

	for s.running.Load() {
		if s.hasEnd && s.timeNs.Load() >= s.endTimeNs {
			return nil
		}
		if s.paused.Load() {
			time.Sleep(pausedPollInterval)
			continue
		}
		if s.mode == SingleFrame {
			time.Sleep(singleFramePollInterval)
			continue
		}

		if err := s.Step(1); err != nil {
			return err
		}
		frames++
		if callback != nil {
			callback(s.frame.Load(), s.timeNs.Load())
		}

		switch s.mode {
		case Realtime:
			target := wallStart.Add(time.Duration(s.timeNs.Load()))
			if sleep := time.Until(target); sleep > 0 {
				time.Sleep(sleep)
			}
			// If already past target, no catch-up: best-effort pacing.
		case AFAP:
			if frames%AFAPYieldEvery == 0 {
				runtime.Gosched()
			}
		}
	}
	return nil
}

// Stop requests the run loop to exit at its next check (spec §4.6
// "Cancellation"). The in-flight frame, if any, completes first.
func (s *Scheduler) Stop() { s.running.Store(false) }

// Pause and Resume flip the paused flag; in-flight frames complete
// before a pause takes effect.
func (s *Scheduler) Pause()  { s.paused.Store(true) }
func (s *Scheduler) Resume() { s.paused.Store(false) }

// Running and Paused report the current state, for CLI status output.
func (s *Scheduler) Running() bool { return s.running.Load() }
func (s *Scheduler) Paused() bool  { return s.paused.Load() }
