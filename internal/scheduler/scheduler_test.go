package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeStepper struct {
	calls   atomic.Int32
	failAt  int32
	seenFr  []uint64
	seenTns []uint64
}

func (f *fakeStepper) StepAll(frame, timeNs uint64) error {
	n := f.calls.Add(1)
	f.seenFr = append(f.seenFr, frame)
	f.seenTns = append(f.seenTns, timeNs)
	if f.failAt != 0 && n == f.failAt {
		return errors.New("boom")
	}
	return nil
}

func TestDtNsRounding(t *testing.T) {
	if got := DtNs(600); got != 1_666_667 {
		t.Fatalf("DtNs(600) = %d, want 1_666_667", got)
	}
	if got := DtNs(1); got != 1_000_000_000 {
		t.Fatalf("DtNs(1) = %d, want 1e9", got)
	}
}

func TestStepAdvancesClockMultiplicatively(t *testing.T) {
	fs := &fakeStepper{}
	s, err := New(fs, 100, AFAP, 0, false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Step(10); err != nil {
		t.Fatalf("step: %v", err)
	}
	if s.Frame() != 10 {
		t.Fatalf("frame = %d, want 10", s.Frame())
	}
	if want := uint64(10) * s.DtNs(); s.TimeNs() != want {
		t.Fatalf("time_ns = %d, want %d", s.TimeNs(), want)
	}
	for i, fr := range fs.seenFr {
		if fs.seenTns[i] != fr*s.DtNs() {
			t.Fatalf("frame %d: time_ns %d != frame*dt_ns %d", fr, fs.seenTns[i], fr*s.DtNs())
		}
	}
}

func TestNewRejectsNonPositiveRate(t *testing.T) {
	if _, err := New(&fakeStepper{}, 0, AFAP, 0, false); err == nil {
		t.Fatal("expected error for rate_hz = 0")
	}
	if _, err := New(&fakeStepper{}, -5, AFAP, 0, false); err == nil {
		t.Fatal("expected error for negative rate_hz")
	}
}

func TestRunStopsAtEndTimeNs(t *testing.T) {
	fs := &fakeStepper{}
	s, err := New(fs, 100, AFAP, 500_000_000, true) // 500ms, dt=10ms => 50 frames
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var frames []uint64
	if err := s.Run(func(frame, timeNs uint64) { frames = append(frames, frame) }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(frames) != 50 {
		t.Fatalf("frames run = %d, want 50", len(frames))
	}
	if s.Running() {
		t.Fatal("expected running=false after Run returns")
	}
}

func TestRunPropagatesStepError(t *testing.T) {
	fs := &fakeStepper{failAt: 3}
	s, err := New(fs, 1000, AFAP, 0, false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = s.Run(nil)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected propagated step error, got: %v", err)
	}
	if fs.calls.Load() != 3 {
		t.Fatalf("expected exactly 3 steps before failure, got %d", fs.calls.Load())
	}
}

func TestStopEndsRunAtNextCheck(t *testing.T) {
	fs := &fakeStepper{}
	s, err := New(fs, 100000, AFAP, 0, false) // fast rate: many frames per real second
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Run(nil) }()

	time.Sleep(5 * time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop within 1s of Stop()")
	}
}

func TestPauseSuspendsFrameProgress(t *testing.T) {
	fs := &fakeStepper{}
	s, err := New(fs, 1000, AFAP, 0, false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Pause()
	done := make(chan error, 1)
	go func() { done <- s.Run(nil) }()

	time.Sleep(30 * time.Millisecond)
	if got := fs.calls.Load(); got != 0 {
		t.Fatalf("expected no frames while paused, got %d", got)
	}

	s.Resume()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if fs.calls.Load() > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if fs.calls.Load() == 0 {
		t.Fatal("expected frames to resume after Resume()")
	}
	s.Stop()
	<-done
}

func TestSingleFrameModeWaitsForExplicitStep(t *testing.T) {
	fs := &fakeStepper{}
	s, err := New(fs, 100, SingleFrame, 0, false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Run(nil) }()

	time.Sleep(30 * time.Millisecond)
	if got := fs.calls.Load(); got != 0 {
		t.Fatalf("expected no automatic frames in single_frame mode, got %d", got)
	}

	if err := s.Step(1); err != nil {
		t.Fatalf("explicit step: %v", err)
	}
	if fs.calls.Load() != 1 {
		t.Fatalf("expected exactly 1 frame after explicit step, got %d", fs.calls.Load())
	}

	s.Stop()
	<-done
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"realtime": Realtime, "afap": AFAP, "single_frame": SingleFrame} {
		got, err := ParseMode(in)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseMode(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
