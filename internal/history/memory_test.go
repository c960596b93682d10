package history

import (
	"context"
	"testing"
)

func TestMemoryStoreRecordsAndRetrievesLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := s.RecordLifecycle(ctx, LifecycleEvent{RunID: "r1", ModuleName: "m", From: "staged", To: "running", Frame: 0}); err != nil {
		t.Fatalf("record lifecycle: %v", err)
	}
	if err := s.RecordLifecycle(ctx, LifecycleEvent{RunID: "r1", ModuleName: "m", From: "running", To: "done", Frame: 100}); err != nil {
		t.Fatalf("record lifecycle: %v", err)
	}
	if err := s.RecordLifecycle(ctx, LifecycleEvent{RunID: "r2", ModuleName: "n", From: "init", To: "staged", Frame: 0}); err != nil {
		t.Fatalf("record lifecycle: %v", err)
	}

	events, err := s.LifecycleFor(ctx, "r1")
	if err != nil {
		t.Fatalf("lifecycle for r1: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[1].To != "done" {
		t.Fatalf("events[1].To = %q, want done", events[1].To)
	}
}

func TestMemoryStoreIsolatesRuns(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := s.RecordCrash(ctx, CrashReport{RunID: "r1", ModuleName: "m", PID: 123, Reason: "boom"}); err != nil {
		t.Fatalf("record crash: %v", err)
	}

	crashes, err := s.CrashesFor(ctx, "r2")
	if err != nil {
		t.Fatalf("crashes for r2: %v", err)
	}
	if len(crashes) != 0 {
		t.Fatalf("expected no crashes for unrelated run, got %d", len(crashes))
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := s.RecordFrameError(ctx, FrameError{RunID: "r1", Frame: 5, Kind: "IPCError", Message: "boom"}); err != nil {
		t.Fatalf("record frame error: %v", err)
	}

	got, err := s.FrameErrorsFor(ctx, "r1")
	if err != nil {
		t.Fatalf("frame errors: %v", err)
	}
	got[0].Message = "mutated"

	got2, err := s.FrameErrorsFor(ctx, "r1")
	if err != nil {
		t.Fatalf("frame errors: %v", err)
	}
	if got2[0].Message != "boom" {
		t.Fatalf("mutation leaked into store: %q", got2[0].Message)
	}
}

func TestFactoryRejectsUnknownBackend(t *testing.T) {
	if _, err := NewStore("bogus", ""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestFactoryDefaultsToMemory(t *testing.T) {
	store, err := NewStore("", "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected *MemoryStore, got %T", store)
	}
}
