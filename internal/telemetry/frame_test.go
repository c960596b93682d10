package telemetry

import (
	"fmt"
	"testing"

	"hermes/internal/backplane"
	"hermes/internal/signal"
)

func testSetup(t *testing.T) (*backplane.Segment, *signal.Registry) {
	t.Helper()
	reg, err := signal.Build([]signal.ModuleSignals{
		{ModuleName: "a", Signals: []signal.Descriptor{
			{LocalName: "x", Type: signal.F64, Published: true},
			{LocalName: "y", Type: signal.F64, Published: true},
		}},
		{ModuleName: "b", Signals: []signal.Descriptor{
			{LocalName: "z", Type: signal.F64, Published: true},
		}},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	seg, err := backplane.Create(fmt.Sprintf("tel-test-%p", t), reg)
	if err != nil {
		t.Fatalf("create segment: %v", err)
	}
	t.Cleanup(func() { seg.Destroy() })
	return seg, reg
}

func TestSubscriptionWildcardExpandsAllSignals(t *testing.T) {
	_, reg := testSetup(t)
	sub, err := NewSubscription([]string{"*"}, reg)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", sub.Len())
	}
}

func TestSubscriptionModuleWildcard(t *testing.T) {
	_, reg := testSetup(t)
	sub, err := NewSubscription([]string{"a.*"}, reg)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", sub.Len())
	}
}

func TestSubscriptionRejectsUnknownExactName(t *testing.T) {
	_, reg := testSetup(t)
	if _, err := NewSubscription([]string{"a.missing"}, reg); err == nil {
		t.Fatal("expected error for unknown signal")
	}
}

func TestSubscriptionDeduplicatesOverlappingPatterns(t *testing.T) {
	_, reg := testSetup(t)
	sub, err := NewSubscription([]string{"a.x", "a.*"}, reg)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (deduplicated)", sub.Len())
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	seg, reg := testSetup(t)
	sub, err := NewSubscription([]string{"a.x", "a.y", "b.z"}, reg)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	seg.SetF64("a.x", 1.5)
	seg.SetF64("a.y", -2.25)
	seg.SetF64("b.z", 100)

	buf, err := sub.Encode(seg, 42, 420_000_000)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Frame != 42 {
		t.Fatalf("frame = %d, want 42", got.Frame)
	}
	if got.Seconds != 0.42 {
		t.Fatalf("seconds = %v, want 0.42", got.Seconds)
	}
	want := []float64{1.5, -2.25, 100}
	for i, v := range want {
		if got.Values[i] != v {
			t.Fatalf("values[%d] = %v, want %v", i, got.Values[i], v)
		}
	}
}

func TestDecodeRejectsWrongMagic(t *testing.T) {
	buf := make([]byte, headerSize)
	if _, err := Decode(buf); err != ErrWrongMagic {
		t.Fatalf("expected ErrWrongMagic, got: %v", err)
	}
}
