package wire

import (
	"errors"
	"fmt"
	"testing"

	"hermes/internal/backplane"
	"hermes/internal/signal"
)

func testRegistry(t *testing.T) *signal.Registry {
	t.Helper()
	reg, err := signal.Build([]signal.ModuleSignals{
		{ModuleName: "source", Signals: []signal.Descriptor{
			{LocalName: "out", Type: signal.F64, Published: true},
		}},
		{ModuleName: "sink", Signals: []signal.Descriptor{
			{LocalName: "in", Type: signal.F64, Writable: true},
			{LocalName: "readonly", Type: signal.F64},
		}},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func testSegment(t *testing.T, reg *signal.Registry) *backplane.Segment {
	t.Helper()
	name := fmt.Sprintf("wire-test-%p", t)
	seg, err := backplane.Create(name, reg)
	if err != nil {
		t.Fatalf("create segment: %v", err)
	}
	t.Cleanup(func() { seg.Destroy() })
	return seg
}

func TestCompileRejectsUnknownEndpoints(t *testing.T) {
	reg := testRegistry(t)

	if _, err := Compile([]Route{{Src: "source.missing", Dst: "sink.in"}}, reg); !errors.Is(err, signal.ErrUnknownSignal) {
		t.Fatalf("expected ErrUnknownSignal for bad source, got: %v", err)
	}
	if _, err := Compile([]Route{{Src: "source.out", Dst: "sink.missing"}}, reg); !errors.Is(err, signal.ErrUnknownSignal) {
		t.Fatalf("expected ErrUnknownSignal for bad destination, got: %v", err)
	}
}

func TestCompileRejectsNonWritableDestination(t *testing.T) {
	reg := testRegistry(t)

	if _, err := Compile([]Route{{Src: "source.out", Dst: "sink.readonly"}}, reg); !errors.Is(err, ErrNotWritable) {
		t.Fatalf("expected ErrNotWritable, got: %v", err)
	}
}

func TestCompileRejectsSelfLoopWire(t *testing.T) {
	reg := testRegistry(t)

	if _, err := Compile([]Route{{Src: "sink.in", Dst: "sink.in"}}, reg); !errors.Is(err, ErrSelfLoop) {
		t.Fatalf("expected ErrSelfLoop, got: %v", err)
	}
}

func TestRouteAppliesAffineTransform(t *testing.T) {
	reg := testRegistry(t)
	seg := testSegment(t, reg)

	router, err := Compile([]Route{{Src: "source.out", Dst: "sink.in", Gain: 2, Offset: 1}}, reg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if err := seg.SetF64("source.out", 3); err != nil {
		t.Fatalf("set source: %v", err)
	}
	if err := router.Route(seg); err != nil {
		t.Fatalf("route: %v", err)
	}

	got, err := seg.GetF64("sink.in")
	if err != nil {
		t.Fatalf("get sink: %v", err)
	}
	if want := 7.0; got != want {
		t.Fatalf("sink.in = %v, want %v", got, want)
	}
}

func TestRouteIsIdempotentOnUnchangedSource(t *testing.T) {
	reg := testRegistry(t)
	seg := testSegment(t, reg)

	router, err := Compile([]Route{{Src: "source.out", Dst: "sink.in", Gain: 1, Offset: 0}}, reg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := seg.SetF64("source.out", 5); err != nil {
		t.Fatalf("set source: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := router.Route(seg); err != nil {
			t.Fatalf("route iteration %d: %v", i, err)
		}
	}

	got, err := seg.GetF64("sink.in")
	if err != nil {
		t.Fatalf("get sink: %v", err)
	}
	if got != 5 {
		t.Fatalf("sink.in = %v, want 5", got)
	}
}

func TestLen(t *testing.T) {
	reg := testRegistry(t)
	router, err := Compile([]Route{{Src: "source.out", Dst: "sink.in"}}, reg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if router.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", router.Len())
	}
}
