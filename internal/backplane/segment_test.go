//go:build unix

package backplane

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"testing"

	"hermes/internal/signal"
)

func testSegmentName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("test.%s.%d", t.Name(), os.Getpid())
}

func testRegistry(t *testing.T) *signal.Registry {
	t.Helper()
	reg, err := signal.Build([]signal.ModuleSignals{
		{ModuleName: "a", Signals: []signal.Descriptor{
			{LocalName: "x", Type: signal.F64, Writable: true},
			{LocalName: "y", Type: signal.F64, Writable: true},
		}},
		{ModuleName: "b", Signals: []signal.Descriptor{
			{LocalName: "z", Type: signal.F64, Writable: true},
		}},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

// TestRegistrySlotOffsetsAreSequential pins the S1 property the wire ABI
// depends on: a.x, a.y, b.z land at offsets 0, 8, 16 within the value
// region, in declared module/signal order.
func TestRegistrySlotOffsetsAreSequential(t *testing.T) {
	reg := testRegistry(t)

	ax, err := reg.Lookup("a.x")
	if err != nil {
		t.Fatalf("lookup a.x: %v", err)
	}
	ay, err := reg.Lookup("a.y")
	if err != nil {
		t.Fatalf("lookup a.y: %v", err)
	}
	bz, err := reg.Lookup("b.z")
	if err != nil {
		t.Fatalf("lookup b.z: %v", err)
	}

	if ax.ByteOffset != 0 || ay.ByteOffset != 8 || bz.ByteOffset != 16 {
		t.Fatalf("offsets = %d, %d, %d, want 0, 8, 16", ax.ByteOffset, ay.ByteOffset, bz.ByteOffset)
	}
	if ax.Slot != 0 || ay.Slot != 1 || bz.Slot != 2 {
		t.Fatalf("slots = %d, %d, %d, want 0, 1, 2", ax.Slot, ay.Slot, bz.Slot)
	}
}

func newTestSegment(t *testing.T, reg *signal.Registry) *Segment {
	t.Helper()
	seg, err := Create(testSegmentName(t), reg)
	if err != nil {
		t.Fatalf("create segment: %v", err)
	}
	t.Cleanup(func() { seg.Destroy() })
	return seg
}

// TestSegmentSetGetRoundTripsThroughOwnCreatedView guards against the
// coordinator's own Segment (built by Create, not Attach) indexing into
// the wrong bytes: writing to a.x, a.y and b.z must read back the exact
// values, not bleed into the header, directory or string table.
func TestSegmentSetGetRoundTripsThroughOwnCreatedView(t *testing.T) {
	reg := testRegistry(t)
	seg := newTestSegment(t, reg)

	if err := seg.SetF64("a.x", 1); err != nil {
		t.Fatalf("set a.x: %v", err)
	}
	if err := seg.SetF64("a.y", 2); err != nil {
		t.Fatalf("set a.y: %v", err)
	}
	if err := seg.SetF64("b.z", 3); err != nil {
		t.Fatalf("set b.z: %v", err)
	}

	x, err := seg.GetF64("a.x")
	if err != nil || x != 1 {
		t.Fatalf("get a.x = %v, %v, want 1, nil", x, err)
	}
	y, err := seg.GetF64("a.y")
	if err != nil || y != 2 {
		t.Fatalf("get a.y = %v, %v, want 2, nil", y, err)
	}
	z, err := seg.GetF64("b.z")
	if err != nil || z != 3 {
		t.Fatalf("get b.z = %v, %v, want 3, nil", z, err)
	}

	magic := binary.LittleEndian.Uint32(seg.mem[headerOffMagic:])
	if magic != Magic {
		t.Fatalf("writing signals corrupted the header magic: got %x, want %x", magic, Magic)
	}
}

// TestAttachRoundTripsSameValuesAsCreator exercises the cross-process
// path: a second attachment must see exactly what the creator wrote,
// through its own independently-built directory index.
func TestAttachRoundTripsSameValuesAsCreator(t *testing.T) {
	reg := testRegistry(t)
	seg := newTestSegment(t, reg)

	if err := seg.SetF64("a.x", 42); err != nil {
		t.Fatalf("set a.x: %v", err)
	}

	other, err := Attach(seg.Name())
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer other.Detach()

	got, err := other.GetF64("a.x")
	if err != nil {
		t.Fatalf("get a.x via attach: %v", err)
	}
	if got != 42 {
		t.Fatalf("a.x via attach = %v, want 42", got)
	}

	if err := other.SetF64("b.z", 7); err != nil {
		t.Fatalf("set b.z via attach: %v", err)
	}
	back, err := seg.GetF64("b.z")
	if err != nil || back != 7 {
		t.Fatalf("b.z read back by creator = %v, %v, want 7, nil", back, err)
	}
}

func TestGetSetUnknownSignalReturnsUnknownSignal(t *testing.T) {
	reg := testRegistry(t)
	seg := newTestSegment(t, reg)

	if _, err := seg.GetF64("a.missing"); !errors.Is(err, signal.ErrUnknownSignal) {
		t.Fatalf("expected ErrUnknownSignal, got: %v", err)
	}
	if err := seg.SetF64("a.missing", 1); !errors.Is(err, signal.ErrUnknownSignal) {
		t.Fatalf("expected ErrUnknownSignal, got: %v", err)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	reg := testRegistry(t)
	seg, err := Create(testSegmentName(t), reg)
	if err != nil {
		t.Fatalf("create segment: %v", err)
	}
	if err := seg.Destroy(); err != nil {
		t.Fatalf("first destroy: %v", err)
	}
	if err := seg.Destroy(); err != nil {
		t.Fatalf("second destroy should be a no-op, got: %v", err)
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	reg := testRegistry(t)
	name := testSegmentName(t)

	first, err := Create(name, reg)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	defer first.Destroy()

	if _, err := Create(name, reg); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got: %v", err)
	}
}

func TestAttachRejectsWrongMagic(t *testing.T) {
	reg := testRegistry(t)
	seg := newTestSegment(t, reg)
	seg.unmapOnly()

	f, _, err := openFile(seg.Name())
	if err != nil {
		t.Fatalf("open raw segment: %v", err)
	}
	if _, err := f.WriteAt([]byte{0, 0, 0, 0}, headerOffMagic); err != nil {
		t.Fatalf("corrupt magic: %v", err)
	}
	f.Close()

	if _, err := Attach(seg.Name()); !errors.Is(err, ErrWrongMagic) {
		t.Fatalf("expected ErrWrongMagic, got: %v", err)
	}
}

func TestAttachRejectsWrongVersion(t *testing.T) {
	reg := testRegistry(t)
	seg := newTestSegment(t, reg)
	seg.unmapOnly()

	f, _, err := openFile(seg.Name())
	if err != nil {
		t.Fatalf("open raw segment: %v", err)
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, Version+1)
	if _, err := f.WriteAt(buf, headerOffVersion); err != nil {
		t.Fatalf("corrupt version: %v", err)
	}
	f.Close()

	if _, err := Attach(seg.Name()); !errors.Is(err, ErrWrongVersion) {
		t.Fatalf("expected ErrWrongVersion, got: %v", err)
	}
}

func TestSetClockUpdatesFrameAndTimeNs(t *testing.T) {
	reg := testRegistry(t)
	seg := newTestSegment(t, reg)

	seg.SetClock(5, 50_000_000)
	if seg.GetFrame() != 5 {
		t.Fatalf("frame = %d, want 5", seg.GetFrame())
	}
	if seg.GetTimeNs() != 50_000_000 {
		t.Fatalf("time_ns = %d, want 50000000", seg.GetTimeNs())
	}
}

func TestDirectoryIsSortedByQualifiedName(t *testing.T) {
	reg := testRegistry(t)
	seg := newTestSegment(t, reg)

	dir := seg.Directory()
	if len(dir) != 3 {
		t.Fatalf("directory len = %d, want 3", len(dir))
	}
	for i := 1; i < len(dir); i++ {
		if dir[i-1].Qualified >= dir[i].Qualified {
			t.Fatalf("directory not sorted: %q before %q", dir[i-1].Qualified, dir[i].Qualified)
		}
	}
}
