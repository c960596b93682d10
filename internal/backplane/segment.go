// Package backplane implements the shared-memory segment described in
// spec §4.1 / §6.2: a named, fixed-layout region holding a header, a
// signal directory, a string table and a contiguous value region.
package backplane

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"hermes/internal/signal"
)

// Segment is one attachment to a backplane region, mapped read/write.
// A Segment built by Create is the coordinator's own attachment; every
// other process calls Attach to get its own Segment over the same
// kernel object.
type Segment struct {
	name string
	file *os.File
	mem  []byte

	index map[string]signal.Signal // built once from the directory, read-only after that

	closed atomic.Bool
}

// Create builds a new segment named name sized to hold every signal in
// reg, and writes the header, directory, string table and zeroed value
// region before returning (spec §4.1 "Construction contract"). The file
// is visible under its name from the O_EXCL create in createFile on,
// before the header is written, so an Attach that runs before Create
// returns can fail with ErrWrongMagic.
func Create(name string, reg *signal.Registry) (*Segment, error) {
	lay := computeLayout(reg)

	f, err := createFile(name, lay.totalSize)
	if err != nil {
		if err == ErrAlreadyExists {
			return nil, err
		}
		return nil, &IPCError{Kind: KindSharedMemory, Name: name, Op: "create", Err: err}
	}

	mem, err := mmap(f, int(lay.totalSize))
	if err != nil {
		f.Close()
		unlinkFile(name)
		return nil, &IPCError{Kind: KindSharedMemory, Name: name, Op: "mmap", Err: err}
	}

	binary.LittleEndian.PutUint32(mem[headerOffMagic:], Magic)
	binary.LittleEndian.PutUint32(mem[headerOffVersion:], Version)
	binary.LittleEndian.PutUint64(mem[headerOffFrame:], 0)
	binary.LittleEndian.PutUint64(mem[headerOffTimeNs:], 0)
	binary.LittleEndian.PutUint32(mem[headerOffSignalCount:], uint32(reg.Len()))
	for i := range mem[headerOffReservedFrom:HeaderSize] {
		mem[headerOffReservedFrom+i] = 0
	}

	for i, e := range lay.entries {
		off := lay.directoryOffset + uint32(i)*directoryEntrySize
		encodeDirectoryEntry(mem[off:off+directoryEntrySize], e)
	}
	for i, nm := range lay.names {
		off := lay.entries[i].nameOffset
		copy(mem[off:], nm)
		mem[off+uint32(len(nm))] = 0
	}
	// Value region was zeroed by ftruncate; nothing further to write.

	s := &Segment{name: name, file: f, mem: mem}
	s.index = buildIndex(reg, lay)
	return s, nil
}

// Attach maps an existing segment read/write and builds a local
// name→slot table from its directory (spec §4.1 "Attach contract").
// Attach never writes to the header or directory.
func Attach(name string) (*Segment, error) {
	f, size, err := openFile(name)
	if err != nil {
		return nil, &IPCError{Kind: KindSharedMemory, Name: name, Op: "attach", Err: err}
	}
	if size < HeaderSize {
		f.Close()
		return nil, &IPCError{Kind: KindSharedMemory, Name: name, Op: "attach", Err: fmt.Errorf("segment too small (%d bytes)", size)}
	}

	mem, err := mmap(f, int(size))
	if err != nil {
		f.Close()
		return nil, &IPCError{Kind: KindSharedMemory, Name: name, Op: "mmap", Err: err}
	}

	s := &Segment{name: name, file: f, mem: mem}

	magic := binary.LittleEndian.Uint32(mem[headerOffMagic:])
	if magic != Magic {
		s.unmapOnly()
		return nil, ErrWrongMagic
	}
	version := binary.LittleEndian.Uint32(mem[headerOffVersion:])
	if version != Version {
		s.unmapOnly()
		return nil, ErrWrongVersion
	}

	count := binary.LittleEndian.Uint32(mem[headerOffSignalCount:])
	index := make(map[string]signal.Signal, count)
	for i := uint32(0); i < count; i++ {
		entOff := HeaderSize + i*directoryEntrySize
		if int(entOff+directoryEntrySize) > len(mem) {
			s.unmapOnly()
			return nil, &IPCError{Kind: KindSharedMemory, Name: name, Op: "attach", Err: fmt.Errorf("directory truncated")}
		}
		ent := decodeDirectoryEntry(mem[entOff : entOff+directoryEntrySize])
		nm := readCString(mem, ent.nameOffset)
		index[nm] = signal.Signal{
			Qualified:  nm,
			Type:       ent.dataType,
			Flags:      ent.flags,
			Slot:       int(i),
			ByteOffset: ent.dataOffset,
		}
	}
	s.index = index
	return s, nil
}

func readCString(mem []byte, offset uint32) string {
	end := offset
	for end < uint32(len(mem)) && mem[end] != 0 {
		end++
	}
	return string(mem[offset:end])
}

// buildIndex builds the coordinator's own name->signal index from the
// registry, but with ByteOffset rewritten to lay's absolute, in-segment
// offsets: the registry's own ByteOffset is relative to the start of the
// value region, while every accessor on this Segment indexes directly
// into the full mapped region (header, directory and string table
// included), so the two must agree.
func buildIndex(reg *signal.Registry, lay layout) map[string]signal.Signal {
	sigs := reg.All()
	idx := make(map[string]signal.Signal, len(sigs))
	for i, s := range sigs {
		s.ByteOffset = lay.entries[i].dataOffset
		idx[s.Qualified] = s
	}
	return idx
}

// Name returns the segment's kernel object name.
func (s *Segment) Name() string { return s.name }

// SignalCount returns the number of directory entries.
func (s *Segment) SignalCount() int { return len(s.index) }

// Directory returns every signal known to this attachment, sorted by
// qualified name for diagnostics (`list-signals`) and reproducible
// directory round-trip tests.
func (s *Segment) Directory() []signal.Signal {
	names := maps.Keys(s.index)
	slices.Sort(names)
	out := make([]signal.Signal, 0, len(names))
	for _, name := range names {
		out = append(out, s.index[name])
	}
	return out
}

func (s *Segment) lookup(name string) (signal.Signal, error) {
	sig, ok := s.index[name]
	if !ok {
		return signal.Signal{}, fmt.Errorf("%w: %s", signal.ErrUnknownSignal, name)
	}
	return sig, nil
}

// GetF64 reads the named signal, widening to float64 if its declared
// type is narrower (spec §9 open question (b)). It returns
// UnknownSignal if name is not in the directory.
func (s *Segment) GetF64(name string) (float64, error) {
	v, err := s.GetTyped(name)
	if err != nil {
		return 0, err
	}
	return v.AsF64(), nil
}

// SetF64 writes f into the named signal, narrowing to its declared
// type. It returns UnknownSignal if name is not in the directory, and
// leaves state unchanged on error.
func (s *Segment) SetF64(name string, f float64) error {
	sig, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.setTyped(sig, signal.ValueFromF64(sig.Type, f))
}

// GetTyped is the type-exact accessor preferred for hot loops (spec
// §9): it never widens or narrows the stored value.
func (s *Segment) GetTyped(name string) (signal.Value, error) {
	sig, err := s.lookup(name)
	if err != nil {
		return signal.Value{}, err
	}
	return s.getTyped(sig), nil
}

// SetTyped writes an already-tagged value into the named signal's
// slot. The tag's Type must match the signal's declared type.
func (s *Segment) SetTyped(name string, v signal.Value) error {
	sig, err := s.lookup(name)
	if err != nil {
		return err
	}
	if v.Type != sig.Type {
		return fmt.Errorf("%w: %s expects %s, got %s", ErrWrongType, name, sig.Type, v.Type)
	}
	return s.setTyped(sig, v)
}

// ErrWrongType is returned by SetTyped on a type mismatch (spec §7
// SignalError{WrongType}).
var ErrWrongType = fmt.Errorf("wrong signal type")

func (s *Segment) getTyped(sig signal.Signal) signal.Value {
	off := sig.ByteOffset
	switch sig.Type {
	case signal.F64:
		bits := atomic.LoadUint64((*uint64)(unsafe.Pointer(&s.mem[off])))
		return signal.Value{Type: signal.F64, F64: math.Float64frombits(bits)}
	case signal.I64:
		bits := atomic.LoadUint64((*uint64)(unsafe.Pointer(&s.mem[off])))
		return signal.Value{Type: signal.I64, I64: int64(bits)}
	case signal.F32:
		bits := atomic.LoadUint32((*uint32)(unsafe.Pointer(&s.mem[off])))
		return signal.Value{Type: signal.F32, F32: math.Float32frombits(bits)}
	case signal.I32:
		bits := atomic.LoadUint32((*uint32)(unsafe.Pointer(&s.mem[off])))
		return signal.Value{Type: signal.I32, I32: int32(bits)}
	case signal.Bool:
		return signal.Value{Type: signal.Bool, Bool: s.mem[off] != 0}
	default:
		return signal.Value{}
	}
}

func (s *Segment) setTyped(sig signal.Signal, v signal.Value) error {
	off := sig.ByteOffset
	switch sig.Type {
	case signal.F64:
		atomic.StoreUint64((*uint64)(unsafe.Pointer(&s.mem[off])), math.Float64bits(v.F64))
	case signal.I64:
		atomic.StoreUint64((*uint64)(unsafe.Pointer(&s.mem[off])), uint64(v.I64))
	case signal.F32:
		atomic.StoreUint32((*uint32)(unsafe.Pointer(&s.mem[off])), math.Float32bits(v.F32))
	case signal.I32:
		atomic.StoreUint32((*uint32)(unsafe.Pointer(&s.mem[off])), uint32(v.I32))
	case signal.Bool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		s.mem[off] = b
	default:
		return fmt.Errorf("%w: unhandled type %s", ErrWrongType, sig.Type)
	}
	return nil
}

// GetFrame performs a relaxed load of the header's frame counter.
// Only the coordinator ever writes it; modules must call this only
// after wait_step returns, per the happens-before edge established by
// the barrier release (spec §4.1 "Memory ordering").
func (s *Segment) GetFrame() uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&s.mem[headerOffFrame])))
}

// SetFrame is coordinator-only.
func (s *Segment) SetFrame(f uint64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&s.mem[headerOffFrame])), f)
}

// GetTimeNs performs a relaxed load of the header's simulation time.
func (s *Segment) GetTimeNs() uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&s.mem[headerOffTimeNs])))
}

// SetTimeNs is coordinator-only.
func (s *Segment) SetTimeNs(t uint64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&s.mem[headerOffTimeNs])), t)
}

// SetClock writes frame and timeNs together. The coordinator calls
// this before releasing the frame barrier's step semaphore (spec
// §4.5 "Per-frame coordination").
func (s *Segment) SetClock(frame, timeNs uint64) {
	s.SetFrame(frame)
	s.SetTimeNs(timeNs)
}

// unmapOnly releases the mapping and closes the fd without unlinking
// the kernel object — used by Attach on a failed handshake, and by
// module/reader Detach, which must never unlink (spec §5 "Resource
// ownership").
func (s *Segment) unmapOnly() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := munmap(s.mem)
	s.file.Close()
	return err
}

// Detach releases this attachment without touching the kernel object.
// Modules and telemetry readers call Detach; only the coordinator ever
// calls Destroy.
func (s *Segment) Detach() error { return s.unmapOnly() }

// Destroy unmaps and unlinks the segment. It is idempotent: a second
// call is a no-op, not an error (spec §8.2). Only the coordinator that
// created the segment should call this.
func (s *Segment) Destroy() error {
	unmapErr := s.unmapOnly()
	unlinkErr := unlinkFile(s.name)
	if unmapErr != nil {
		return unmapErr
	}
	return unlinkErr
}
