package signal

import (
	"fmt"
)

// ErrUnknownSignal is returned by any lookup on a name absent from the
// registry or a segment directory (spec §4.1 "Access contract").
var ErrUnknownSignal = fmt.Errorf("unknown signal")

// ModuleSignals is the config-level input to Build: one module's
// declared signals, in declaration order.
type ModuleSignals struct {
	ModuleName string
	Signals    []Descriptor
}

// Registry is the stateless, in-coordinator index from qualified signal
// name to slot (spec §4.3). It is built once at segment-construction
// time and never mutated afterward; concurrent reads from multiple
// goroutines are always safe.
type Registry struct {
	byName []Signal
	index  map[string]int
}

// Build materializes a Registry from the config's flat module list. The
// slot order is the concatenation of modules in configured order, and
// within a module, declaration order (spec §4.3) — this order is an ABI
// between the coordinator and module processes, so callers must pass
// modules in the same order used to spawn them.
func Build(modules []ModuleSignals) (*Registry, error) {
	r := &Registry{index: make(map[string]int)}

	offset := uint32(0)
	for _, m := range modules {
		if m.ModuleName == "" {
			return nil, fmt.Errorf("module with empty name in signal list")
		}
		for _, d := range m.Signals {
			if !ValidName(m.ModuleName) || !ValidName(d.LocalName) {
				return nil, fmt.Errorf("invalid signal name %q.%q", m.ModuleName, d.LocalName)
			}
			qualified := Qualify(m.ModuleName, d.LocalName)
			if _, exists := r.index[qualified]; exists {
				return nil, fmt.Errorf("duplicate signal name %q", qualified)
			}

			var flags Flags
			if d.Writable {
				flags |= Writable
			}
			if d.Published {
				flags |= Published
			}

			sig := Signal{
				Qualified:   qualified,
				ModuleName:  m.ModuleName,
				LocalName:   d.LocalName,
				Type:        d.Type,
				Flags:       flags,
				Unit:        d.Unit,
				Description: d.Description,
				Slot:        len(r.byName),
				ByteOffset:  offset,
			}
			r.index[qualified] = len(r.byName)
			r.byName = append(r.byName, sig)

			offset += alignUp(uint32(d.Type.Size()), 8)
		}
	}
	return r, nil
}

// alignUp rounds n up to the next multiple of align (align must be a
// power of two).
func alignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// Len returns the number of signals in the registry.
func (r *Registry) Len() int { return len(r.byName) }

// All returns every signal in slot order. The returned slice must not
// be mutated by callers.
func (r *Registry) All() []Signal { return r.byName }

// Lookup resolves a qualified name to its Signal.
func (r *Registry) Lookup(qualified string) (Signal, error) {
	idx, ok := r.index[qualified]
	if !ok {
		return Signal{}, fmt.Errorf("%w: %s", ErrUnknownSignal, qualified)
	}
	return r.byName[idx], nil
}

// Slot resolves a qualified name to its slot index.
func (r *Registry) Slot(qualified string) (int, error) {
	idx, ok := r.index[qualified]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrUnknownSignal, qualified)
	}
	return idx, nil
}

// ValueRegionSize returns the total byte size of the value region
// implied by this registry's slot layout, rounded up to the segment's
// 64-byte value-region alignment.
func (r *Registry) ValueRegionSize() uint32 {
	if len(r.byName) == 0 {
		return 0
	}
	last := r.byName[len(r.byName)-1]
	end := last.ByteOffset + uint32(last.Type.Size())
	return alignUp(end, 64)
}
