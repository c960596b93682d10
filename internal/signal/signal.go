// Package signal defines the scalar signal data model shared by the
// backplane, the registry and the wire router.
package signal

import (
	"fmt"
	"strings"
)

// DataType is the wire-level scalar type of a signal's slot.
type DataType uint8

const (
	F64 DataType = iota
	F32
	I64
	I32
	Bool
)

// Size returns the natural byte width of the data type.
func (t DataType) Size() int {
	switch t {
	case F64, I64:
		return 8
	case F32, I32:
		return 4
	case Bool:
		return 1
	default:
		return 0
	}
}

func (t DataType) String() string {
	switch t {
	case F64:
		return "f64"
	case F32:
		return "f32"
	case I64:
		return "i64"
	case I32:
		return "i32"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// ParseDataType parses the config-level spelling of a data type.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "f64", "float64", "double":
		return F64, nil
	case "f32", "float32", "float":
		return F32, nil
	case "i64", "int64":
		return I64, nil
	case "i32", "int32":
		return I32, nil
	case "bool", "boolean":
		return Bool, nil
	default:
		return 0, fmt.Errorf("unknown signal data type %q", s)
	}
}

// Flags are bit flags describing signal access rights.
type Flags uint8

const (
	Writable Flags = 1 << iota
	Published
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Descriptor is the config-time description of a single signal, scoped
// to a module and not yet assigned a slot.
type Descriptor struct {
	LocalName   string
	Type        DataType
	Unit        string
	Description string
	Writable    bool
	Published   bool
}

// Signal is a fully resolved, slot-assigned signal as it exists in the
// registry and the segment directory. It is immutable once built:
// the qualified name and slot index never change for the life of a
// segment (spec §3.1).
type Signal struct {
	Qualified   string
	ModuleName  string
	LocalName   string
	Type        DataType
	Flags       Flags
	Unit        string
	Description string
	Slot        int
	ByteOffset  uint32 // 8-byte aligned; relative to the value region in a Registry, absolute within the segment in a backplane.Segment's index and Directory
}

func (s Signal) Writable() bool  { return s.Flags.Has(Writable) }
func (s Signal) Published() bool { return s.Flags.Has(Published) }

// Qualify builds the "<module>.<local>" qualified name used by every
// cross-module API.
func Qualify(module, local string) string {
	return module + "." + local
}

// ValidName reports whether name is a legal qualified or local signal
// name: non-empty, at most 255 bytes, ASCII-printable, no NUL or
// whitespace (spec §4.3).
func ValidName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// Value is a type-tagged scalar, used by the type-exact accessor
// surface (spec §9 open question (b)).
type Value struct {
	Type DataType
	F64  float64
	F32  float32
	I64  int64
	I32  int32
	Bool bool
}

// AsF64 widens the tagged value to float64, the public accessor width.
func (v Value) AsF64() float64 {
	switch v.Type {
	case F64:
		return v.F64
	case F32:
		return float64(v.F32)
	case I64:
		return float64(v.I64)
	case I32:
		return float64(v.I32)
	case Bool:
		if v.Bool {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// ValueFromF64 narrows a float64 into the tagged representation for t.
func ValueFromF64(t DataType, f float64) Value {
	switch t {
	case F64:
		return Value{Type: t, F64: f}
	case F32:
		return Value{Type: t, F32: float32(f)}
	case I64:
		return Value{Type: t, I64: int64(f)}
	case I32:
		return Value{Type: t, I32: int32(f)}
	case Bool:
		return Value{Type: t, Bool: f != 0}
	default:
		return Value{}
	}
}
