package backplane

import (
	"encoding/binary"

	"hermes/internal/signal"
)

// Wire-level layout constants (spec §4.1 / §6.2). These bytes are a
// cross-language ABI: module processes written in any language parse
// this exact layout, so field order, width and alignment must never
// change under version 3.
const (
	Magic   uint32 = 0x4845524D // "HERM" little-endian
	Version uint32 = 3

	HeaderSize = 64

	headerOffMagic        = 0
	headerOffVersion      = 4
	headerOffFrame        = 8
	headerOffTimeNs       = 16
	headerOffSignalCount  = 24
	headerOffReservedFrom = 28
	headerReservedSize    = HeaderSize - headerOffReservedFrom

	// directoryEntrySize is (name_offset u32, data_offset u32,
	// data_type u8, flags u8, pad u16) = 12 bytes.
	directoryEntrySize = 12

	valueRegionAlign = 64
)

// directoryEntry is the on-wire shape of one signal directory row.
type directoryEntry struct {
	nameOffset uint32
	dataOffset uint32
	dataType   signal.DataType
	flags      signal.Flags
}

func encodeDirectoryEntry(buf []byte, e directoryEntry) {
	binary.LittleEndian.PutUint32(buf[0:4], e.nameOffset)
	binary.LittleEndian.PutUint32(buf[4:8], e.dataOffset)
	buf[8] = byte(e.dataType)
	buf[9] = byte(e.flags)
	buf[10] = 0
	buf[11] = 0
}

func decodeDirectoryEntry(buf []byte) directoryEntry {
	return directoryEntry{
		nameOffset: binary.LittleEndian.Uint32(buf[0:4]),
		dataOffset: binary.LittleEndian.Uint32(buf[4:8]),
		dataType:   signal.DataType(buf[8]),
		flags:      signal.Flags(buf[9]),
	}
}

func alignUp(n uint32, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// layout describes the fully computed byte geometry of a segment built
// from a registry: where the directory, string table and value region
// begin, and the total segment size to allocate.
type layout struct {
	directoryOffset uint32
	stringOffset    uint32
	valueOffset     uint32
	totalSize       uint32
	entries         []directoryEntry
	names           []string
}

// computeLayout lays out directory entries, the string table and the
// value region in registry (slot) order, exactly as spec §4.1 requires.
func computeLayout(reg *signal.Registry) layout {
	sigs := reg.All()
	n := uint32(len(sigs))

	directoryOffset := uint32(HeaderSize)
	stringOffset := directoryOffset + n*directoryEntrySize

	entries := make([]directoryEntry, len(sigs))
	names := make([]string, len(sigs))

	nameCursor := stringOffset
	for i, s := range sigs {
		names[i] = s.Qualified
		entries[i].nameOffset = nameCursor
		entries[i].dataType = s.Type
		entries[i].flags = s.Flags
		nameCursor += uint32(len(s.Qualified)) + 1 // +1 for NUL terminator
	}

	valueOffset := alignUp(nameCursor, valueRegionAlign)
	dataCursor := valueOffset
	for i, s := range sigs {
		entries[i].dataOffset = dataCursor
		dataCursor += alignUp(uint32(s.Type.Size()), 8)
	}

	return layout{
		directoryOffset: directoryOffset,
		stringOffset:    stringOffset,
		valueOffset:     valueOffset,
		totalSize:       dataCursor,
		entries:         entries,
		names:           names,
	}
}
