package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ErrWrongMagic is returned by Decode on a buffer not starting with
// the telemetry magic.
var ErrWrongMagic = fmt.Errorf("telemetry: wrong magic")

// DecodedFrame is a parsed telemetry frame, used by tests and by any
// in-process consumer that wants to inspect a frame without a socket.
type DecodedFrame struct {
	Frame   uint64
	Seconds float64
	Values  []float64
}

// Decode parses a frame encoded by Subscription.Encode.
func Decode(buf []byte) (DecodedFrame, error) {
	if len(buf) < headerSize {
		return DecodedFrame{}, fmt.Errorf("telemetry: frame too short (%d bytes)", len(buf))
	}
	if binary.LittleEndian.Uint32(buf[0:]) != Magic {
		return DecodedFrame{}, ErrWrongMagic
	}
	frame := binary.LittleEndian.Uint64(buf[4:])
	seconds := math.Float64frombits(binary.LittleEndian.Uint64(buf[12:]))
	count := binary.LittleEndian.Uint32(buf[20:])

	want := headerSize + 8*int(count)
	if len(buf) != want {
		return DecodedFrame{}, fmt.Errorf("telemetry: frame length %d does not match count %d (want %d)", len(buf), count, want)
	}

	values := make([]float64, count)
	for i := range values {
		off := headerSize + 8*i
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	}
	return DecodedFrame{Frame: frame, Seconds: seconds, Values: values}, nil
}
