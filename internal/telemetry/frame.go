// Package telemetry encodes the binary frame pushed to the telemetry
// consumer described in spec §6.6, and resolves subscription patterns
// against a signal registry.
package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"hermes/internal/backplane"
	"hermes/internal/signal"
)

// Magic is the frame's leading 4 bytes, ASCII "HERT".
const Magic uint32 = 0x48455254

// headerSize is the fixed prefix before the value array: magic, frame,
// time-in-seconds, count.
const headerSize = 24

// Subscription resolves a set of patterns (exact qualified name,
// "module.*", or "*") against a registry once, into a fixed ordered
// slot list — the order values appear in every subsequent frame.
type Subscription struct {
	names []string
}

// NewSubscription expands patterns against reg. Exact names must
// exist; "module.*" expands to every signal declared under that
// module name, in registry order; "*" expands to every signal in the
// registry. Duplicate resulting names are collapsed, keeping the
// first occurrence's position.
func NewSubscription(patterns []string, reg *signal.Registry) (*Subscription, error) {
	seen := make(map[string]bool)
	var names []string

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, p := range patterns {
		switch {
		case p == "*":
			for _, s := range reg.All() {
				add(s.Qualified)
			}
		case strings.HasSuffix(p, ".*"):
			prefix := strings.TrimSuffix(p, "*")
			for _, s := range reg.All() {
				if strings.HasPrefix(s.Qualified, prefix) {
					add(s.Qualified)
				}
			}
		default:
			if _, err := reg.Lookup(p); err != nil {
				return nil, fmt.Errorf("subscription pattern %q: %w", p, err)
			}
			add(p)
		}
	}
	return &Subscription{names: names}, nil
}

// Len returns the number of resolved signals in this subscription.
func (s *Subscription) Len() int { return len(s.names) }

// Encode reads every subscribed signal from seg and builds one binary
// telemetry frame (spec §6.6): magic, frame, time-in-seconds, count,
// then values in subscription order.
func (s *Subscription) Encode(seg *backplane.Segment, frame uint64, timeNs uint64) ([]byte, error) {
	buf := make([]byte, headerSize+8*len(s.names))

	binary.LittleEndian.PutUint32(buf[0:], Magic)
	binary.LittleEndian.PutUint64(buf[4:], frame)
	seconds := float64(timeNs) / 1e9
	binary.LittleEndian.PutUint64(buf[12:], math.Float64bits(seconds))
	binary.LittleEndian.PutUint32(buf[20:], uint32(len(s.names)))

	for i, name := range s.names {
		v, err := seg.GetF64(name)
		if err != nil {
			return nil, fmt.Errorf("telemetry read %s: %w", name, err)
		}
		off := headerSize + 8*i
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
	}
	return buf, nil
}
