// Package wire implements the post-frame signal routing step described
// in spec §4.7: after every module in a frame has signaled done, each
// configured wire copies one signal's value into another with an
// affine transform, dst = src*gain + offset.
package wire

import (
	"fmt"

	"hermes/internal/backplane"
	"hermes/internal/signal"
)

// Route is one configured wire, as declared (unresolved slot indices).
type Route struct {
	Src    string // qualified source signal name
	Dst    string // qualified destination signal name
	Gain   float64
	Offset float64
}

// compiledRoute is a Route validated against a registry at Compile
// time. It keeps the qualified names, not slot indices: each Route call
// looks both names up in the segment's name index.
type compiledRoute struct {
	src    string
	dst    string
	gain   float64
	offset float64
}

// Router applies a fixed, pre-compiled list of routes to a segment
// every frame, in declaration order, with no per-frame allocation.
type Router struct {
	routes []compiledRoute
}

// ErrNotWritable is returned when a wire's destination signal was not
// declared writable (spec §6.1 "wiring" cross-check).
var ErrNotWritable = fmt.Errorf("wire destination is not writable")

// ErrSelfLoop is returned when a wire's source and destination are the
// same signal (spec §3.6 "src ≠ dst").
var ErrSelfLoop = fmt.Errorf("wire source and destination must differ")

// Compile validates and resolves every route against reg. Both
// endpoints must exist, the destination must be writable, and src must
// differ from dst (spec §4.7 "Construction contract", §3.6); the
// source's existence alone is checked here, its value is read fresh
// every frame.
func Compile(routes []Route, reg *signal.Registry) (*Router, error) {
	compiled := make([]compiledRoute, 0, len(routes))
	for _, r := range routes {
		if r.Src == r.Dst {
			return nil, fmt.Errorf("wire %s -> %s: %w", r.Src, r.Dst, ErrSelfLoop)
		}
		if _, err := reg.Lookup(r.Src); err != nil {
			return nil, fmt.Errorf("wire %s -> %s: %w", r.Src, r.Dst, err)
		}
		dst, err := reg.Lookup(r.Dst)
		if err != nil {
			return nil, fmt.Errorf("wire %s -> %s: %w", r.Src, r.Dst, err)
		}
		if !dst.Writable() {
			return nil, fmt.Errorf("wire %s -> %s: %w", r.Src, r.Dst, ErrNotWritable)
		}
		compiled = append(compiled, compiledRoute{src: r.Src, dst: r.Dst, gain: r.Gain, offset: r.Offset})
	}
	return &Router{routes: compiled}, nil
}

// Route walks the compiled route list, applying dst = src*gain + offset
// through the segment's typed accessors (spec §4.7 "Per-frame
// behavior"). It is called once per frame, after every module in the
// frame has signaled done.
func (r *Router) Route(seg *backplane.Segment) error {
	for _, c := range r.routes {
		v, err := seg.GetF64(c.src)
		if err != nil {
			return fmt.Errorf("wire read %s: %w", c.src, err)
		}
		if err := seg.SetF64(c.dst, v*c.gain+c.offset); err != nil {
			return fmt.Errorf("wire write %s: %w", c.dst, err)
		}
	}
	return nil
}

// Len returns the number of compiled routes.
func (r *Router) Len() int { return len(r.routes) }
