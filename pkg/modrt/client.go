// Package modrt is the module-side runtime library described in spec
// §2 and §9: it gives any Go-written module — external binary or
// in-language script — the attach/wait/step/signal_done loop and
// per-attachment name→slot caching, so module authors never hand-roll
// the wire protocol.
package modrt

import (
	"time"

	"hermes/internal/backplane"
	"hermes/internal/barrier"
	"hermes/internal/signal"
)

// Client is one module's live attachment to the backplane and frame
// barrier (spec §4.4 "Attaches segment and barrier").
type Client struct {
	name    string
	segment *backplane.Segment
	attach  *barrier.Attachment
}

func newClient(name string, seg *backplane.Segment, att *barrier.Attachment) *Client {
	return &Client{name: name, segment: seg, attach: att}
}

// Attach maps the named segment and barrier for module name. Modules
// never unlink either resource (spec §5 "Resource ownership").
func Attach(segmentName, barrierBase, moduleName string) (*Client, error) {
	seg, err := backplane.Attach(segmentName)
	if err != nil {
		return nil, err
	}
	att, err := barrier.Attach(barrierBase)
	if err != nil {
		seg.Detach()
		return nil, err
	}
	return newClient(moduleName, seg, att), nil
}

// Name returns this module's configured name (its qualified-signal
// prefix).
func (c *Client) Name() string { return c.name }

// WaitStep blocks for the coordinator's release of this frame's step
// permit (spec §4.2 "Module" row). ok is false on timeout.
func (c *Client) WaitStep(timeout time.Duration) (frame, timeNs uint64, ok bool) {
	if !c.attach.WaitStep(timeout) {
		return 0, 0, false
	}
	// The barrier release happens-before this read (spec §4.1
	// "Memory ordering"): frame/time_ns are guaranteed current.
	return c.segment.GetFrame(), c.segment.GetTimeNs(), true
}

// SignalDone posts this module's completion permit for the frame.
func (c *Client) SignalDone() { c.attach.SignalDone() }

// CurrentFrame and CurrentTimeNs read the header values most recently
// published by WaitStep's barrier release, for use inside a Step hook
// where the frame number isn't otherwise in scope.
func (c *Client) CurrentFrame() uint64  { return c.segment.GetFrame() }
func (c *Client) CurrentTimeNs() uint64 { return c.segment.GetTimeNs() }

// GetF64 reads a signal, widening to float64 if declared narrower.
func (c *Client) GetF64(qualifiedOrLocal string) (float64, error) {
	return c.segment.GetF64(c.resolve(qualifiedOrLocal))
}

// SetF64 writes a signal, narrowing to its declared type.
func (c *Client) SetF64(qualifiedOrLocal string, v float64) error {
	return c.segment.SetF64(c.resolve(qualifiedOrLocal), v)
}

// GetTyped is the type-exact accessor preferred for hot loops (spec §9).
func (c *Client) GetTyped(qualifiedOrLocal string) (signal.Value, error) {
	return c.segment.GetTyped(c.resolve(qualifiedOrLocal))
}

// SetTyped writes an already-tagged value.
func (c *Client) SetTyped(qualifiedOrLocal string, v signal.Value) error {
	return c.segment.SetTyped(c.resolve(qualifiedOrLocal), v)
}

// resolve treats a name without a "." as local to this module, and
// otherwise as already qualified — a small ergonomics affordance since
// a module almost always addresses its own signals by local name.
func (c *Client) resolve(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name
		}
	}
	return signal.Qualify(c.name, name)
}

// Detach releases this attachment. It never unlinks the segment or
// barrier.
func (c *Client) Detach() error {
	err1 := c.segment.Detach()
	err2 := c.attach.Detach()
	if err1 != nil {
		return err1
	}
	return err2
}
