package module

import (
	"fmt"
	"time"
)

// Controller is the manager's handle to a module's out-of-band control
// channel: the transport for stage/reset/pause/resume/terminate, kept
// deliberately separate from the backplane's fixed binary layout (spec
// §4.4 "delivered through the control channel, not through the
// barrier").
type Controller interface {
	// Send delivers a command and does not wait for the reply.
	Send(cmd Command) error
	// Ack blocks for the module's reply to the most recently sent
	// command, up to timeout. A non-nil error means either a timeout
	// or the module reported failure.
	Ack(timeout time.Duration) error
	// Close releases the controller's resources without sending a
	// command. A script module sees its command channel closed and
	// leaves its loop; an external module sees EOF on its command pipe.
	Close() error
}

// ErrAckTimeout is returned by Ack when no reply arrives in time.
var ErrAckTimeout = fmt.Errorf("control channel ack timeout")

// AckError wraps a module-reported command failure.
type AckError struct {
	Command Command
	Reason  string
}

func (e *AckError) Error() string {
	return fmt.Sprintf("module rejected %s: %s", e.Command, e.Reason)
}
