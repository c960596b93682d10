package module

import (
	"fmt"
	"time"
)

// Record is the process manager's bookkeeping for one module: its
// name, type, spawned PID, current lifecycle state and control channel
// (spec §3.4). Only the process manager transitions Record.State.
type Record struct {
	Name string
	Type Type
	PID  int // 0 for script modules

	State State

	ctrl Controller
	ext  *ExternalHandle // nil for script modules
}

// NewExternal wraps an already-spawned external process handle.
func NewExternal(name string, handle *ExternalHandle) *Record {
	return &Record{
		Name:  name,
		Type:  TypeExternal,
		PID:   handle.PID(),
		State: StateInit,
		ctrl:  handle.Controller(),
		ext:   handle,
	}
}

// NewScript wraps a running script module's controller half.
func NewScript(name string, ctrl *ScriptController) *Record {
	return &Record{
		Name:  name,
		Type:  TypeScript,
		PID:   0,
		State: StateInit,
		ctrl:  ctrl,
	}
}

// Transition validates and applies a lifecycle state change (spec
// §3.4). It is a no-op error path if the transition is not permitted.
func (r *Record) Transition(next State) error {
	if !validTransitions[r.State][next] {
		return fmt.Errorf("%w: %s -> %s (%s)", ErrInvalidTransition, r.State, next, r.Name)
	}
	r.State = next
	return nil
}

// SendCommand delivers cmd over the control channel and waits for the
// module's ack, applying the resulting state transition on success.
func (r *Record) SendCommand(cmd Command, timeout time.Duration, onSuccess State) error {
	if err := r.ctrl.Send(cmd); err != nil {
		return fmt.Errorf("send %s to %s: %w", cmd, r.Name, err)
	}
	if err := r.ctrl.Ack(timeout); err != nil {
		return fmt.Errorf("ack %s from %s: %w", cmd, r.Name, err)
	}
	return r.Transition(onSuccess)
}

// Send delivers cmd over the control channel without waiting for an
// ack or applying a transition (used by termination, which escalates
// on process exit rather than on ack).
func (r *Record) Send(cmd Command) error {
	if r.ctrl == nil {
		return fmt.Errorf("module %s has no control channel", r.Name)
	}
	return r.ctrl.Send(cmd)
}

// External returns the module's external process handle, or nil for a
// script module.
func (r *Record) External() *ExternalHandle { return r.ext }

// CloseController releases the control channel without sending a
// command (used by the manager's rewind and after Terminate).
func (r *Record) CloseController() error {
	if r.ctrl == nil {
		return nil
	}
	return r.ctrl.Close()
}
