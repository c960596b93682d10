package module

import (
	"fmt"
	"time"
)

// ScriptTransport is the module-side half of an in-language script
// module's control channel: a pair of Go channels standing in for the
// pipe pair used by external processes (spec §3.4 module-type tag
// "in-language script"). pkg/modrt's script runner reads commands and
// posts acks through this type; ScriptController is the coordinator's
// matching half.
type ScriptTransport struct {
	cmds chan Command
	acks chan error
}

// ScriptController is the process manager's Controller implementation
// for a script module.
type ScriptController struct {
	pair *ScriptTransport
}

// NewScriptPair creates a connected controller/transport pair for one
// script module.
func NewScriptPair() (*ScriptController, *ScriptTransport) {
	pair := &ScriptTransport{
		cmds: make(chan Command, 1),
		acks: make(chan error, 1),
	}
	return &ScriptController{pair: pair}, pair
}

func (c *ScriptController) Send(cmd Command) error {
	select {
	case c.pair.cmds <- cmd:
		return nil
	default:
		return fmt.Errorf("script module control channel is full")
	}
}

func (c *ScriptController) Ack(timeout time.Duration) error {
	select {
	case err := <-c.pair.acks:
		return err
	case <-time.After(timeout):
		return ErrAckTimeout
	}
}

func (c *ScriptController) Close() error {
	close(c.pair.cmds)
	return nil
}

// NextCommand blocks for the next command from the coordinator. ok is
// false once the coordinator has closed the channel (module should
// exit its loop).
func (t *ScriptTransport) NextCommand() (cmd Command, ok bool) {
	cmd, ok = <-t.cmds
	return cmd, ok
}

// Ack reports the result of the most recently received command.
func (t *ScriptTransport) Ack(err error) {
	t.acks <- err
}
