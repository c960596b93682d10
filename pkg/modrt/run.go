package modrt

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"hermes/internal/module"
)

// Hooks are the callbacks a module supplies for the lifecycle commands
// it must answer (spec §4.4): stage initializes internal state, step
// runs once per frame between wait_step and signal_done, and reset
// reverts to the staged state. Pause/resume/terminate require no
// module-side hook — the module only needs to keep calling WaitStep,
// and terminate simply ends the loop.
type Hooks struct {
	Stage func(c *Client) error
	Step  func(c *Client) error
	Reset func(c *Client) error

	// StepTimeout bounds each WaitStep call inside the frame loop. Zero
	// or negative leaves the loop polling at framePollInterval, since a
	// zero timeout at the barrier level is a non-blocking poll, not a
	// blocking wait (spec §8.3).
	StepTimeout time.Duration
}

// commandSource abstracts the two transports (pipe-based for external
// processes, channel-based for in-language scripts) behind one
// interface so the frame/command loop below is written once.
type commandSource interface {
	next() (module.Command, bool)
	ack(err error)
}

func runLoop(c *Client, src commandSource, hooks Hooks) error {
	stopCh := make(chan struct{})
	frameLoopDone := make(chan struct{})
	frameLoopStarted := false

	stop := func() {
		if frameLoopStarted {
			close(stopCh)
			<-frameLoopDone
		}
		c.Detach()
	}

	for {
		cmd, ok := src.next()
		if !ok {
			stop()
			return fmt.Errorf("control channel closed unexpectedly for module %s", c.Name())
		}

		switch cmd {
		case module.CmdStage:
			var err error
			if hooks.Stage != nil {
				err = hooks.Stage(c)
			}
			src.ack(err)
			if err != nil {
				stop()
				return err
			}
			if !frameLoopStarted {
				frameLoopStarted = true
				go func() {
					defer close(frameLoopDone)
					c.frameLoop(stopCh, hooks)
				}()
			}

		case module.CmdReset:
			var err error
			if hooks.Reset != nil {
				err = hooks.Reset(c)
			}
			src.ack(err)
			if err != nil {
				stop()
				return err
			}

		case module.CmdPause, module.CmdResume:
			// Pause/resume affect only the coordinator's issuance of
			// step releases (spec §4.4); the module keeps calling
			// WaitStep either way.
			src.ack(nil)

		case module.CmdTerminate:
			src.ack(nil)
			stop()
			return nil

		default:
			src.ack(fmt.Errorf("unhandled command %q", cmd))
		}
	}
}

// framePollInterval bounds how long a single WaitStep call blocks
// before frameLoop re-checks stopCh, so terminate can interrupt an
// indefinite wait.
const framePollInterval = 200 * time.Millisecond

// frameLoop is the per-frame wait_step/step/signal_done cycle (spec
// §4.2 "Module" row), run concurrently with command handling once the
// module has staged.
func (c *Client) frameLoop(stopCh <-chan struct{}, hooks Hooks) {
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		slice := framePollInterval
		if hooks.StepTimeout > 0 && hooks.StepTimeout < slice {
			slice = hooks.StepTimeout
		}
		_, _, ok := c.WaitStep(slice)
		if !ok {
			continue
		}
		if hooks.Step != nil {
			if err := hooks.Step(c); err != nil {
				return
			}
		}
		c.SignalDone()
	}
}

// externalSource reads commands from fd 3 and writes acks to fd 4, the
// control-channel convention established by internal/module.Spawn.
type externalSource struct {
	cmdR *bufio.Reader
	ackW *os.File
}

func (s *externalSource) next() (module.Command, bool) {
	line, err := s.cmdR.ReadString('\n')
	if err != nil {
		return "", false
	}
	cmd, err := module.DecodeCommand(line)
	if err != nil {
		return "", false
	}
	return cmd, true
}

func (s *externalSource) ack(err error) {
	fmt.Fprint(s.ackW, module.EncodeAck(err))
}

// RunExternal is the entry point for an external module binary's
// main(): it reads the HERMES_* attach parameters from the
// environment, attaches segment and barrier, and answers commands
// until "terminate" or the control channel closes.
func RunExternal(hooks Hooks) error {
	segmentName := os.Getenv("HERMES_SEGMENT")
	barrierBase := os.Getenv("HERMES_BARRIER_BASE")
	moduleName := os.Getenv("HERMES_MODULE_NAME")
	if segmentName == "" || barrierBase == "" || moduleName == "" {
		return fmt.Errorf("modrt: missing HERMES_SEGMENT/HERMES_BARRIER_BASE/HERMES_MODULE_NAME")
	}

	c, err := Attach(segmentName, barrierBase, moduleName)
	if err != nil {
		return err
	}

	cmdR := os.NewFile(3, "hermes-cmd")
	ackW := os.NewFile(4, "hermes-ack")
	if cmdR == nil || ackW == nil {
		return fmt.Errorf("modrt: control channel file descriptors 3/4 not present")
	}

	src := &externalSource{cmdR: bufio.NewReader(cmdR), ackW: ackW}
	return runLoop(c, src, hooks)
}

// scriptSource adapts a module.ScriptTransport to commandSource.
type scriptSource struct {
	transport *module.ScriptTransport
}

func (s *scriptSource) next() (module.Command, bool) { return s.transport.NextCommand() }
func (s *scriptSource) ack(err error)                { s.transport.Ack(err) }

// RunScript is the entry point for an in-language script module
// spawned by the process manager as a goroutine (spec §3.4 module-type
// tag "in-language script"). It attaches the same way an external
// process would, then answers commands over the given transport.
func RunScript(segmentName, barrierBase, moduleName string, transport *module.ScriptTransport, hooks Hooks) error {
	c, err := Attach(segmentName, barrierBase, moduleName)
	if err != nil {
		return err
	}
	return runLoop(c, &scriptSource{transport: transport}, hooks)
}
