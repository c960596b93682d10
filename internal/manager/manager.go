// Package manager implements the process manager described in spec
// §4.5: it materializes the backplane segment and frame barrier,
// spawns module processes (external or in-language script), sequences
// their lifecycle commands, and coordinates each frame.
package manager

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"hermes/internal/backplane"
	"hermes/internal/barrier"
	"hermes/internal/module"
	"hermes/internal/signal"
	"hermes/internal/wire"
)

// ModuleSpec is one module's spawn configuration, in the execution
// order used both to assign signal slots and to spawn processes (spec
// §4.3, §4.5).
type ModuleSpec struct {
	Name string

	// External module fields. Executable is empty for script modules.
	Executable string
	Args       []string
	ConfigPath string

	// Script module field: nil for external modules. RunScript is handed a
	// ready-to-use transport and is expected to call
	// pkg/modrt.RunScript in a new goroutine and return immediately —
	// the manager owns no goroutine lifecycle beyond spawn.
	RunScript func(transport *module.ScriptTransport)
}

// Config is the manager's materialization input: the segment/barrier
// base name, the signal registry already built from config, and the
// modules in execution order (spec §4.3 "this order is an ABI").
type Config struct {
	SegmentName string
	BarrierBase string
	Registry    *signal.Registry
	Modules     []ModuleSpec
	Router      *wire.Router

	// CommandTimeout bounds stage/reset/terminate ack waits.
	CommandTimeout time.Duration
	// FrameTimeout bounds each module's per-frame wait(done).
	FrameTimeout time.Duration
	// TerminateGrace bounds T1 (time to honor "terminate" before
	// SIGTERM) and T2 (time to honor SIGTERM before SIGKILL).
	TerminateGrace time.Duration
}

func (c *Config) normalize() {
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = barrier.DefaultTimeout
	}
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = barrier.DefaultTimeout
	}
	if c.TerminateGrace <= 0 {
		c.TerminateGrace = 2 * time.Second
	}
}

// Manager owns the segment, the barrier and every module record for
// one run. Only the run loop calls StepAll; Terminate/Reset may be
// called concurrently with a stopped run loop but never while StepAll
// is in flight.
type Manager struct {
	cfg Config
	mu  sync.Mutex

	segment *backplane.Segment
	bar     *barrier.Barrier
	records []*module.Record
	started bool
}

// New materializes the segment and barrier and spawns every module in
// cfg.Modules, in order (spec §4.5 "Spawn"). On any spawn failure it
// rewinds: already-spawned modules are terminated and the segment and
// barrier are unlinked, exactly as spec §4.5 requires.
func New(cfg Config) (*Manager, error) {
	cfg.normalize()

	seg, err := backplane.Create(cfg.SegmentName, cfg.Registry)
	if err != nil {
		return nil, err
	}
	bar, err := barrier.Create(cfg.BarrierBase, len(cfg.Modules))
	if err != nil {
		seg.Destroy()
		return nil, err
	}

	m := &Manager{cfg: cfg, segment: seg, bar: bar}

	for _, spec := range cfg.Modules {
		rec, err := m.spawn(spec)
		if err != nil {
			m.rewind()
			return nil, err
		}
		m.records = append(m.records, rec)
	}
	return m, nil
}

func (m *Manager) spawn(spec ModuleSpec) (*module.Record, error) {
	params := module.SpawnParams{
		SegmentName: m.cfg.SegmentName,
		BarrierBase: m.cfg.BarrierBase,
		ModuleName:  spec.Name,
		ConfigPath:  spec.ConfigPath,
	}

	if spec.Executable != "" {
		handle, err := module.Spawn(spec.Executable, spec.Args, params)
		if err != nil {
			return nil, err
		}
		return module.NewExternal(spec.Name, handle), nil
	}

	if spec.RunScript == nil {
		return nil, fmt.Errorf("module %s declares neither an executable nor a script runner", spec.Name)
	}
	ctrl, transport := module.NewScriptPair()
	spec.RunScript(transport)
	return module.NewScript(spec.Name, ctrl), nil
}

// rewind terminates every spawned module and unlinks the segment and
// barrier. Called on a failed New.
func (m *Manager) rewind() {
	for _, rec := range m.records {
		rec.CloseController()
		if ext := rec.External(); ext != nil {
			ext.Signal(os.Kill)
		}
	}
	m.segment.Destroy()
	m.bar.Destroy()
}

// Stage sends "stage" to every module and waits for every ack (spec
// §4.5 "Stage"). Any failure is fatal to the run.
func (m *Manager) Stage() error {
	return m.broadcast(module.CmdStage, module.StateStaged)
}

// Reset sends "reset" to every module, waits for acks, then re-zeroes
// frame and time_ns in the header (spec §4.5 "Reset").
func (m *Manager) Reset() error {
	if err := m.broadcast(module.CmdReset, module.StateStaged); err != nil {
		return err
	}
	m.segment.SetClock(0, 0)
	m.started = false
	return nil
}

func (m *Manager) broadcast(cmd module.Command, onSuccess module.State) error {
	for _, rec := range m.records {
		if err := rec.SendCommand(cmd, m.cfg.CommandTimeout, onSuccess); err != nil {
			return err
		}
	}
	return nil
}

// StepAll drives exactly one frame (spec §4.5 "Per-frame
// coordination"): write (frame, time_ns) to the header, release
// "step" for every module, then wait "done" from each module in
// configured execution order — a serialization that gives the wire
// router a defined read-after-write ordering — before routing wires.
func (m *Manager) StepAll(frame, timeNs uint64) error {
	if !m.started {
		for _, rec := range m.records {
			if err := rec.Transition(module.StateRunning); err != nil {
				return err
			}
		}
		m.started = true
	}

	m.segment.SetClock(frame, timeNs)
	m.bar.ReleaseStep(len(m.records))

	for _, rec := range m.records {
		if !m.bar.WaitDone(m.cfg.FrameTimeout) {
			return &BarrierTimeoutError{ModuleName: rec.Name, Op: "wait(done)", Timeout: m.cfg.FrameTimeout}
		}
		if rec.Type == module.TypeExternal {
			if exited, err := rec.External().Wait(0); exited {
				return &CrashError{ModuleName: rec.Name, ExitErr: err}
			}
		}
	}

	if m.cfg.Router != nil {
		if err := m.cfg.Router.Route(m.segment); err != nil {
			return err
		}
	}
	return nil
}

// Segment exposes the manager's own backplane attachment, for
// telemetry and list-signals.
func (m *Manager) Segment() *backplane.Segment { return m.segment }

// Records returns every module's current bookkeeping record, for
// diagnostics.
func (m *Manager) Records() []*module.Record { return m.records }

// Terminate implements spec §4.5 "Termination": send "terminate" to
// each module, wait up to T1, SIGTERM the rest, wait up to T2, SIGKILL
// whatever remains, then unlink segment and barrier. Unlink always
// runs, even if every module already exited cleanly.
func (m *Manager) Terminate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var alive []*module.Record
	for _, rec := range m.records {
		if err := rec.Send(module.CmdTerminate); err != nil {
			continue
		}
		alive = append(alive, rec)
	}

	alive = m.waitExternalExit(alive, m.cfg.TerminateGrace)
	if len(alive) > 0 {
		for _, rec := range alive {
			if ext := rec.External(); ext != nil {
				ext.Signal(syscall.SIGTERM)
			}
		}
		alive = m.waitExternalExit(alive, m.cfg.TerminateGrace)
	}
	for _, rec := range alive {
		if ext := rec.External(); ext != nil {
			ext.Signal(os.Kill)
		}
	}

	for _, rec := range m.records {
		rec.CloseController()
	}

	err1 := m.segment.Destroy()
	err2 := m.bar.Destroy()
	if err1 != nil {
		return err1
	}
	return err2
}

// waitExternalExit waits up to grace for every external record in
// candidates to exit; script modules and already-closed controllers
// are dropped unconditionally since they have no OS process to wait
// on. It returns the subset still alive after the deadline.
func (m *Manager) waitExternalExit(candidates []*module.Record, grace time.Duration) []*module.Record {
	deadline := time.Now().Add(grace)
	var remaining []*module.Record
	for _, rec := range candidates {
		ext := rec.External()
		if ext == nil {
			continue
		}
		left := time.Until(deadline)
		if left < 0 {
			left = 0
		}
		if exited, _ := ext.Wait(left); !exited {
			remaining = append(remaining, rec)
		}
	}
	return remaining
}
