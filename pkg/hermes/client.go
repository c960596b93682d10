// Package hermes is the orchestrator facade: it wires config, the
// signal registry, the process manager and the scheduler behind the
// two entry points a caller needs, Validate and Run, the way
// pkg/protogonos wraps its evolutionary engine behind a small facade
// API rather than exposing its subsystems directly.
package hermes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hermes/internal/backplane"
	"hermes/internal/config"
	"hermes/internal/history"
	"hermes/internal/manager"
	"hermes/internal/module"
	"hermes/internal/scheduler"
	"hermes/internal/signal"
	"hermes/internal/wire"
	"hermes/pkg/modrt"
)

// Options configures a Run (spec §6.5 `run <config>` flags map onto
// these).
type Options struct {
	HistoryKind string
	HistoryPath string

	CommandTimeout time.Duration
	FrameTimeout   time.Duration
	TerminateGrace time.Duration
}

// Validate implements spec §6.5 `validate <config>` without
// materializing any IPC object.
func Validate(cfg *config.Config) (*config.Resolved, error) {
	return config.Validate(cfg)
}

// RunResult reports how far a run got.
type RunResult struct {
	RunID       string
	FinalFrame  uint64
	FinalTimeNs uint64
}

// RunConfig bundles what Run needs beyond the validated config:
// per-frame callback, run naming and options. Cancellation comes from
// Run's ctx.
type RunConfig struct {
	Resolved *config.Resolved
	RunID    string // defaults to a fresh UUID if empty
	OnFrame  func(frame, timeNs uint64)
	Options  Options
}

// Run implements spec §6.5 `run <config>`: construct the segment,
// spawn modules, stage, run the scheduler to completion (or until an
// error or cancellation), and shut everything down. It always attempts
// termination and unlink even when the run fails partway, matching
// spec §7's "partial shutdown must still unlink IPC objects." runID
// identifies this run in the history store and, by default, the
// segment/barrier name.
func Run(ctx context.Context, rc RunConfig) (RunResult, error) {
	runID := rc.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	hist, err := history.NewStore(rc.Options.HistoryKind, rc.Options.HistoryPath)
	if err != nil {
		return RunResult{}, err
	}
	if err := hist.Init(ctx); err != nil {
		return RunResult{}, err
	}
	defer history.CloseIfSupported(hist)

	segName := runID
	barName := runID

	specs, err := buildModuleSpecs(rc.Resolved, segName, barName)
	if err != nil {
		return RunResult{}, err
	}

	router, err := wire.Compile(toWireRoutes(rc.Resolved.Wiring), rc.Resolved.Registry)
	if err != nil {
		return RunResult{}, err
	}

	mgr, err := manager.New(manager.Config{
		SegmentName:    segName,
		BarrierBase:    barName,
		Registry:       rc.Resolved.Registry,
		Modules:        specs,
		Router:         router,
		CommandTimeout: rc.Options.CommandTimeout,
		FrameTimeout:   rc.Options.FrameTimeout,
		TerminateGrace: rc.Options.TerminateGrace,
	})
	if err != nil {
		return RunResult{}, err
	}

	result, runErr := runLifecycle(ctx, runID, mgr, rc, hist)

	if termErr := mgr.Terminate(); termErr != nil && runErr == nil {
		runErr = termErr
	}
	return result, runErr
}

func runLifecycle(ctx context.Context, runID string, mgr *manager.Manager, rc RunConfig, hist history.Store) (RunResult, error) {
	if err := mgr.Stage(); err != nil {
		hist.RecordFrameError(ctx, history.FrameError{RunID: runID, Kind: "ConfigError", Message: err.Error()})
		return RunResult{}, err
	}

	mode, err := scheduler.ParseMode(rc.Resolved.Execution.Mode)
	if err != nil {
		return RunResult{}, err
	}
	var endTimeNs uint64
	hasEnd := rc.Resolved.Execution.EndTimeNs != nil
	if hasEnd {
		endTimeNs = *rc.Resolved.Execution.EndTimeNs
	}

	sched, err := scheduler.New(mgr, rc.Resolved.Execution.RateHz, mode, endTimeNs, hasEnd)
	if err != nil {
		return RunResult{}, err
	}
	sched.Stage()

	go func() {
		<-ctx.Done()
		sched.Stop()
	}()

	if err := sched.Run(rc.OnFrame); err != nil {
		hist.RecordFrameError(ctx, history.FrameError{RunID: runID, Frame: sched.Frame(), Kind: "RunError", Message: err.Error()})
		return RunResult{RunID: runID, FinalFrame: sched.Frame(), FinalTimeNs: sched.TimeNs()}, err
	}

	return RunResult{RunID: runID, FinalFrame: sched.Frame(), FinalTimeNs: sched.TimeNs()}, nil
}

// buildModuleSpecs turns the resolved config's module map into
// manager.ModuleSpec values in schedule order (spec §4.3 "this order
// is an ABI between the coordinator and module processes").
func buildModuleSpecs(resolved *config.Resolved, segName, barName string) ([]manager.ModuleSpec, error) {
	specs := make([]manager.ModuleSpec, 0, len(resolved.Schedule))
	for _, name := range resolved.Schedule {
		mc, ok := resolved.Modules[name]
		if !ok {
			return nil, fmt.Errorf("schedule references undefined module %q", name)
		}
		switch mc.Type {
		case "external":
			specs = append(specs, manager.ModuleSpec{
				Name:       name,
				Executable: mc.Executable,
				Args:       mc.Args,
				ConfigPath: mc.ConfigPath,
			})
		case "script":
			hooks, err := scriptHooks(mc.Script)
			if err != nil {
				return nil, fmt.Errorf("module %q: %w", name, err)
			}
			moduleName := name
			specs = append(specs, manager.ModuleSpec{
				Name: moduleName,
				RunScript: func(transport *module.ScriptTransport) {
					go modrt.RunScript(segName, barName, moduleName, transport, hooks)
				},
			})
		default:
			return nil, fmt.Errorf("module %q: unknown type %q", name, mc.Type)
		}
	}
	return specs, nil
}

func toWireRoutes(cfg []config.WireConfig) []wire.Route {
	routes := make([]wire.Route, len(cfg))
	for i, w := range cfg {
		routes[i] = wire.Route{Src: w.Src, Dst: w.Dst, Gain: w.Gain, Offset: w.Offset}
	}
	return routes
}

// ListSignals attaches to an existing segment and returns its
// directory (spec §6.5 `list-signals --segment <name>`).
func ListSignals(segmentName string) ([]signal.Signal, error) {
	seg, err := backplane.Attach(segmentName)
	if err != nil {
		return nil, err
	}
	defer seg.Detach()
	return seg.Directory(), nil
}
