// Package config loads and validates a run configuration: the module
// declarations, wiring list, execution parameters and telemetry server
// settings described in spec §6.1.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"hermes/internal/signal"
)

// Config is the top-level, unvalidated shape of a run's YAML file.
type Config struct {
	Modules   map[string]ModuleConfig `yaml:"modules"`
	Wiring    []WireConfig            `yaml:"wiring"`
	Execution ExecutionConfig         `yaml:"execution"`
	Server    ServerConfig            `yaml:"server"`
}

// ModuleConfig is one entry of the modules map (spec §6.1).
type ModuleConfig struct {
	Type       string             `yaml:"type"` // "external" or "script"
	Executable string             `yaml:"executable,omitempty"`
	Args       []string           `yaml:"args,omitempty"`
	Script     string             `yaml:"script,omitempty"`
	ConfigPath string             `yaml:"config,omitempty"`
	Signals    []SignalConfig     `yaml:"signals"`
}

// SignalConfig is one signal declaration under a module.
type SignalConfig struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Unit      string `yaml:"unit,omitempty"`
	Writable  bool   `yaml:"writable,omitempty"`
	Published bool   `yaml:"published,omitempty"`
}

// WireConfig is one entry of the wiring list.
type WireConfig struct {
	Src    string  `yaml:"src"`
	Dst    string  `yaml:"dst"`
	Gain   float64 `yaml:"gain"`
	Offset float64 `yaml:"offset"`
}

// ExecutionConfig configures the scheduler (spec §6.1, §4.6).
//
// Rates are declared once here, for the whole run — spec §9's open
// question about per-module rates was decided against. Schedule entries
// are plain module names: an entry written as a mapping (for example
// with a rate_hz key) fails YAML parsing in Load with an *Error. A
// rate_hz key under a module's own entry is not read.
type ExecutionConfig struct {
	Mode       string   `yaml:"mode"`
	RateHz     float64  `yaml:"rate_hz"`
	EndTimeNs  *uint64  `yaml:"end_time_ns,omitempty"`
	Schedule   []string `yaml:"schedule"`
}

// ServerConfig configures the optional telemetry/WebSocket collaborator.
type ServerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TelemetryHz float64 `yaml:"telemetry_hz"`
}

// Load reads and parses a YAML configuration file. It does not
// validate; call Validate separately, matching spec §6.5
// `validate <config>` running independently of `run <config>`.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Reason: fmt.Sprintf("read config: %v", err)}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("parse config: %v", err)}
	}
	return &cfg, nil
}

// Error reports a configuration problem detected at load or validate
// time (spec §7 ConfigError). The process exits non-zero before any
// IPC object is created.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "config: " + e.Reason }

// Resolved is the validated, cross-checked form of a Config: a signal
// registry, an execution mode/rate already parsed, and the module list
// in schedule order, ready to hand to internal/manager.
type Resolved struct {
	Registry  *signal.Registry
	Modules   map[string]ModuleConfig
	Schedule  []string
	Wiring    []WireConfig
	Execution ExecutionConfig
	Server    ServerConfig
}

// Validate runs every cross-check from spec §6.1 and returns a
// Resolved config ready for internal/manager and internal/wire.
func Validate(cfg *Config) (*Resolved, error) {
	if len(cfg.Modules) == 0 {
		return nil, &Error{Reason: "at least one module is required"}
	}

	moduleOrder := moduleBuildOrder(cfg.Modules, cfg.Execution.Schedule)

	moduleSignals := make([]signal.ModuleSignals, 0, len(cfg.Modules))
	for _, name := range moduleOrder {
		mc := cfg.Modules[name]
		if mc.Type != "external" && mc.Type != "script" {
			return nil, &Error{Reason: fmt.Sprintf("module %q: type must be \"external\" or \"script\", got %q", name, mc.Type)}
		}
		if mc.Type == "external" && mc.Executable == "" {
			return nil, &Error{Reason: fmt.Sprintf("module %q: external module requires executable", name)}
		}
		if mc.Type == "script" && mc.Script == "" {
			return nil, &Error{Reason: fmt.Sprintf("module %q: script module requires script", name)}
		}

		descs := make([]signal.Descriptor, 0, len(mc.Signals))
		for _, sc := range mc.Signals {
			dt, err := signal.ParseDataType(sc.Type)
			if err != nil {
				return nil, &Error{Reason: fmt.Sprintf("module %q signal %q: %v", name, sc.Name, err)}
			}
			descs = append(descs, signal.Descriptor{
				LocalName: sc.Name,
				Type:      dt,
				Unit:      sc.Unit,
				Writable:  sc.Writable,
				Published: sc.Published,
			})
		}
		moduleSignals = append(moduleSignals, signal.ModuleSignals{ModuleName: name, Signals: descs})
	}

	reg, err := signal.Build(moduleSignals)
	if err != nil {
		return nil, &Error{Reason: err.Error()}
	}

	for _, w := range cfg.Wiring {
		if w.Src == w.Dst {
			return nil, &Error{Reason: fmt.Sprintf("wire %q -> %q: src and dst must differ", w.Src, w.Dst)}
		}
		if _, err := reg.Lookup(w.Src); err != nil {
			return nil, &Error{Reason: fmt.Sprintf("wire src %q: %v", w.Src, err)}
		}
		dst, err := reg.Lookup(w.Dst)
		if err != nil {
			return nil, &Error{Reason: fmt.Sprintf("wire dst %q: %v", w.Dst, err)}
		}
		if !dst.Writable() {
			return nil, &Error{Reason: fmt.Sprintf("wire dst %q is not writable", w.Dst)}
		}
	}

	if cfg.Execution.RateHz <= 0 {
		return nil, &Error{Reason: fmt.Sprintf("execution.rate_hz must be > 0, got %v", cfg.Execution.RateHz)}
	}
	switch cfg.Execution.Mode {
	case "realtime", "afap", "single_frame":
	default:
		return nil, &Error{Reason: fmt.Sprintf("execution.mode must be realtime, afap or single_frame, got %q", cfg.Execution.Mode)}
	}

	if err := validateSchedule(cfg.Execution.Schedule, cfg.Modules); err != nil {
		return nil, err
	}

	return &Resolved{
		Registry:  reg,
		Modules:   cfg.Modules,
		Schedule:  scheduleOrder(cfg.Execution.Schedule, cfg.Modules),
		Wiring:    cfg.Wiring,
		Execution: cfg.Execution,
		Server:    cfg.Server,
	}, nil
}

// scheduleOrder is the execution order handed to the process manager
// (spec §6.1 "schedule entries are a permutation (or subset) of defined
// modules"). An explicit schedule, including a subset, is used exactly
// as given. An empty schedule means every declared module runs, in
// name order — the same "empty = registration order" fallback the
// original config loader's get_module_names uses, made deterministic
// since Go map iteration isn't.
func scheduleOrder(schedule []string, modules map[string]ModuleConfig) []string {
	if len(schedule) > 0 {
		return schedule
	}
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// moduleBuildOrder fixes the order modules are handed to signal.Build in,
// since that order is the slot/offset ABI between the coordinator and
// every module process (spec §4.3) and ranging over cfg.Modules directly
// would depend on Go's randomized map iteration. Scheduled modules come
// first, in schedule order; any module the schedule omits (spec §6.1
// allows schedule to be a subset of modules) follows in name order, the
// same fallback the original config loader uses when no schedule name
// covers a module.
func moduleBuildOrder(modules map[string]ModuleConfig, schedule []string) []string {
	order := make([]string, 0, len(modules))
	inSchedule := make(map[string]bool, len(schedule))
	for _, name := range schedule {
		if _, ok := modules[name]; ok && !inSchedule[name] {
			order = append(order, name)
			inSchedule[name] = true
		}
	}
	rest := make([]string, 0, len(modules)-len(order))
	for name := range modules {
		if !inSchedule[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// validateSchedule checks that schedule entries are a permutation (or
// subset) of the defined modules, with no duplicates (spec §6.1). An
// empty schedule is valid: it means "run every module", resolved by
// scheduleOrder.
func validateSchedule(schedule []string, modules map[string]ModuleConfig) error {
	seen := make(map[string]bool, len(schedule))
	for _, name := range schedule {
		if _, ok := modules[name]; !ok {
			return &Error{Reason: fmt.Sprintf("execution.schedule references undefined module %q", name)}
		}
		if seen[name] {
			return &Error{Reason: fmt.Sprintf("execution.schedule lists module %q more than once", name)}
		}
		seen[name] = true
	}
	return nil
}
