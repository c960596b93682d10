package hermes

import (
	"fmt"

	"hermes/pkg/modrt"
)

// scriptHooks resolves a config's `script:` field to a built-in
// in-process module behavior. A YAML config cannot embed Go code, so
// "script" modules choose from a small named registry instead of
// spawning a process — the in-language counterpart to cmd/hermesecho's
// affine self-update, run as a goroutine rather than a subprocess.
func scriptHooks(name string) (modrt.Hooks, error) {
	fn, ok := builtinScripts[name]
	if !ok {
		return modrt.Hooks{}, fmt.Errorf("unknown script %q", name)
	}
	return fn(), nil
}

var builtinScripts = map[string]func() modrt.Hooks{
	"identity": identityScript,
	"ramp":     rampScript,
}

// identityScript leaves every signal unchanged each frame (its Step
// hook does nothing) — useful as a sink or a passthrough test fixture.
func identityScript() modrt.Hooks {
	return modrt.Hooks{
		Step: func(c *modrt.Client) error {
			return nil
		},
	}
}

// rampScript writes frame*dt_ns (as seconds) into the module's "v"
// signal, the minimal driving source for wiring tests.
func rampScript() modrt.Hooks {
	return modrt.Hooks{
		Step: func(c *modrt.Client) error {
			seconds := float64(c.CurrentTimeNs()) / 1e9
			return c.SetF64("v", seconds)
		},
	}
}
