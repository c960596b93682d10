// Command hermesecho is the reference external module: it attaches to
// the segment and barrier named by its environment (HERMES_SEGMENT,
// HERMES_BARRIER_BASE, HERMES_MODULE_NAME, set by internal/module's
// Spawn), and each frame applies an affine self-update to one signal,
// v = v*gain + offset*frame. It exists so integration tests and the
// CLI's run path have a real process to spawn.
package main

import (
	"flag"
	"fmt"
	"os"

	"hermes/pkg/modrt"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hermesecho:", err)
		os.Exit(1)
	}
}

func run() error {
	signalName := flag.String("signal", "v", "local signal name to update each frame")
	gain := flag.Float64("gain", 1.0, "multiplicative term of the affine update")
	offset := flag.Float64("offset", 0.0, "additive term, scaled by frame number")
	flag.Parse()

	hooks := modrt.Hooks{
		Step: func(c *modrt.Client) error {
			cur, err := c.GetF64(*signalName)
			if err != nil {
				return err
			}
			next := cur*(*gain) + (*offset)*float64(c.CurrentFrame())
			return c.SetF64(*signalName, next)
		},
	}

	return modrt.RunExternal(hooks)
}
