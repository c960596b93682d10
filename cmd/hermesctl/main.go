// Command hermesctl is the operator CLI for Hermes: it validates run
// configs, runs them to completion and inspects a live or leftover
// backplane segment, mirroring protogonosctl's flag-subcommand
// dispatch shape.
package main

import (
	"context"
	"fmt"
	"os"

	"hermes/internal/config"
	"hermes/pkg/hermes"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "validate":
		return runValidate(args[1:])
	case "list-signals":
		return runListSignals(args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: hermesctl <run|validate|list-signals> [flags]", msg)
}

func loadResolved(path string) (*config.Config, *config.Resolved, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	resolved, err := hermes.Validate(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, resolved, nil
}
