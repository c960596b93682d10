package main

import (
	"flag"
	"fmt"
)

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("validate requires exactly one config path")
	}

	_, resolved, err := loadResolved(fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("ok: %d modules, %d wires, schedule=%v, mode=%s, rate=%.2fHz\n",
		len(resolved.Modules), len(resolved.Wiring), resolved.Schedule,
		resolved.Execution.Mode, resolved.Execution.RateHz)
	return nil
}
