package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"hermes/pkg/hermes"
)

func runListSignals(args []string) error {
	fs := flag.NewFlagSet("list-signals", flag.ContinueOnError)
	segment := fs.String("segment", "", "backplane segment name")
	jsonOut := fs.Bool("json", false, "emit JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *segment == "" {
		return usageError("list-signals requires --segment")
	}

	signals, err := hermes.ListSignals(*segment)
	if err != nil {
		return err
	}

	if *jsonOut || !isatty.IsTerminal(os.Stdout.Fd()) {
		return json.NewEncoder(os.Stdout).Encode(signals)
	}

	fmt.Printf("%d signals in segment %q\n", len(signals), *segment)
	for _, s := range signals {
		flags := ""
		if s.Writable() {
			flags += "W"
		}
		if s.Published() {
			flags += "P"
		}
		fmt.Printf("  %-32s %-6s %-4s offset=%s\n", s.Qualified, s.Type, flags, humanize.Bytes(uint64(s.ByteOffset)))
	}
	return nil
}
