// Package logging provides the structured logger shared across the
// coordinator: every fatal error is logged with frame/module/name
// context before the process exits non-zero (spec §7 "User-visible
// behavior"). It wraps go.uber.org/zap the way linker.Logger() does in
// the wasm runtime this project drew its logging idiom from — a
// package-level accessor with a no-op default, swappable at startup.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// L returns the process-wide logger. It is a no-op logger until
// SetLogger installs a real one, so packages that log during package
// init or in tests never crash for want of configuration.
func L() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs the process-wide logger. Call once, from main,
// before spawning any module or starting the scheduler.
func SetLogger(l *zap.Logger) {
	logger = l
}

// NewCLI builds the logger cmd/hermesctl installs: human-readable
// console output at info level, matching an operator's terminal
// rather than a log aggregator's JSON pipeline.
func NewCLI(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.DisableStacktrace = !debug
	return cfg.Build()
}

// Frame returns the zap field convention this package uses for the
// frame number, so every call site spells the key identically.
func Frame(n uint64) zap.Field { return zap.Uint64("frame", n) }

// Module returns the zap field convention for a module name.
func Module(name string) zap.Field { return zap.String("module", name) }

// Signal returns the zap field convention for a qualified signal name.
func Signal(name string) zap.Field { return zap.String("signal", name) }
