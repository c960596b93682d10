package manager

import (
	"fmt"
	"time"
)

// CrashError is raised when a module process exits before it is told
// to terminate (spec §4.4 "On any internal error, exits non-zero";
// spec §7 ModuleCrashed).
type CrashError struct {
	ModuleName string
	ExitErr    error
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("module %s crashed: %v", e.ModuleName, e.ExitErr)
}

func (e *CrashError) Unwrap() error { return e.ExitErr }

// BarrierTimeoutError is raised when a module fails to signal done (or
// consume a step release) within the configured timeout (spec §7
// BarrierTimeout).
type BarrierTimeoutError struct {
	ModuleName string
	Op         string
	Timeout    time.Duration
}

func (e *BarrierTimeoutError) Error() string {
	return fmt.Sprintf("module %s: %s timed out after %s", e.ModuleName, e.Op, e.Timeout)
}
