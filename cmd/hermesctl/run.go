package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"hermes/internal/logging"
	"hermes/pkg/hermes"
)

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	historyKind := fs.String("history", "memory", "history backend: memory|sqlite")
	historyPath := fs.String("history-path", "hermes-history.db", "sqlite history path")
	commandTimeout := fs.Duration("command-timeout", 2*time.Second, "stage/reset/terminate ack timeout")
	frameTimeout := fs.Duration("frame-timeout", time.Second, "per-frame module wait(done) timeout")
	terminateGrace := fs.Duration("terminate-grace", 2*time.Second, "grace period per termination escalation step")
	debug := fs.Bool("debug", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("run requires exactly one config path")
	}
	configPath := fs.Arg(0)

	logger, err := logging.NewCLI(*debug)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()
	logging.SetLogger(logger)

	_, resolved, err := loadResolved(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	result, err := hermes.Run(ctx, hermes.RunConfig{
		Resolved: resolved,
		OnFrame: func(frame, timeNs uint64) {
			logger.Debug("frame", logging.Frame(frame))
		},
		Options: hermes.Options{
			HistoryKind:    *historyKind,
			HistoryPath:    *historyPath,
			CommandTimeout: *commandTimeout,
			FrameTimeout:   *frameTimeout,
			TerminateGrace: *terminateGrace,
		},
	})
	elapsed := time.Since(start)

	if err != nil {
		logger.Error("run failed", zap.String("run_id", result.RunID), zap.Error(err))
		return err
	}

	fmt.Printf("run %s completed: %d frames, %.3fs simulated, %s wall clock\n",
		result.RunID, result.FinalFrame, float64(result.FinalTimeNs)/1e9, humanize.RelTime(start, start.Add(elapsed), "", ""))
	return nil
}
