package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"lrucache/internal/errs"
	"lrucache/internal/logging"
)

func main() {
	// Signal-aware context is the root of ownership for long-lived work.
	// SIGINT/SIGTERM cancels it and the daemon shuts down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command failed", slog.Any("err", errs.Loggable(err)))
		stop()
		os.Exit(1)
	}
	stop()
}
