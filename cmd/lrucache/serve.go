package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"lrucache/internal/cache"
	"lrucache/internal/config"
	"lrucache/internal/errs"
	"lrucache/internal/logging"
	"lrucache/internal/metrics"
	"lrucache/internal/server"
	"lrucache/internal/snapshot"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cache daemon on a Unix socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cfg, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	ctx = logging.WithAttrs(ctx, slog.String("component", "serve"))

	var c *cache.Cache[string, []byte]
	collector := metrics.NewCollector("lrucache", func() int { return c.Len() })

	c, err := cache.New(cfg.Cache.Capacity,
		cache.WithObserver[string, []byte](collector),
		cache.WithCleanupInterval[string, []byte](cfg.Cache.CleanupInterval),
	)
	if err != nil {
		return errs.Wrap(err, "create cache")
	}
	defer c.Close()

	var store *snapshot.Store
	if cfg.Snapshot.Path != "" {
		store, err = snapshot.Open(cfg.Snapshot.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Load(time.Now())
		if err != nil {
			// A bad snapshot should not keep the daemon down; start cold.
			logging.Warn(ctx, "snapshot unreadable, starting empty", slog.Any("err", errs.Loggable(err)))
		} else {
			n := snapshot.Restore(c, entries, time.Now())
			logging.Info(ctx, "snapshot restored", slog.Int("entries", n), slog.String("path", cfg.Snapshot.Path))
		}
	}

	if cfg.Server.MetricsAddr != "" {
		stopMetrics := serveMetrics(ctx, cfg.Server.MetricsAddr, collector)
		defer stopMetrics()
	}

	l, err := server.Listen(cfg.Server.Socket)
	if err != nil {
		return err
	}

	logging.Info(ctx, "cache daemon starting",
		slog.Int("capacity", cfg.Cache.Capacity),
		slog.Duration("cleanup_interval", cfg.Cache.CleanupInterval),
		slog.String("socket", cfg.Server.Socket),
	)

	serveErr := server.New(c).Serve(ctx, l)

	if store != nil {
		entries := c.Entries()
		if err := store.Save(entries); err != nil {
			logging.Error(ctx, "snapshot save failed", slog.Any("err", errs.Loggable(err)))
			return errors.Join(serveErr, err)
		}
		logging.Info(ctx, "snapshot saved", slog.Int("entries", len(entries)))
	}

	logging.Info(ctx, "cache daemon stopped")
	return serveErr
}

func serveMetrics(ctx context.Context, addr string, collector *metrics.Collector) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logging.Info(ctx, "metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "metrics server failed", slog.Any("err", errs.Loggable(err)))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
