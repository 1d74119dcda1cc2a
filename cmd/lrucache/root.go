package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"lrucache/internal/config"
	"lrucache/internal/errs"
	"lrucache/internal/logging"
)

type rootOptions struct {
	configFile string
	logLevel   string
	socket     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "lrucache",
		Short:         "Bounded least-recently-used cache and cache daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ./lrucache.yaml when present)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override: debug, info, warn, error")
	flags.StringVar(&opts.socket, "socket", "", "daemon socket path override")

	cmd.AddCommand(
		newDemoCmd(opts),
		newServeCmd(opts),
		newGetCmd(opts),
		newPutCmd(opts),
		newDeleteCmd(opts),
		newKeysCmd(opts),
	)

	return cmd
}

// setup loads config, applies flag overrides and returns a context carrying
// a logger built from the result.
func (o *rootOptions) setup(cmd *cobra.Command) (context.Context, config.Config, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(ctx, o.configFile)
	if err != nil {
		return nil, config.Config{}, errs.Wrap(err, "load config")
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if strings.TrimSpace(o.socket) != "" {
		cfg.Server.Socket = o.socket
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, config.Config{}, errs.Wrap(err, "build logger")
	}

	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))
	return ctx, cfg, nil
}
