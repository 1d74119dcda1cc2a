package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lrucache/internal/errs"
	"lrucache/internal/server"
)

const clientTimeout = 5 * time.Second

// withClient wraps a client command: it loads config, dials the daemon
// socket and bounds the call with clientTimeout.
func withClient(opts *rootOptions, run func(ctx context.Context, cmd *cobra.Command, client *server.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cfg, err := opts.setup(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, clientTimeout)
		defer cancel()

		return run(ctx, cmd, server.NewClient(cfg.Server.Socket), args)
	}
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored for KEY",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(opts, func(ctx context.Context, cmd *cobra.Command, client *server.Client, args []string) error {
			v, found, err := client.Get(ctx, args[0])
			if err != nil {
				return errs.Wrapf(err, "get %s", args[0])
			}
			if !found {
				return errs.Wrapf(server.ErrNotFound, "get %s", args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(v))
			return err
		}),
	}
}

func newPutCmd(opts *rootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "put KEY VALUE",
		Short: "Store VALUE under KEY",
		Args:  cobra.ExactArgs(2),
		RunE: withClient(opts, func(ctx context.Context, _ *cobra.Command, client *server.Client, args []string) error {
			return errs.Wrapf(client.Put(ctx, args[0], []byte(args[1]), ttl), "put %s", args[0])
		}),
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "time to live, rounded up to whole seconds (0 = never expires)")

	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove KEY",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(opts, func(ctx context.Context, cmd *cobra.Command, client *server.Client, args []string) error {
			deleted, err := client.Delete(ctx, args[0])
			if err != nil {
				return errs.Wrapf(err, "delete %s", args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), deleted)
			return err
		}),
	}
}

func newKeysCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List keys from least to most recently used",
		Args:  cobra.NoArgs,
		RunE: withClient(opts, func(ctx context.Context, cmd *cobra.Command, client *server.Client, _ []string) error {
			keys, err := client.Keys(ctx)
			if err != nil {
				return errs.Wrap(err, "keys")
			}
			for _, k := range keys {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), k); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}
