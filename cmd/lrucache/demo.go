package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"lrucache/internal/cache"
	"lrucache/internal/errs"
	"lrucache/internal/logging"
)

func newDemoCmd(opts *rootOptions) *cobra.Command {
	var capacity int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through LRU eviction on an in-process cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, _, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			return runDemo(ctx, cmd.OutOrStdout(), capacity)
		},
	}
	cmd.Flags().IntVar(&capacity, "capacity", 2, "cache capacity")

	return cmd
}

func runDemo(ctx context.Context, w io.Writer, capacity int) error {
	c, err := cache.New(capacity, cache.WithEvictionCallback(func(k, v int) {
		logging.Info(ctx, "evicted least recently used entry", slog.Int("key", k), slog.Int("value", v))
	}))
	if err != nil {
		return errs.Wrap(err, "create cache")
	}
	defer c.Close()

	logging.Info(ctx, "demo starting", slog.Int("capacity", capacity))

	put := func(k, v int) {
		c.Put(k, v)
		fmt.Fprintf(w, "put(%d, %d)  keys(LRU->MRU)=%v\n", k, v, c.Keys())
	}
	get := func(k int) {
		if v, ok := c.Get(k); ok {
			fmt.Fprintf(w, "get(%d) = %d  keys(LRU->MRU)=%v\n", k, v, c.Keys())
			return
		}
		fmt.Fprintf(w, "get(%d) = miss\n", k)
	}

	put(1, 1)
	put(2, 2)
	get(1)
	put(3, 3)
	get(2)
	put(4, 4)
	get(1)
	get(3)
	get(4)

	return nil
}
