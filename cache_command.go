package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"trackbridge/internal/cache"
	"trackbridge/internal/config"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the match cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

// withCache loads the configured cache and closes its store afterwards.
func withCache(ctx *commandContext, cmd *cobra.Command, fn func(*config.Config, *cache.Cache) error) error {
	cfg, logger, err := ctx.setup(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	c := cache.New(store, logger)
	if err := c.Load(); err != nil {
		return err
	}
	return fn(cfg, c)
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached matches, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(ctx, cmd, func(_ *config.Config, c *cache.Cache) error {
				printCacheEntries(cmd.OutOrStdout(), c.List(), limit)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show (0 for all)")
	return cmd
}

func printCacheEntries(out io.Writer, entries []cache.Keyed, limit int) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Cache is empty")
		return
	}
	shown := entries
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	const stampLayout = "2006-01-02 15:04"
	rows := make([][]string, 0, len(shown))
	for _, e := range shown {
		match := "(no match)"
		if e.Matched {
			match = e.URI
		}
		rows = append(rows, []string{
			e.Source,
			match,
			strconv.FormatFloat(e.Confidence, 'f', 2, 64),
			e.CachedAt.Local().Format(stampLayout),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Track", "Match", "Confidence", "Cached"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	if len(shown) < len(entries) {
		fmt.Fprintf(out, "%d of %d entries shown\n", len(shown), len(entries))
	}
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show match cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(ctx, cmd, func(cfg *config.Config, c *cache.Cache) error {
				s := c.Stats()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Backend: %s\n", cfg.Cache.Backend)
				fmt.Fprintf(out, "Path:    %s\n", cfg.Cache.Path)
				fmt.Fprintf(out, "Entries: %d\n", s.Entries)
				fmt.Fprintf(out, "Matched: %d\n", s.Matched)
				fmt.Fprintf(out, "Failed:  %d\n", s.Failed)
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached match",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(ctx, cmd, func(_ *config.Config, c *cache.Cache) error {
				n := c.Len()
				c.Clear()
				if err := c.Save(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached matches\n", n)
				return nil
			})
		},
	}
}
