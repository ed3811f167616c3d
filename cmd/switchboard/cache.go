package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/switchboard/pkg/cache/sqlite"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the durable answer cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show durable cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openDurableFromConfig(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\nHits:    %d\nMisses:  %d\n", stats.Entries, stats.Hits, stats.Misses)
			return nil
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete durable cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openDurableFromConfig(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if expiredOnly {
				sc, ok := c.(*sqlite.Cache)
				if !ok {
					return fmt.Errorf("--expired is only supported by the sqlite backend")
				}
				n, err := sc.ClearExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d expired cache entries.\n", n)
				return nil
			}

			if err := c.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All cache entries cleared.")
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func openDurableFromConfig(ctx context.Context, configPath string) (durableCache, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := openDurable(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New("no durable cache configured (set cache.durable.backend)")
	}
	return c, nil
}
