package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/switchboard/pkg/mcp"
	"github.com/pario-ai/switchboard/pkg/models"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start switchboard as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// stdout carries the protocol, so logs go to stderr.
			a, err := newApp(ctx, *configPath, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			deps := mcp.Deps{
				Query:   a.orch,
				Sources: a.router.Adapters(),
				Cache:   a.cacheStats(),
				Logger:  a.logger,
			}
			if a.auditor != nil {
				deps.Auditor = a.auditor
			}
			return mcp.New(deps, version).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}

// cacheStats reports durable entries when a durable backend is configured and
// the process-local counters otherwise.
func (a *app) cacheStats() mcp.CacheStatter {
	if a.durable != nil {
		return a.durable
	}
	return mcp.StatsFunc(func(context.Context) (models.CacheStats, error) {
		return a.local.Stats(), nil
	})
}
