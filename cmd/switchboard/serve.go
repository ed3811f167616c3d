package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/switchboard/pkg/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP query service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info("starting switchboard", "env", a.cfg.Env, "sources", a.router.Sources())
			return server.New(a.cfg.Listen, a.orch, a.cfg.CORSAllowOrigins, a.logger).ListenAndServe(ctx)
		},
	}
}
