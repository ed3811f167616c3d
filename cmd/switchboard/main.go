package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "switchboard",
		Short:         "switchboard: answer user questions from backend data sources",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default $XDG_CONFIG_HOME/switchboard/config.yaml if present)")

	root.AddCommand(
		newServeCmd(&configPath),
		newQueryCmd(&configPath),
		newMCPCmd(&configPath),
		newCacheCmd(&configPath),
		newAuditCmd(&configPath),
		newSourcesCmd(&configPath),
	)
	return root
}
