package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/switchboard/pkg/config"
	"github.com/pario-ai/switchboard/pkg/router"
)

func newSourcesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured backend data sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			printSources(cmd.OutOrStdout(), router.New(cfg.Adapters).Adapters())
			return nil
		},
	}
}

func printSources(w io.Writer, adapters []config.AdapterConfig) {
	if len(adapters) == 0 {
		fmt.Fprintln(w, "No sources configured.")
		return
	}
	fmt.Fprintf(w, "%-15s %-8s %-6s %-40s %8s  %s\n", "SOURCE", "CONTRACT", "METHOD", "ENDPOINT", "TIMEOUT", "DESCRIPTION")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, a := range adapters {
		fmt.Fprintf(w, "%-15s %-8s %-6s %-40s %8s  %s\n",
			a.Name, a.Contract, a.Method(), a.URL+a.Path, a.Timeout.Round(time.Millisecond), a.Description)
	}
}
