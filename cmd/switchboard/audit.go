package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/switchboard/pkg/audit"
	"github.com/pario-ai/switchboard/pkg/models"
)

func newAuditCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the query audit log",
	}

	cmd.AddCommand(
		newAuditSearchCmd(configPath),
		newAuditShowCmd(configPath),
		newAuditStatsCmd(configPath),
		newAuditCleanupCmd(configPath),
	)
	return cmd
}

func newAuditSearchCmd(configPath *string) *cobra.Command {
	var (
		source string
		since  string
		email  string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				Source: strings.ToLower(source),
				Limit:  limit,
			}
			if email != "" {
				_, opts.UserPrefix = audit.HashIdentifier(strings.ToLower(strings.TrimSpace(email)))
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatAuditEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "filter by planned source")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&email, "email", "", "filter by user email")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	return cmd
}

func newAuditShowCmd(configPath *string) *cobra.Command {
	var requestID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a single audit entry by request ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return fmt.Errorf("--request-id is required")
			}

			l, cleanup, err := openAuditLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := l.Query(context.Background(), models.AuditQueryOpts{
				RequestID: requestID,
				Limit:     1,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No entry found for that request ID.")
				return nil
			}

			e := entries[0]
			fmt.Fprintf(out, "Request ID:    %s\n", e.RequestID)
			fmt.Fprintf(out, "User:          %s...\n", e.UserPrefix)
			fmt.Fprintf(out, "Sources:       %s\n", strings.Join(e.Sources, ", "))
			fmt.Fprintf(out, "Cache:         %s\n", e.CacheLayer)
			fmt.Fprintf(out, "Cache Key:     %s\n", e.CacheKey)
			fmt.Fprintf(out, "Confidence:    %.2f\n", e.Confidence)
			fmt.Fprintf(out, "Latency:       %dms\n", e.LatencyMs)
			fmt.Fprintf(out, "Time:          %s\n", e.CreatedAt.Format(time.RFC3339))
			if e.ErrorKind != "" {
				fmt.Fprintf(out, "Error:         %s: %s\n", e.ErrorKind, e.Error)
			}
			if e.Query != "" {
				fmt.Fprintf(out, "\n--- Query ---\n%s\n", e.Query)
			}
			if e.Answer != "" {
				fmt.Fprintf(out, "\n--- Answer ---\n%s\n", e.Answer)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request-id", "", "request ID to show")
	return cmd
}

func newAuditStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show audit log statistics by day and cache layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatAuditStats(stats))
			return nil
		},
	}
}

func newAuditCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete audit entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit entries.\n", deleted)
			return nil
		},
	}
}

func openAuditLogger(configPath string) (*audit.Logger, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	l, err := openAudit(cfg)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Close() }, nil
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-8s %-25s %-5s %-18s %8s %-20s\n",
		"REQUEST ID", "USER", "SOURCES", "CACHE", "ERROR", "LATENCY", "TIME")
	b.WriteString(strings.Repeat("-", 126) + "\n")
	for _, e := range entries {
		errKind := e.ErrorKind
		if errKind == "" {
			errKind = "-"
		}
		fmt.Fprintf(&b, "%-36s %-8s %-25s %-5s %-18s %6dms %-20s\n",
			e.RequestID, e.UserPrefix, strings.Join(e.Sources, ","), e.CacheLayer, errKind,
			e.LatencyMs, e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No audit stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-6s %8s %8s\n", "DAY", "CACHE", "COUNT", "ERRORS")
	b.WriteString(strings.Repeat("-", 37) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %-6s %8d %8d\n", s.Day, s.Layer, s.Count, s.Errors)
	}
	return b.String()
}
