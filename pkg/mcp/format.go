package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/switchboard/pkg/config"
	"github.com/pario-ai/switchboard/pkg/models"
)

// formatQueryResponse renders an answer with its provenance.
func formatQueryResponse(r models.QueryResponse) string {
	var b strings.Builder
	b.WriteString(r.Answer)
	b.WriteString("\n\n")
	sources := "none"
	if len(r.Sources) > 0 {
		sources = strings.Join(r.Sources, ", ")
	}
	fmt.Fprintf(&b, "Sources:    %s\n", sources)
	fmt.Fprintf(&b, "Confidence: %.2f\n", r.Confidence)
	fmt.Fprintf(&b, "Cached:     %t\n", r.Cached)
	return b.String()
}

// formatSources formats the adapter table as a text table.
func formatSources(sources []config.AdapterConfig) string {
	if len(sources) == 0 {
		return "No sources configured."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-15s %-8s %-35s %s\n", "Source", "Contract", "Endpoint", "Description")
	b.WriteString(strings.Repeat("-", 90) + "\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "%-15s %-8s %-35s %s\n", s.Name, s.Contract, s.URL+s.Path, s.Description)
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}

// formatAuditEntries formats audit entries as a text table.
func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-8s %-25s %-5s %-15s %8s %-20s\n",
		"Request ID", "User", "Sources", "Cache", "Error", "Latency", "Time")
	b.WriteString(strings.Repeat("-", 125) + "\n")
	for _, e := range entries {
		sources := strings.Join(e.Sources, ",")
		if len(sources) > 25 {
			sources = sources[:22] + "..."
		}
		errKind := e.ErrorKind
		if errKind == "" {
			errKind = "-"
		}
		fmt.Fprintf(&b, "%-36s %-8s %-25s %-5s %-15s %6dms %-20s\n",
			e.RequestID, e.UserPrefix, sources, e.CacheLayer, errKind,
			e.LatencyMs, e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
