package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pario-ai/switchboard/pkg/audit"
	"github.com/pario-ai/switchboard/pkg/models"
)

// toolHandler handles one tools/call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"switchboard_query":        handleQuery,
	"switchboard_sources":      handleSources,
	"switchboard_cache_stats":  handleCacheStats,
	"switchboard_audit_search": handleAuditSearch,
}

func str(desc string) *Schema { return &Schema{Type: "string", Description: desc} }

var allTools = []ToolDefinition{
	{
		Name:        "switchboard_query",
		Description: "Answer a natural-language question about a user from the configured backend sources.",
		InputSchema: &Schema{
			Type:     "object",
			Required: []string{"query", "email"},
			Properties: map[string]*Schema{
				"query": str("The question to answer"),
				"email": str("Email address of the user the question is about"),
			},
		},
	},
	{
		Name:        "switchboard_sources",
		Description: "List the backend data sources the planner can choose from.",
		InputSchema: &Schema{Type: "object"},
	},
	{
		Name:        "switchboard_cache_stats",
		Description: "Show answer cache statistics (entries, hits, misses, hit rate).",
		InputSchema: &Schema{Type: "object"},
	},
	{
		Name:        "switchboard_audit_search",
		Description: "Search the query audit log with optional filters.",
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"source":     str("Only queries that planned this source (optional)"),
				"since":      str("Start date in YYYY-MM-DD format (optional)"),
				"email":      str("Only queries for this user (optional)"),
				"request_id": str("A single request ID (optional)"),
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

type queryArgs struct {
	Query string `json:"query"`
	Email string `json:"email"`
}

func handleQuery(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.query == nil {
		return errorResult("Query handling is not configured.")
	}
	var args queryArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}
	if args.Query == "" || args.Email == "" {
		return errorResult("query and email are required")
	}

	resp := s.query.Handle(ctx, models.QueryRequest{Query: args.Query, Email: args.Email})
	if resp.Error != nil {
		return errorResult(*resp.Error)
	}
	return textResult(formatQueryResponse(resp))
}

func handleSources(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatSources(s.sources))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

type auditSearchArgs struct {
	Source    string `json:"source"`
	Since     string `json:"since"`
	Email     string `json:"email"`
	RequestID string `json:"request_id"`
}

func handleAuditSearch(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.auditor == nil {
		return textResult("Audit logging is not configured.")
	}
	var args auditSearchArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	opts := models.AuditQueryOpts{
		Source:    strings.ToLower(args.Source),
		RequestID: args.RequestID,
		Limit:     50,
	}
	if args.Email != "" {
		_, opts.UserPrefix = audit.HashIdentifier(strings.ToLower(strings.TrimSpace(args.Email)))
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	entries, err := s.auditor.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching audit log: " + err.Error())
	}
	return textResult(formatAuditEntries(entries))
}
