package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pario-ai/switchboard/pkg/config"
	"github.com/pario-ai/switchboard/pkg/models"
)

const plannerSystem = `You route customer-support questions to backend data sources.
Reply with a single JSON object and nothing else:
{"sources": ["<source name>", ...], "rationale": "<one sentence>"}
Only use source names from the list you are given. An empty list is allowed
when no source is relevant.`

// Planner decides which sources a query needs.
type Planner struct {
	llm     Completer
	sources []config.AdapterConfig
}

// NewPlanner creates a Planner that chooses among sources.
func NewPlanner(c Completer, sources []config.AdapterConfig) *Planner {
	return &Planner{llm: c, sources: sources}
}

type planReply struct {
	Sources   *[]string `json:"sources"`
	Rationale string    `json:"rationale"`
}

// Plan asks the model for a source plan. The returned plan carries only
// sources and rationale; callers stamp the query and user.
func (p *Planner) Plan(ctx context.Context, req models.QueryRequest) (models.QueryPlan, error) {
	reply, err := p.llm.Complete(ctx, plannerSystem, p.prompt(req))
	if err != nil {
		return models.QueryPlan{}, fmt.Errorf("planner: %w", err)
	}

	var r planReply
	if err := decodeObject(reply, &r); err != nil {
		return models.QueryPlan{}, fmt.Errorf("planner: %w", err)
	}
	if r.Sources == nil {
		return models.QueryPlan{}, fmt.Errorf("planner: %w: missing sources", ErrMalformedOutput)
	}
	return models.QueryPlan{
		Sources:   normalizeSources(*r.Sources),
		Rationale: strings.TrimSpace(r.Rationale),
	}, nil
}

func (p *Planner) prompt(req models.QueryRequest) string {
	var b strings.Builder
	b.WriteString("Available sources:\n")
	for _, s := range p.sources {
		fmt.Fprintf(&b, "- %s", s.Name)
		if s.Description != "" {
			fmt.Fprintf(&b, ": %s", s.Description)
		}
		b.WriteString("\n")
	}
	q, _ := json.Marshal(req.Query)
	fmt.Fprintf(&b, "\nUser: %s\nQuestion: %s\n", req.Email, q)
	return b.String()
}
