package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pario-ai/switchboard/pkg/adapter"
	"github.com/pario-ai/switchboard/pkg/models"
)

const synthesizerSystem = `You answer customer-support questions using only the data provided.
Reply with a single JSON object and nothing else:
{"answer": "<plain-text answer>", "sources": ["<source used>", ...], "confidence": <0.0-1.0>}
If a source failed, say what could not be checked instead of guessing.`

// Synthesizer turns fetched source data into a final answer.
type Synthesizer struct {
	llm Completer
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(c Completer) *Synthesizer {
	return &Synthesizer{llm: c}
}

type synthesisReply struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

// Synthesize answers query from the per-source results of plan.
func (s *Synthesizer) Synthesize(ctx context.Context, plan models.QueryPlan, results map[string]adapter.Result) (models.Synthesis, error) {
	reply, err := s.llm.Complete(ctx, synthesizerSystem, synthesisPrompt(plan, results))
	if err != nil {
		return models.Synthesis{}, fmt.Errorf("synthesizer: %w", err)
	}

	var r synthesisReply
	if err := decodeObject(reply, &r); err != nil {
		return models.Synthesis{}, fmt.Errorf("synthesizer: %w", err)
	}
	answer := strings.TrimSpace(r.Answer)
	if answer == "" {
		return models.Synthesis{}, fmt.Errorf("synthesizer: %w", errors.New("empty answer"))
	}

	return models.Synthesis{
		Answer:     answer,
		Sources:    reportedSources(plan, results, r.Sources),
		Confidence: clamp(r.Confidence),
	}, nil
}

// reportedSources keeps only planned names. With none left it falls back to
// the planned sources that returned data.
func reportedSources(plan models.QueryPlan, results map[string]adapter.Result, reported []string) []string {
	planned := make(map[string]bool, len(plan.Sources))
	for _, p := range plan.Sources {
		planned[p] = true
	}

	out := []string{}
	for _, s := range normalizeSources(reported) {
		if planned[s] {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, p := range plan.Sources {
		if r, ok := results[p]; ok && r.OK() {
			out = append(out, p)
		}
	}
	return out
}

func clamp(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func synthesisPrompt(plan models.QueryPlan, results map[string]adapter.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", plan.Query)
	if plan.Rationale != "" {
		fmt.Fprintf(&b, "Plan: %s\n", plan.Rationale)
	}
	if len(plan.Sources) == 0 {
		b.WriteString("\nNo data sources were consulted.\n")
		return b.String()
	}
	b.WriteString("\nSource data:\n")
	for _, name := range plan.Sources {
		r, ok := results[name]
		switch {
		case !ok:
			fmt.Fprintf(&b, "[%s] no result\n", name)
		case r.OK():
			fmt.Fprintf(&b, "[%s] %s\n", name, r.Data)
		default:
			fmt.Fprintf(&b, "[%s] ERROR %s\n", name, r.Err.Message)
		}
	}
	return b.String()
}
