package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/switchboard/pkg/config"
	"github.com/pario-ai/switchboard/pkg/models"
)

func fixed(reply string) Completer {
	return CompleterFunc(func(context.Context, string, string) (string, error) {
		return reply, nil
	})
}

var testSources = []config.AdapterConfig{
	{Name: "chargebee", Description: "billing"},
	{Name: "hubspot", Description: "crm"},
}

func TestPlanParsesFencedJSON(t *testing.T) {
	reply := "Sure.\n```json\n{\"sources\": [\" ChargeBee \", \"hubspot\", \"chargebee\"], \"rationale\": \"billing question\"}\n```"
	p := NewPlanner(fixed(reply), testSources)

	plan, err := p.Plan(context.Background(), models.QueryRequest{Query: "When does my plan renew?", Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"chargebee", "hubspot"}, plan.Sources)
	assert.Equal(t, "billing question", plan.Rationale)
}

func TestPlanEmptySources(t *testing.T) {
	p := NewPlanner(fixed(`{"sources": [], "rationale": "small talk"}`), testSources)
	plan, err := p.Plan(context.Background(), models.QueryRequest{Query: "hi", Email: "a@b.com"})
	require.NoError(t, err)
	assert.Empty(t, plan.Sources)
}

func TestPlanMalformed(t *testing.T) {
	for _, reply := range []string{"I think billing.", `{"rationale": "no list"}`, `{"sources": "chargebee"}`} {
		p := NewPlanner(fixed(reply), testSources)
		_, err := p.Plan(context.Background(), models.QueryRequest{Query: "q", Email: "a@b.com"})
		assert.ErrorIs(t, err, ErrMalformedOutput, reply)
	}
}

func TestPlanCompleterError(t *testing.T) {
	boom := errors.New("connection refused")
	p := NewPlanner(CompleterFunc(func(context.Context, string, string) (string, error) {
		return "", boom
	}), testSources)
	_, err := p.Plan(context.Background(), models.QueryRequest{Query: "q", Email: "a@b.com"})
	assert.ErrorIs(t, err, boom)
}

func TestPlanPromptListsSources(t *testing.T) {
	var prompt string
	p := NewPlanner(CompleterFunc(func(_ context.Context, _, in string) (string, error) {
		prompt = in
		return `{"sources":[]}`, nil
	}), testSources)
	_, err := p.Plan(context.Background(), models.QueryRequest{Query: "q", Email: "a@b.com"})
	require.NoError(t, err)
	assert.True(t, strings.Contains(prompt, "- chargebee: billing"), prompt)
	assert.Contains(t, prompt, "- hubspot: crm")
	assert.Contains(t, prompt, "a@b.com")
}
