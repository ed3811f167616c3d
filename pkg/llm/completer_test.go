package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/switchboard/pkg/config"
	"github.com/pario-ai/switchboard/pkg/models"
)

func TestOpenAIComplete(t *testing.T) {
	var got models.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	c, err := New(config.LLMConfig{Provider: "openai", URL: srv.URL + "/", APIKey: "sk-test", Model: "gpt-4o-mini"}, "", nil)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "be brief", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
}

func TestAnthropicComplete(t *testing.T) {
	var got models.AnthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"m1","model":"claude","content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]}`))
	}))
	defer srv.Close()

	c, err := New(config.LLMConfig{Provider: "anthropic", URL: srv.URL, APIKey: "key", Model: "claude", MaxTokens: 256}, "claude-big", nil)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "part one part two", out)
	assert.Equal(t, "claude-big", got.Model)
	assert.Equal(t, "sys", got.System)
	assert.Equal(t, 256, got.MaxTokens)
}

func TestOpenAICustomPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/p/locations/us-central1/endpoints/openapi/chat/completions", r.URL.Path)
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"vertex"}}]}`))
	}))
	defer srv.Close()

	cfg := config.LLMConfig{
		Provider: "openai",
		URL:      srv.URL + "/v1/projects/p/locations/us-central1/endpoints/openapi",
		Path:     "/chat/completions",
		Model:    "google/gemini-2.0-flash",
	}
	c, err := New(cfg, "", nil)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "vertex", out)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1/chat/completions",
		endpoint(config.LLMConfig{}, "https://api.openai.com", "/v1/chat/completions"))
	assert.Equal(t, "http://proxy/llm/messages",
		endpoint(config.LLMConfig{URL: "http://proxy/", Path: "llm/messages"}, "https://api.anthropic.com", "/v1/messages"))
}

func TestCompleteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(config.LLMConfig{URL: srv.URL, Timeout: time.Second}, "m", nil)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, err := New(config.LLMConfig{URL: srv.URL}, "m", nil)
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "", "hi")
	assert.Error(t, err)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "llama"}, "", nil)
	assert.Error(t, err)
}
