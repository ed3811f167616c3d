// Package llm holds the language-model call sites used by the orchestrator:
// planning (which sources to consult) and synthesis (the final answer).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pario-ai/switchboard/pkg/config"
	"github.com/pario-ai/switchboard/pkg/models"
)

// Completer sends a single prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, system, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// New creates a Completer for the configured provider using model.
func New(cfg config.LLMConfig, model string, logger *slog.Logger) (Completer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if model == "" {
		model = cfg.Model
	}
	client := &http.Client{Timeout: timeout}

	switch cfg.Provider {
	case "", "openai":
		url := endpoint(cfg, "https://api.openai.com", "/v1/chat/completions")
		return &openaiProvider{url: url, apiKey: cfg.APIKey, model: model, maxTokens: maxTokens, client: client, logger: logger}, nil
	case "anthropic":
		url := endpoint(cfg, "https://api.anthropic.com", "/v1/messages")
		return &anthropicProvider{url: url, apiKey: cfg.APIKey, model: model, maxTokens: maxTokens, client: client, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (valid: openai, anthropic)", cfg.Provider)
	}
}

// endpoint joins the configured base URL and path, falling back to the
// provider's public API.
func endpoint(cfg config.LLMConfig, defaultBase, defaultPath string) string {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		base = defaultBase
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultPath
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

// --- OpenAI-compatible provider ---

type openaiProvider struct {
	url       string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
	logger    *slog.Logger
}

func (o *openaiProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	var messages []models.ChatMessage
	if system != "" {
		messages = append(messages, models.ChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, models.ChatMessage{Role: "user", Content: prompt})

	temp := 0.0
	maxTokens := o.maxTokens
	body, err := json.Marshal(models.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	headers := map[string]string{}
	if o.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.apiKey
	}
	respBody, err := post(ctx, o.client, o.url, headers, body)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}

	var cr models.ChatCompletionResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty openai response")
	}
	if cr.Usage != nil {
		o.logger.Debug("llm usage", "model", cr.Model, "prompt_tokens", cr.Usage.PromptTokens, "completion_tokens", cr.Usage.CompletionTokens)
	}
	return cr.Choices[0].Message.Content, nil
}

// --- Anthropic provider ---

type anthropicProvider struct {
	url       string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
	logger    *slog.Logger
}

func (a *anthropicProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(models.AnthropicRequest{
		Model:     a.model,
		System:    system,
		MaxTokens: a.maxTokens,
		Messages:  []models.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
	}
	respBody, err := post(ctx, a.client, a.url, headers, body)
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var ar models.AnthropicResponse
	if err := json.Unmarshal(respBody, &ar); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}
	var text strings.Builder
	for _, c := range ar.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty anthropic response")
	}
	if ar.Usage != nil {
		u := ar.Usage.ToUsage()
		a.logger.Debug("llm usage", "model", ar.Model, "prompt_tokens", u.PromptTokens, "completion_tokens", u.CompletionTokens)
	}
	return text.String(), nil
}

func post(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}
