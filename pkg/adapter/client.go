// Package adapter calls backend adapter services over their HTTP contract and
// normalizes every outcome into a Result.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pario-ai/switchboard/pkg/config"
	"github.com/pario-ai/switchboard/pkg/models"
	"github.com/pario-ai/switchboard/pkg/router"
)

// DefaultTimeout bounds a single adapter call when the adapter sets none.
const DefaultTimeout = 10 * time.Second

const (
	maxResponseSize = 4 << 20
	maxErrorBody    = 1024
)

// ErrorKind classifies per-source failures.
type ErrorKind string

const (
	KindAdapter       ErrorKind = "AdapterError"
	KindUnknownSource ErrorKind = "UnknownSourceError"
)

// Error describes a failed adapter call.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Source     string    `json:"source"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	Body       string    `json:"body,omitempty"`
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: %s (status %d)", e.Kind, e.Source, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Source, e.Message)
}

// Call identifies what to fetch from a source.
type Call struct {
	Source   string
	UserID   string
	Resource string
	Params   map[string]any
}

// Result is either a raw payload or a tagged error, never both.
type Result struct {
	Source  string          `json:"source"`
	Data    json.RawMessage `json:"data,omitempty"`
	Err     *Error          `json:"error,omitempty"`
	Latency time.Duration   `json:"-"`
}

// OK reports whether the call produced data.
func (r Result) OK() bool { return r.Err == nil }

// Client invokes adapters resolved through the static source table.
type Client struct {
	router *router.Router
	http   *http.Client
	logger *slog.Logger
}

// New creates a Client. A nil httpClient or logger selects the defaults.
func New(r *router.Router, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{router: r, http: httpClient, logger: logger}
}

// Fetch calls the adapter for call.Source. Unknown sources fail without a
// network call. Cancellation of ctx is not propagated; each call runs under
// the adapter's own timeout.
func (c *Client) Fetch(ctx context.Context, call Call) Result {
	start := time.Now()
	route, err := c.router.Resolve(call.Source)
	if err != nil {
		return Result{
			Source: call.Source,
			Err:    &Error{Kind: KindUnknownSource, Source: call.Source, Message: "no adapter configured for source"},
		}
	}

	timeout := route.Adapter.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var res Result
	switch route.Adapter.Contract {
	case config.ContractLookup:
		res = c.lookup(callCtx, route, call)
	default:
		res = c.mcpCall(callCtx, route, call)
	}
	res.Source = call.Source
	res.Latency = time.Since(start)

	if res.Err != nil {
		c.logger.Warn("adapter call failed",
			"source", call.Source, "status", res.Err.StatusCode, "error", res.Err.Message)
	} else {
		c.logger.Debug("adapter call ok", "source", call.Source, "latency", res.Latency)
	}
	return res
}

func (c *Client) mcpCall(ctx context.Context, route router.Route, call Call) Result {
	resource := call.Resource
	if resource == "" {
		resource = route.Adapter.Resource
	}
	params := call.Params
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(models.AdapterRequest{Email: call.UserID, Resource: resource, Params: params})
	if err != nil {
		return failure(call.Source, fmt.Sprintf("encode request: %v", err), 0, nil)
	}

	req, err := http.NewRequestWithContext(ctx, route.Method, route.URL, bytes.NewReader(body))
	if err != nil {
		return failure(call.Source, fmt.Sprintf("create request: %v", err), 0, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	status, respBody, err := c.do(req)
	if err != nil {
		return failure(call.Source, err.Error(), 0, nil)
	}
	if status < 200 || status > 299 {
		return failure(call.Source, fmt.Sprintf("adapter returned %d", status), status, respBody)
	}

	var resp models.AdapterResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return failure(call.Source, "invalid response body", status, respBody)
	}
	if resp.Error != nil && *resp.Error != "" {
		return failure(call.Source, *resp.Error, status, nil)
	}
	data := resp.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return Result{Data: data}
}

func (c *Client) lookup(ctx context.Context, route router.Route, call Call) Result {
	q := url.Values{}
	q.Set("email", call.UserID)
	resource := call.Resource
	if resource == "" {
		resource = route.Adapter.Resource
	}
	if resource != "" {
		q.Set("resource", resource)
	}
	for k, v := range call.Params {
		q.Set(k, fmt.Sprint(v))
	}

	req, err := http.NewRequestWithContext(ctx, route.Method, route.URL+"?"+q.Encode(), nil)
	if err != nil {
		return failure(call.Source, fmt.Sprintf("create request: %v", err), 0, nil)
	}
	req.Header.Set("Accept", "application/json")

	status, respBody, err := c.do(req)
	if err != nil {
		return failure(call.Source, err.Error(), 0, nil)
	}
	if status == http.StatusNotFound {
		return failure(call.Source, "record not found", status, respBody)
	}
	if status < 200 || status > 299 {
		return failure(call.Source, fmt.Sprintf("adapter returned %d", status), status, respBody)
	}
	if !json.Valid(respBody) {
		return failure(call.Source, "invalid response body", status, respBody)
	}
	return Result{Data: json.RawMessage(respBody)}
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("adapter timed out: %w", err)
		}
		return 0, nil, fmt.Errorf("adapter unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func failure(source, message string, status int, body []byte) Result {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return Result{Err: &Error{
		Kind:       KindAdapter,
		Source:     source,
		Message:    message,
		StatusCode: status,
		Body:       string(body),
	}}
}
