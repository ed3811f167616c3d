package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/switchboard/pkg/config"
	"github.com/pario-ai/switchboard/pkg/models"
	"github.com/pario-ai/switchboard/pkg/router"
)

func newClient(adapters ...config.AdapterConfig) *Client {
	return New(router.New(adapters), nil, nil)
}

func mcpAdapter(name, url string) config.AdapterConfig {
	return config.AdapterConfig{Name: name, URL: url, Path: "/mcp/call", Contract: config.ContractMCP, Resource: "contacts", Timeout: time.Second}
}

func lookupAdapter(name, url string) config.AdapterConfig {
	return config.AdapterConfig{Name: name, URL: url, Path: "/lookup", Contract: config.ContractLookup, Timeout: time.Second}
}

func TestFetchMCP(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mcp/call", r.URL.Path)

		var req models.AdapterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@b.com", req.Email)
		assert.Equal(t, "contacts", req.Resource)
		assert.NotNil(t, req.Params)

		w.Write([]byte(`{"data":{"name":"Ada"},"error":null}`))
	}))
	defer upstream.Close()

	res := newClient(mcpAdapter("hubspot", upstream.URL)).Fetch(context.Background(), Call{Source: "hubspot", UserID: "a@b.com"})
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, "hubspot", res.Source)
	assert.JSONEq(t, `{"name":"Ada"}`, string(res.Data))
}

func TestFetchUsesRouteMethod(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var req models.AdapterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@b.com", req.Email)
		w.Write([]byte(`{"data":{"ok":true},"error":null}`))
	}))
	defer upstream.Close()

	a := mcpAdapter("crm", upstream.URL)
	a.HTTPMethod = http.MethodPut
	c := newClient(a)

	route, err := c.router.Resolve("crm")
	require.NoError(t, err)
	require.Equal(t, http.MethodPut, route.Method)

	res := c.Fetch(context.Background(), Call{Source: "crm", UserID: "a@b.com"})
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.JSONEq(t, `{"ok":true}`, string(res.Data))
}

func TestFetchMCPResourceOverride(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.AdapterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "deals", req.Resource)
		assert.Equal(t, "open", req.Params["stage"])
		w.Write([]byte(`{"data":[],"error":null}`))
	}))
	defer upstream.Close()

	res := newClient(mcpAdapter("hubspot", upstream.URL)).Fetch(context.Background(), Call{
		Source: "hubspot", UserID: "a@b.com", Resource: "deals", Params: map[string]any{"stage": "open"},
	})
	require.True(t, res.OK())
}

func TestFetchMCPEmbeddedError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{},"error":"Contact not found"}`))
	}))
	defer upstream.Close()

	res := newClient(mcpAdapter("hubspot", upstream.URL)).Fetch(context.Background(), Call{Source: "hubspot", UserID: "a@b.com"})
	require.False(t, res.OK())
	assert.Equal(t, KindAdapter, res.Err.Kind)
	assert.Equal(t, "Contact not found", res.Err.Message)
	assert.Equal(t, http.StatusOK, res.Err.StatusCode)
}

func TestFetchNonSuccessStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer upstream.Close()

	res := newClient(mcpAdapter("hubspot", upstream.URL)).Fetch(context.Background(), Call{Source: "hubspot", UserID: "a@b.com"})
	require.False(t, res.OK())
	assert.Equal(t, http.StatusBadGateway, res.Err.StatusCode)
	assert.Len(t, res.Err.Body, maxErrorBody, "error body should be truncated")
	assert.Contains(t, res.Err.Error(), "status 502")
}

func TestFetchInvalidJSON(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer upstream.Close()

	res := newClient(mcpAdapter("hubspot", upstream.URL)).Fetch(context.Background(), Call{Source: "hubspot"})
	require.False(t, res.OK())
	assert.Equal(t, "invalid response body", res.Err.Message)
}

func TestFetchLookup(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/lookup", r.URL.Path)
		assert.Equal(t, "a@b.com", r.URL.Query().Get("email"))
		w.Write([]byte(`{"plan":"pro","status":"active"}`))
	}))
	defer upstream.Close()

	res := newClient(lookupAdapter("billing", upstream.URL)).Fetch(context.Background(), Call{Source: "billing", UserID: "a@b.com"})
	require.True(t, res.OK())
	assert.JSONEq(t, `{"plan":"pro","status":"active"}`, string(res.Data))
}

func TestFetchLookupNotFound(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer upstream.Close()

	res := newClient(lookupAdapter("billing", upstream.URL)).Fetch(context.Background(), Call{Source: "billing", UserID: "x@y.com"})
	require.False(t, res.OK())
	assert.Equal(t, http.StatusNotFound, res.Err.StatusCode)
	assert.Equal(t, "record not found", res.Err.Message)
}

func TestFetchUnknownSourceMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer upstream.Close()

	res := newClient(mcpAdapter("hubspot", upstream.URL)).Fetch(context.Background(), Call{Source: "salesforce"})
	require.False(t, res.OK())
	assert.Equal(t, KindUnknownSource, res.Err.Kind)
	assert.Equal(t, "salesforce", res.Source)
	assert.Zero(t, calls.Load(), "no HTTP call should be issued for unknown sources")
}

func TestFetchTransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := upstream.URL
	upstream.Close()

	res := newClient(mcpAdapter("hubspot", addr)).Fetch(context.Background(), Call{Source: "hubspot"})
	require.False(t, res.OK())
	assert.Equal(t, KindAdapter, res.Err.Kind)
	assert.Contains(t, res.Err.Message, "unreachable")
	assert.Zero(t, res.Err.StatusCode)
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()
	defer close(release)

	a := mcpAdapter("slow", upstream.URL)
	a.Timeout = 50 * time.Millisecond

	res := newClient(a).Fetch(context.Background(), Call{Source: "slow"})
	require.False(t, res.OK())
	assert.Contains(t, res.Err.Message, "timed out")
}

func TestFetchIgnoresCallerCancellation(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"ok":true},"error":null}`))
	}))
	defer upstream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newClient(mcpAdapter("hubspot", upstream.URL)).Fetch(ctx, Call{Source: "hubspot"})
	assert.True(t, res.OK(), "caller cancellation should not abort adapter calls: %v", res.Err)
}
