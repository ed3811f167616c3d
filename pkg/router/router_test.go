package router

import (
	"errors"
	"testing"

	"github.com/pario-ai/switchboard/pkg/config"
)

func testAdapters() []config.AdapterConfig {
	return []config.AdapterConfig{
		{Name: "hubspot", URL: "http://localhost:8002", Path: "/mcp/call", Contract: config.ContractMCP},
		{Name: "chargebee", URL: "http://localhost:8001", Path: "/lookup", Contract: config.ContractLookup},
	}
}

func TestResolve(t *testing.T) {
	r := New(testAdapters())
	route, err := r.Resolve("hubspot")
	if err != nil {
		t.Fatal(err)
	}
	if route.URL != "http://localhost:8002/mcp/call" || route.Method != "POST" {
		t.Errorf("unexpected route: %+v", route)
	}

	route, err = r.Resolve("chargebee")
	if err != nil {
		t.Fatal(err)
	}
	if route.URL != "http://localhost:8001/lookup" || route.Method != "GET" {
		t.Errorf("unexpected route: %+v", route)
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	r := New(testAdapters())
	route, err := r.Resolve(" HubSpot ")
	if err != nil {
		t.Fatal(err)
	}
	if route.Adapter.Name != "hubspot" {
		t.Errorf("expected hubspot, got %s", route.Adapter.Name)
	}
}

func TestResolveUnknown(t *testing.T) {
	r := New(testAdapters())
	_, err := r.Resolve("salesforce")
	if err == nil {
		t.Fatal("expected error for unknown source")
	}
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

func TestResolveNoAdapters(t *testing.T) {
	r := New(nil)
	if _, err := r.Resolve("hubspot"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

func TestSources(t *testing.T) {
	r := New(testAdapters())
	got := r.Sources()
	if len(got) != 2 || got[0] != "chargebee" || got[1] != "hubspot" {
		t.Errorf("unexpected sources: %v", got)
	}
	adapters := r.Adapters()
	if adapters[0].Name != "chargebee" {
		t.Errorf("adapters not sorted: %+v", adapters)
	}
}
