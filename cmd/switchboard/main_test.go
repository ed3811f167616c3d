package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/switchboard/pkg/config"
	"github.com/pario-ai/switchboard/pkg/models"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "query": false, "mcp": false, "cache": false, "audit": false, "sources": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %s", name)
		}
	}
	if root.PersistentFlags().ShorthandLookup("c") == nil {
		t.Error("expected -c/--config persistent flag")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON output, got: %s", out)
	}

	if _, err := newLogger(&buf, "loud", "text"); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := newLogger(&buf, "info", "xml"); err == nil {
		t.Error("expected error for invalid format")
	}
	if l, err := newLogger(&buf, "DEBUG", ""); err != nil || !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Errorf("expected debug text logger, err=%v", err)
	}
}

func TestDataPathCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	got, err := dataPath(path, "cache.db")
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Errorf("expected %s, got %s", path, got)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestQueryRequiresEmail(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"query", "when does my plan renew?"})
	root.SetOut(&bytes.Buffer{})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "--email") {
		t.Errorf("expected --email error, got %v", err)
	}
}

func TestCacheWithoutDurable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  durable:\n    backend: none\n"), 0644); err != nil {
		t.Fatal(err)
	}
	root := newRootCmd()
	root.SetArgs([]string{"cache", "stats", "-c", path})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "no durable cache") {
		t.Errorf("expected no durable cache error, got %v", err)
	}
}

func TestCacheStatsSQLite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := "cache:\n  durable:\n    backend: sqlite\n    db_path: " + filepath.Join(dir, "cache.db") + "\n"
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"cache", "stats", "-c", path})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Entries: 0") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestPrintSources(t *testing.T) {
	var buf bytes.Buffer
	printSources(&buf, []config.AdapterConfig{
		{Name: "chargebee", URL: "http://billing", Path: "/lookup", Contract: config.ContractLookup, Timeout: 10 * time.Second, Description: "billing"},
	})
	out := buf.String()
	for _, want := range []string{"chargebee", "lookup", "GET", "http://billing/lookup", "10s", "billing"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output: %s", want, out)
		}
	}

	buf.Reset()
	printSources(&buf, nil)
	if !strings.Contains(buf.String(), "No sources") {
		t.Errorf("unexpected empty output: %s", buf.String())
	}
}

func TestFormatAuditStats(t *testing.T) {
	out := formatAuditStats([]models.AuditStat{{Day: "2026-10-14", Layer: models.CacheLayerL2, Count: 3, Errors: 1}})
	if !strings.Contains(out, "2026-10-14") || !strings.Contains(out, "l2") {
		t.Errorf("unexpected output: %s", out)
	}
	if got := formatAuditEntries(nil); !strings.Contains(got, "No audit entries") {
		t.Errorf("unexpected empty output: %s", got)
	}
}
