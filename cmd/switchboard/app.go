package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/pario-ai/switchboard/pkg/adapter"
	"github.com/pario-ai/switchboard/pkg/audit"
	"github.com/pario-ai/switchboard/pkg/cache"
	"github.com/pario-ai/switchboard/pkg/cache/firestore"
	"github.com/pario-ai/switchboard/pkg/cache/memory"
	"github.com/pario-ai/switchboard/pkg/cache/sqlite"
	"github.com/pario-ai/switchboard/pkg/config"
	"github.com/pario-ai/switchboard/pkg/llm"
	"github.com/pario-ai/switchboard/pkg/orchestrator"
	"github.com/pario-ai/switchboard/pkg/router"
)

// durableCache is what the CLI needs from a durable backend.
type durableCache interface {
	cache.Durable
	cache.Admin
}

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	router  *router.Router
	local   *memory.Cache
	durable durableCache
	auditor *audit.Logger
	orch    *orchestrator.Orchestrator
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if p := filepath.Join(xdg.ConfigHome, "switchboard", "config.yaml"); fileExists(p) {
			path = p
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log_format %q (valid: text, json)", format)
	}
}

// dataPath returns path, or an XDG data file under switchboard/ when empty.
func dataPath(path, name string) (string, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	return xdg.DataFile(filepath.Join("switchboard", name))
}

func openDurable(ctx context.Context, cfg *config.Config) (durableCache, error) {
	d := cfg.Cache.Durable
	switch d.Backend {
	case config.BackendFirestore:
		c, err := firestore.New(ctx, d.ProjectID, d.Collection, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("init firestore cache: %w", err)
		}
		return c, nil
	case config.BackendSQLite:
		path, err := dataPath(d.DBPath, "cache.db")
		if err != nil {
			return nil, fmt.Errorf("cache db path: %w", err)
		}
		c, err := sqlite.New(path, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("init sqlite cache: %w", err)
		}
		return c, nil
	default:
		return nil, nil
	}
}

func openAudit(cfg *config.Config) (*audit.Logger, error) {
	ac := cfg.Audit
	path, err := dataPath(ac.DBPath, "audit.db")
	if err != nil {
		return nil, fmt.Errorf("audit db path: %w", err)
	}
	ac.DBPath = path
	l, err := audit.New(ac)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	return l, nil
}

// newApp loads configuration and wires the query pipeline. Logs go to logOut.
func newApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		router: router.New(cfg.Adapters),
		local:  memory.New(cfg.Cache.Capacity, cfg.Cache.TTL),
	}

	a.durable, err = openDurable(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Audit.Enabled {
		a.auditor, err = openAudit(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	planModel, err := llm.New(cfg.LLM, cfg.LLM.Model, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	synthModel := planModel
	if cfg.LLM.SynthesisModel != "" && cfg.LLM.SynthesisModel != cfg.LLM.Model {
		synthModel, err = llm.New(cfg.LLM, cfg.LLM.SynthesisModel, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	opts := orchestrator.Options{
		Logger:         logger,
		MaxConcurrency: cfg.Fanout.MaxConcurrency,
		DurableTimeout: cfg.Cache.Durable.Timeout,
	}
	if a.durable != nil {
		opts.Durable = a.durable
	}
	if a.auditor != nil {
		opts.Recorder = a.auditor
	}

	a.orch = orchestrator.New(
		llm.NewPlanner(planModel, a.router.Adapters()),
		llm.NewSynthesizer(synthModel),
		adapter.New(a.router, &http.Client{}, logger),
		a.local,
		opts,
	)
	logger.Debug("pipeline ready",
		"sources", a.router.Sources(),
		"durable", cfg.Cache.Durable.Backend,
		"audit", cfg.Audit.Enabled)
	return a, nil
}

// Close releases the durable cache and audit database.
func (a *app) Close() {
	var errs []error
	if a.durable != nil {
		errs = append(errs, a.durable.Close())
	}
	if a.auditor != nil {
		errs = append(errs, a.auditor.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown", "error", err)
	}
}
