package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pario-ai/switchboard/pkg/models"
	"gopkg.in/yaml.v3"
)

// Adapter contracts.
const (
	ContractMCP    = "mcp"
	ContractLookup = "lookup"
)

// Durable cache backends.
const (
	BackendNone      = "none"
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
)

// Config holds all switchboard configuration.
type Config struct {
	Env              string             `yaml:"env"`
	Listen           string             `yaml:"listen"`
	LogLevel         string             `yaml:"log_level"`
	LogFormat        string             `yaml:"log_format"`
	CORSAllowOrigins []string           `yaml:"cors_allow_origins"`
	Cache            CacheConfig        `yaml:"cache"`
	LLM              LLMConfig          `yaml:"llm"`
	Adapters         []AdapterConfig    `yaml:"adapters"`
	Fanout           FanoutConfig       `yaml:"fanout"`
	Audit            models.AuditConfig `yaml:"audit"`
}

// CacheConfig controls both cache layers.
type CacheConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
	Durable  DurableConfig `yaml:"durable"`
}

// DurableConfig selects and configures the cross-process cache layer.
// Backend is "firestore", "sqlite" or "none".
type DurableConfig struct {
	Backend    string        `yaml:"backend"`
	ProjectID  string        `yaml:"project_id"`
	Collection string        `yaml:"collection"`
	DBPath     string        `yaml:"db_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LLMConfig defines the language model used for planning and synthesis.
// Provider is "openai" (default) or "anthropic". An empty URL selects the
// provider's public endpoint; an empty Path selects the provider's standard
// completion path. OpenAI-compatible gateways such as Vertex AI
// (.../endpoints/openapi) set Path to "/chat/completions".
type LLMConfig struct {
	Provider       string        `yaml:"provider"`
	URL            string        `yaml:"url"`
	Path           string        `yaml:"path"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	SynthesisModel string        `yaml:"synthesis_model"`
	MaxTokens      int           `yaml:"max_tokens"`
	Timeout        time.Duration `yaml:"timeout"`
}

// AdapterConfig is one row of the static source table.
type AdapterConfig struct {
	Name        string        `yaml:"name"`
	URL         string        `yaml:"url"`
	Path        string        `yaml:"path"`
	Contract    string        `yaml:"contract"`
	HTTPMethod  string        `yaml:"method"`
	Resource    string        `yaml:"resource"`
	Description string        `yaml:"description"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Method returns the configured HTTP method, or the one implied by the
// adapter's contract when none is set.
func (a AdapterConfig) Method() string {
	if a.HTTPMethod != "" {
		return a.HTTPMethod
	}
	if a.Contract == ContractLookup {
		return "GET"
	}
	return "POST"
}

// FanoutConfig bounds concurrent adapter calls.
type FanoutConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Env:              "development",
		Listen:           ":8080",
		LogLevel:         "info",
		LogFormat:        "text",
		CORSAllowOrigins: []string{"*"},
		Cache: CacheConfig{
			TTL:      300 * time.Second,
			Capacity: 1000,
			Durable: DurableConfig{
				Backend:    BackendNone,
				Collection: "orchestrator_cache",
				Timeout:    2 * time.Second,
			},
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
		},
		Adapters: []AdapterConfig{
			{
				Name:        "chargebee",
				URL:         "http://localhost:8001",
				Contract:    ContractLookup,
				Description: "billing: customer subscriptions, plan and status",
			},
			{
				Name:        "hubspot",
				URL:         "http://localhost:8002",
				Resource:    "contacts",
				Description: "CRM: contact details, deals, tickets and conversations",
			},
			{
				Name:        "firebase",
				URL:         "http://localhost:8003",
				Resource:    "users",
				Description: "product data: user profile, appointments, lab orders, tasks",
			},
		},
		Fanout: FanoutConfig{
			MaxConcurrency: 8,
			Timeout:        10 * time.Second,
		},
		Audit: models.AuditConfig{
			Enabled:       false,
			RetentionDays: 30,
			Include:       []string{"queries"},
			MaxBodySize:   4096,
		},
	}
}

// Load reads a YAML config file, expands environment variables and applies
// environment overrides. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		cfg.Listen = ":" + strings.TrimPrefix(v, ":")
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup("CORS_ALLOW_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSAllowOrigins = origins
	}
	if v, ok := lookup("FIRESTORE_PROJECT_ID"); ok && v != "" {
		cfg.Cache.Durable.ProjectID = v
		if cfg.Cache.Durable.Backend == "" || cfg.Cache.Durable.Backend == BackendNone {
			cfg.Cache.Durable.Backend = BackendFirestore
		}
	}
	if v, ok := lookup("FIRESTORE_COLLECTION"); ok && v != "" {
		cfg.Cache.Durable.Collection = v
	}
	if v, ok := lookup("CACHE_TTL_SECONDS"); ok && v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_TTL_SECONDS %q: %w", v, err)
		}
		cfg.Cache.TTL = time.Duration(secs) * time.Second
	}
	if v, ok := lookup("LLM_API_KEY"); ok && v != "" {
		cfg.LLM.APIKey = v
	}
	for i := range cfg.Adapters {
		name := "ADAPTER_" + envName(cfg.Adapters[i].Name) + "_URL"
		if v, ok := lookup(name); ok && v != "" {
			cfg.Adapters[i].URL = v
		}
	}
	return nil
}

func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

func (c *Config) normalize() {
	for i := range c.Adapters {
		a := &c.Adapters[i]
		a.Name = strings.ToLower(strings.TrimSpace(a.Name))
		a.URL = strings.TrimRight(a.URL, "/")
		a.HTTPMethod = strings.ToUpper(strings.TrimSpace(a.HTTPMethod))
		if a.Contract == "" {
			a.Contract = ContractMCP
		}
		if a.Path == "" {
			if a.Contract == ContractLookup {
				a.Path = "/lookup"
			} else {
				a.Path = "/mcp/call"
			}
		}
		if a.Timeout <= 0 {
			a.Timeout = c.Fanout.Timeout
		}
	}
	if c.Cache.Durable.Backend == "" {
		c.Cache.Durable.Backend = BackendNone
	}
}

// Validate reports configuration errors that would break the pipeline.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	switch c.Cache.Durable.Backend {
	case BackendNone, BackendSQLite:
	case BackendFirestore:
		if c.Cache.Durable.ProjectID == "" {
			errs = append(errs, errors.New("cache.durable.project_id is required for firestore"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.durable.backend %q", c.Cache.Durable.Backend))
	}
	seen := make(map[string]bool, len(c.Adapters))
	for i, a := range c.Adapters {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("adapters[%d]: name is required", i))
			continue
		}
		if seen[a.Name] {
			errs = append(errs, fmt.Errorf("adapters[%d]: duplicate name %q", i, a.Name))
		}
		seen[a.Name] = true
		if a.URL == "" {
			errs = append(errs, fmt.Errorf("adapter %q: url is required", a.Name))
		}
		if a.Contract != ContractMCP && a.Contract != ContractLookup {
			errs = append(errs, fmt.Errorf("adapter %q: unknown contract %q", a.Name, a.Contract))
		}
		switch m := a.Method(); {
		case m != "GET" && m != "POST" && m != "PUT" && m != "PATCH":
			errs = append(errs, fmt.Errorf("adapter %q: unsupported method %q", a.Name, m))
		case m == "GET" && a.Contract == ContractMCP:
			errs = append(errs, fmt.Errorf("adapter %q: mcp contract needs a method with a body, got GET", a.Name))
		}
	}
	return errors.Join(errs...)
}
