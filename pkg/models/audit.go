package models

import "time"

// AuditEntry records the outcome of a single query.
type AuditEntry struct {
	RequestID  string     `json:"request_id"`
	UserHash   string     `json:"user_hash"`
	UserPrefix string     `json:"user_prefix"`
	Query      string     `json:"query,omitempty"`
	Sources    []string   `json:"sources"`
	CacheKey   string     `json:"cache_key,omitempty"`
	CacheLayer CacheLayer `json:"cache_layer"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	Answer     string     `json:"answer,omitempty"`
	Confidence float64    `json:"confidence"`
	LatencyMs  int64      `json:"latency_ms"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled       bool     `yaml:"enabled"`
	DBPath        string   `yaml:"db_path"`
	RetentionDays int      `yaml:"retention_days"`
	Include       []string `yaml:"include"`       // "queries", "answers"
	MaxBodySize   int      `yaml:"max_body_size"` // bytes
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Source     string
	Since      time.Time
	UserPrefix string
	RequestID  string
	Limit      int
}

// AuditStat holds aggregate audit counts for a day/cache layer combination.
type AuditStat struct {
	Day    string
	Layer  CacheLayer
	Count  int
	Errors int
}
