package models

import (
	"encoding/json"
	"time"
)

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query string `json:"query"`
	Email string `json:"email"`

	// RequestID correlates logs and audit entries. It is transport metadata
	// and never influences planning or caching.
	RequestID string `json:"-"`
}

// QueryPlan names the sources to consult for a query.
type QueryPlan struct {
	Sources   []string `json:"sources"`
	Rationale string   `json:"rationale,omitempty"`

	// Query and User are stamped by the orchestrator after planning so the
	// cache key distinguishes questions and users that map to the same sources.
	Query string `json:"-"`
	User  string `json:"-"`
}

// CacheEntry is the value stored in both cache layers.
type CacheEntry struct {
	Answer     string   `json:"answer" firestore:"answer"`
	Sources    []string `json:"sources" firestore:"sources"`
	Confidence float64  `json:"confidence" firestore:"confidence"`
	Error      string   `json:"error,omitempty" firestore:"error,omitempty"`
}

// Synthesis is the output of the answer synthesizer.
type Synthesis struct {
	Answer     string
	Sources    []string
	Confidence float64
}

// Entry converts a synthesis into its cached form.
func (s Synthesis) Entry() CacheEntry {
	return CacheEntry{
		Answer:     s.Answer,
		Sources:    s.Sources,
		Confidence: s.Confidence,
	}
}

// QueryResponse is the body returned by POST /query.
type QueryResponse struct {
	Answer     string    `json:"answer"`
	Sources    []string  `json:"sources"`
	Confidence float64   `json:"confidence"`
	Cached     bool      `json:"cached"`
	Timestamp  time.Time `json:"timestamp"`
	Error      *string   `json:"error"`
}

// MarshalJSON keeps sources a JSON array even when empty.
func (r QueryResponse) MarshalJSON() ([]byte, error) {
	type alias QueryResponse
	a := alias(r)
	if a.Sources == nil {
		a.Sources = []string{}
	}
	a.Timestamp = a.Timestamp.UTC()
	return json.Marshal(a)
}
