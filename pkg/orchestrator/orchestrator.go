// Package orchestrator runs the query pipeline: plan, check both cache
// layers, fan out to adapters, synthesize, and write the answer back.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/switchboard/pkg/adapter"
	"github.com/pario-ai/switchboard/pkg/audit"
	"github.com/pario-ai/switchboard/pkg/cache"
	"github.com/pario-ai/switchboard/pkg/models"
)

// Planner chooses the sources for a query.
type Planner interface {
	Plan(ctx context.Context, req models.QueryRequest) (models.QueryPlan, error)
}

// Synthesizer produces the final answer from per-source results.
type Synthesizer interface {
	Synthesize(ctx context.Context, plan models.QueryPlan, results map[string]adapter.Result) (models.Synthesis, error)
}

// Fetcher calls one backend adapter. It never fails outright; failures are
// carried in the Result.
type Fetcher interface {
	Fetch(ctx context.Context, call adapter.Call) adapter.Result
}

// Recorder persists an audit entry per request.
type Recorder interface {
	Log(ctx context.Context, entry models.AuditEntry) error
}

// Options holds the optional collaborators and limits.
type Options struct {
	Durable        cache.Durable
	Recorder       Recorder
	Logger         *slog.Logger
	MaxConcurrency int
	DurableTimeout time.Duration
}

// Orchestrator answers queries. It is safe for concurrent use.
type Orchestrator struct {
	planner     Planner
	synthesizer Synthesizer
	fetcher     Fetcher
	local       cache.Local
	durable     cache.Durable
	recorder    Recorder
	logger      *slog.Logger
	limit       int
	durableTO   time.Duration
	now         func() time.Time
}

// New creates an Orchestrator.
func New(p Planner, s Synthesizer, f Fetcher, local cache.Local, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.DurableTimeout <= 0 {
		opts.DurableTimeout = 2 * time.Second
	}
	return &Orchestrator{
		planner:     p,
		synthesizer: s,
		fetcher:     f,
		local:       local,
		durable:     opts.Durable,
		recorder:    opts.Recorder,
		logger:      opts.Logger,
		limit:       opts.MaxConcurrency,
		durableTO:   opts.DurableTimeout,
		now:         time.Now,
	}
}

// run carries per-request state through the pipeline.
type run struct {
	req   models.QueryRequest
	log   *slog.Logger
	start time.Time
	plan  models.QueryPlan
	key   string
	layer models.CacheLayer
}

func (o *Orchestrator) enter(r *run, s State) {
	r.log.Debug("state", "state", s.String())
}

// Handle runs one query to completion. It always returns a response; failures
// are reported in its Error field.
func (o *Orchestrator) Handle(ctx context.Context, req models.QueryRequest) models.QueryResponse {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	r := &run{
		req:   req,
		log:   o.logger.With("request_id", req.RequestID),
		start: o.now(),
		layer: models.CacheLayerMiss,
	}

	resp, err := o.handle(ctx, r)
	if err != nil {
		o.enter(r, StateFailed)
		r.log.Warn("query failed", "error", err)
		resp = o.failed(err)
	} else {
		o.enter(r, StateDone)
	}
	o.record(ctx, r, resp, err)
	return resp
}

func (o *Orchestrator) handle(ctx context.Context, r *run) (models.QueryResponse, error) {
	o.enter(r, StatePlanning)
	if err := validate(r.req); err != nil {
		return models.QueryResponse{}, planningError(err)
	}
	plan, err := o.planner.Plan(ctx, r.req)
	if err != nil {
		return models.QueryResponse{}, planningError(err)
	}
	plan.Query = r.req.Query
	plan.User = r.req.Email
	r.plan = plan
	r.key = cache.Key(plan)
	r.log.Debug("plan", "sources", plan.Sources, "cache_key", r.key)

	o.enter(r, StateCacheCheckL2)
	if entry, ok := o.local.Get(r.key); ok {
		r.layer = models.CacheLayerL2
		return o.cached(entry), nil
	}

	o.enter(r, StateCacheCheckL1)
	if entry, ok := o.durableGet(ctx, r); ok {
		o.local.Set(r.key, entry)
		r.layer = models.CacheLayerL1
		return o.cached(entry), nil
	}

	o.enter(r, StateFanout)
	results := o.fanout(ctx, r)

	o.enter(r, StateSynthesize)
	syn, err := o.synthesizer.Synthesize(ctx, plan, results)
	if err != nil {
		return models.QueryResponse{}, synthesisError(err)
	}

	o.enter(r, StatePersist)
	entry := syn.Entry()
	o.local.Set(r.key, entry)
	o.durableSet(ctx, r, entry)

	return models.QueryResponse{
		Answer:     syn.Answer,
		Sources:    copySources(syn.Sources),
		Confidence: syn.Confidence,
		Cached:     false,
		Timestamp:  o.now().UTC(),
	}, nil
}

func validate(req models.QueryRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return errors.New("query is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("invalid email %q: %w", req.Email, err)
	}
	return nil
}

func (o *Orchestrator) durableGet(ctx context.Context, r *run) (models.CacheEntry, bool) {
	if o.durable == nil {
		return models.CacheEntry{}, false
	}
	dctx, cancel := context.WithTimeout(ctx, o.durableTO)
	defer cancel()

	entry, found, err := o.durable.Get(dctx, r.key)
	if err != nil {
		r.log.Warn("durable cache lookup failed, treating as miss", "error", err)
		return models.CacheEntry{}, false
	}
	return entry, found
}

func (o *Orchestrator) durableSet(ctx context.Context, r *run, entry models.CacheEntry) {
	if o.durable == nil {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.durableTO)
	defer cancel()

	if err := o.durable.Set(dctx, r.key, entry); err != nil {
		r.log.Warn("durable cache write failed", "error", err)
	}
}

// fanout calls every planned source concurrently. Each result lands in its
// own slot, so no lock is needed.
func (o *Orchestrator) fanout(ctx context.Context, r *run) map[string]adapter.Result {
	sources := r.plan.Sources
	slots := make([]adapter.Result, len(sources))

	var g errgroup.Group
	g.SetLimit(o.limit)
	for i, src := range sources {
		g.Go(func() error {
			slots[i] = o.fetcher.Fetch(ctx, adapter.Call{Source: src, UserID: r.req.Email})
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string]adapter.Result, len(sources))
	failed := 0
	for i, src := range sources {
		results[src] = slots[i]
		if !slots[i].OK() {
			failed++
		}
	}
	r.log.Debug("fanout complete", "sources", len(sources), "failed", failed)
	return results
}

func (o *Orchestrator) cached(entry models.CacheEntry) models.QueryResponse {
	resp := models.QueryResponse{
		Answer:     entry.Answer,
		Sources:    copySources(entry.Sources),
		Confidence: entry.Confidence,
		Cached:     true,
		Timestamp:  o.now().UTC(),
	}
	if entry.Error != "" {
		msg := entry.Error
		resp.Error = &msg
	}
	return resp
}

// copySources detaches a response from the slice held by the cache.
func copySources(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func (o *Orchestrator) failed(err error) models.QueryResponse {
	msg := err.Error()
	return models.QueryResponse{
		Answer:    "",
		Sources:   []string{},
		Timestamp: o.now().UTC(),
		Error:     &msg,
	}
}

func (o *Orchestrator) record(ctx context.Context, r *run, resp models.QueryResponse, err error) {
	if o.recorder == nil {
		return
	}
	hash, prefix := audit.HashIdentifier(strings.ToLower(strings.TrimSpace(r.req.Email)))
	entry := models.AuditEntry{
		RequestID:  r.req.RequestID,
		UserHash:   hash,
		UserPrefix: prefix,
		Query:      r.req.Query,
		Sources:    r.plan.Sources,
		CacheKey:   r.key,
		CacheLayer: r.layer,
		Answer:     resp.Answer,
		Confidence: resp.Confidence,
		LatencyMs:  o.now().Sub(r.start).Milliseconds(),
		CreatedAt:  r.start.UTC(),
	}
	var oe *Error
	if errors.As(err, &oe) {
		entry.ErrorKind = string(oe.Kind)
		entry.Error = oe.Err.Error()
	}
	if rerr := o.recorder.Log(context.WithoutCancel(ctx), entry); rerr != nil {
		r.log.Warn("audit log failed", "error", rerr)
	}
}
