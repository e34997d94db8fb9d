// Package scheduler drives a crawl: it drains the frontier with a bounded
// worker pool, gates profile requests through the ProfileStore, routes each
// document to its extraction rule and feeds follow-ups back into the frontier
// until nothing is pending.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/metrics"
	"github.com/JakeFAU/parlcrawl/internal/queue/memory"
)

var errDuplicate = errors.New("profile already handled in this run")

// RuleSet resolves the extraction rule for a document type.
type RuleSet interface {
	Rule(docType crawler.DocumentType) (crawler.Rule, error)
}

// Config controls Scheduler behavior.
type Config struct {
	Workers int
	// MaxInFlight caps concurrent network fetches across all workers.
	MaxInFlight int64
}

// Scheduler runs crawls. A Scheduler may run several crawls in sequence but
// only one at a time.
type Scheduler struct {
	fetcher crawler.Fetcher
	store   crawler.ProfileStore
	rules   RuleSet
	sink    crawler.RecordSink
	limiter crawler.RateLimiter
	clock   crawler.Clock
	cfg     Config
	logger  *zap.Logger
	admit   *semaphore.Weighted

	mu      sync.Mutex
	current *run
}

// New constructs a Scheduler. limiter and clock may be nil.
func New(
	fetcher crawler.Fetcher,
	store crawler.ProfileStore,
	rules RuleSet,
	sink crawler.RecordSink,
	limiter crawler.RateLimiter,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = int64(cfg.Workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		fetcher: fetcher,
		store:   store,
		rules:   rules,
		sink:    sink,
		limiter: limiter,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.Named("scheduler"),
		admit:   semaphore.NewWeighted(cfg.MaxInFlight),
	}
}

// run holds the state of a single crawl.
type run struct {
	rc     crawler.RunContext
	queue  *memory.Queue
	gate   *profileGate
	cancel context.CancelFunc

	mu         sync.Mutex
	seen       map[string]struct{}
	dispatched map[string]struct{}
	pending    int
	abandoned  int
	summary    Summary
	schedErr   error
}

// Run crawls from seeds until the frontier is exhausted or ctx ends. The
// returned error is non-nil only for run-level problems: cancellation, an
// invalid seed or a scheduling invariant violation. Per-request failures are
// reported in the Summary.
func (s *Scheduler) Run(ctx context.Context, rc crawler.RunContext, seeds ...crawler.Request) (Summary, error) {
	if len(seeds) == 0 {
		return Summary{}, errors.New("no seed requests")
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		rc:         rc,
		queue:      memory.NewQueue(),
		cancel:     cancel,
		seen:       make(map[string]struct{}),
		dispatched: make(map[string]struct{}),
		summary: Summary{
			RunID:     rc.RunID,
			Site:      rc.Site,
			StartedAt: s.now(),
			Records:   make(map[crawler.RecordKind]int),
		},
	}
	r.gate = newProfileGate(s.store, s.fetch)

	for _, seed := range seeds {
		if err := seed.Validate(); err != nil {
			return Summary{}, fmt.Errorf("invalid seed: %w", err)
		}
		r.enqueue(seed)
	}

	if !s.begin(r) {
		return Summary{}, errors.New("scheduler is already running")
	}
	defer s.end()

	s.logger.Info("crawl started",
		zap.String("run_id", rc.RunID),
		zap.String("site", rc.Site),
		zap.Int("seeds", len(seeds)),
		zap.Int("workers", s.cfg.Workers),
	)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.work(runCtx, r)
		}()
	}
	wg.Wait()

	r.mu.Lock()
	summary := r.summary
	summary.FinishedAt = s.now()
	summary.Remaining = r.pending + r.abandoned
	schedErr := r.schedErr
	r.mu.Unlock()

	if schedErr == nil && ctx.Err() != nil {
		summary.Canceled = true
	}
	s.logger.Info("crawl finished",
		zap.String("run_id", rc.RunID),
		zap.Int("dispatched", summary.Dispatched),
		zap.Int("fetched", summary.Fetched),
		zap.Int("from_store", summary.FromStore),
		zap.Int("records", summary.TotalRecords()),
		zap.Int("failures", len(summary.Failures)),
		zap.Int("warnings", len(summary.Warnings)),
		zap.Bool("canceled", summary.Canceled),
	)

	if schedErr != nil {
		return summary, schedErr
	}
	if summary.Canceled {
		return summary, fmt.Errorf("crawl canceled: %w", ctx.Err())
	}
	return summary, nil
}

// Status returns a snapshot of the running crawl, if any.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()
	if r == nil {
		return Status{}
	}
	queued := r.queue.Len()
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make(map[crawler.RecordKind]int, len(r.summary.Records))
	for k, v := range r.summary.Records {
		records[k] = v
	}
	return Status{
		Running:    true,
		RunID:      r.rc.RunID,
		Site:       r.rc.Site,
		StartedAt:  r.summary.StartedAt,
		Pending:    r.pending,
		Queued:     queued,
		Dispatched: r.summary.Dispatched,
		Fetched:    r.summary.Fetched,
		FromStore:  r.summary.FromStore,
		Records:    records,
		Failures:   len(r.summary.Failures),
		Warnings:   len(r.summary.Warnings),
	}
}

func (s *Scheduler) begin(r *run) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return false
	}
	s.current = r
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

func (s *Scheduler) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func (s *Scheduler) work(ctx context.Context, r *run) {
	for {
		req, err := r.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			// Dispatch stops with the context; the request stays pending.
			return
		}
		metrics.IncActiveWorkers()
		s.process(ctx, r, req)
		metrics.DecActiveWorkers()
		r.done()
	}
}

// process moves one request from Fetching to Extracted or Failed.
func (s *Scheduler) process(ctx context.Context, r *run, req crawler.Request) {
	if err := r.markDispatched(req); err != nil {
		s.logger.Error("schedule invariant violated", zap.String("url", req.URL), zap.Error(err))
		r.cancel()
		return
	}
	logger := s.logger.With(zap.String("url", req.URL), zap.String("type", string(req.Type)))

	rule, err := s.rules.Rule(req.Type)
	if err != nil {
		r.fail(req, err)
		logger.Error("no rule", zap.Error(err))
		return
	}

	var doc crawler.Document
	if req.Type.IsProfile() && s.store != nil {
		var duplicate bool
		doc, duplicate, err = r.gate.resolve(ctx, req)
		if duplicate {
			r.recordDuplicateProfile()
			metrics.ObserveProfile("duplicate")
			logger.Debug("profile already handled", zap.String("entity_id", req.Context.EntityID))
			return
		}
		if err == nil {
			if doc.FromStore {
				metrics.ObserveProfile("store")
			} else {
				metrics.ObserveProfile("fetched")
			}
		}
	} else {
		doc, err = s.fetch(ctx, req)
	}
	if err != nil {
		var fe *crawler.FetchError
		if ctx.Err() != nil && !errors.As(err, &fe) {
			r.abandon()
			logger.Debug("request abandoned", zap.Error(err))
			return
		}
		r.fail(req, err)
		logger.Error("request failed", zap.Error(err))
		return
	}
	r.recordDocument(doc)

	ext, err := s.extract(rule, r.rc, doc)
	if err != nil {
		r.fail(req, err)
		logger.Error("extraction failed", zap.Error(err))
		return
	}
	for _, w := range ext.Warnings {
		logger.Warn("parse warning", zap.String("doc_url", w.URL), zap.String("warning", w.Message))
	}
	metrics.ObserveParseWarnings(string(req.Type), len(ext.Warnings))

	if len(ext.Records) > 0 && s.sink != nil {
		s.sink.Accept(ext.Records...)
	}
	r.recordExtraction(ext)

	// Children enter the frontier only after the parent is extracted.
	for _, child := range ext.FollowUps {
		if err := child.Validate(); err != nil {
			r.warn(crawler.ParseWarning{URL: doc.URL, Message: fmt.Sprintf("dropped follow-up: %v", err)})
			logger.Warn("invalid follow-up", zap.Error(err))
			continue
		}
		r.enqueue(child)
	}
	metrics.ObserveRequest(string(req.Type), "extracted")
}

// fetch admits, rate limits and performs one network fetch. Once admitted a
// fetch is not interrupted by run cancellation; it completes or times out.
func (s *Scheduler) fetch(ctx context.Context, req crawler.Request) (crawler.Document, error) {
	if err := s.admit.Acquire(ctx, 1); err != nil {
		return crawler.Document{}, fmt.Errorf("admission: %w", err)
	}
	defer s.admit.Release(1)
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, req.URL); err != nil {
			return crawler.Document{}, err
		}
	}
	doc, err := s.fetcher.Fetch(context.WithoutCancel(ctx), req)
	if err != nil {
		return crawler.Document{}, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	if doc.Request.URL == "" {
		doc.Request = req
	}
	return doc, nil
}

func (s *Scheduler) extract(rule crawler.Rule, rc crawler.RunContext, doc crawler.Document) (ext crawler.Extraction, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("extraction panic for %s: %v", doc.Request.URL, p)
		}
	}()
	ext, err = rule.Extract(rc, doc)
	if err != nil {
		return crawler.Extraction{}, fmt.Errorf("extract %s: %w", doc.Request.Type, err)
	}
	return ext, nil
}

// enqueue admits req to the frontier unless its key was already seen.
func (r *run) enqueue(req crawler.Request) {
	key := req.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[key]; ok {
		r.summary.Deduplicated++
		return
	}
	if err := r.queue.Enqueue(req); err != nil {
		return
	}
	r.seen[key] = struct{}{}
	r.pending++
}

// done marks one dequeued request finished and closes the frontier when
// nothing is queued or in flight.
func (r *run) done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending--
	if r.pending == 0 {
		r.queue.Close()
	}
}

func (r *run) markDispatched(req crawler.Request) error {
	key := req.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dispatched[key]; ok {
		err := &crawler.ScheduleError{Key: key, Reason: "request dispatched twice"}
		r.schedErr = err
		return err
	}
	r.dispatched[key] = struct{}{}
	r.summary.Dispatched++
	return nil
}

func (r *run) fail(req crawler.Request, err error) {
	metrics.ObserveRequest(string(req.Type), "failed")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Failures = append(r.summary.Failures, Failure{URL: req.URL, Type: req.Type, Error: err.Error()})
}

// abandon accounts for a request dropped by cancellation before it reached
// the network.
func (r *run) abandon() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandoned++
}

func (r *run) warn(w crawler.ParseWarning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Warnings = append(r.summary.Warnings, w)
}

func (r *run) recordDuplicateProfile() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.DuplicateProfiles++
}

func (r *run) recordDocument(doc crawler.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.FromStore {
		r.summary.FromStore++
		return
	}
	r.summary.Fetched++
}

func (r *run) recordExtraction(ext crawler.Extraction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[crawler.RecordKind]int)
	for _, rec := range ext.Records {
		counts[rec.Kind]++
	}
	for kind, n := range counts {
		r.summary.Records[kind] += n
		metrics.ObserveRecords(string(kind), n)
	}
	r.summary.Warnings = append(r.summary.Warnings, ext.Warnings...)
}
