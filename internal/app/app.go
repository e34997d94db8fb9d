// Package app builds the crawl pipeline from configuration and runs the
// operations exposed by the command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/parlcrawl/internal/api"
	"github.com/JakeFAU/parlcrawl/internal/clock/system"
	"github.com/JakeFAU/parlcrawl/internal/config"
	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/emit"
	collyfetcher "github.com/JakeFAU/parlcrawl/internal/fetcher/colly"
	"github.com/JakeFAU/parlcrawl/internal/hash/sha256"
	"github.com/JakeFAU/parlcrawl/internal/id/uuid"
	"github.com/JakeFAU/parlcrawl/internal/logging"
	"github.com/JakeFAU/parlcrawl/internal/metrics"
	"github.com/JakeFAU/parlcrawl/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/parlcrawl/internal/publisher/pubsub"
	"github.com/JakeFAU/parlcrawl/internal/rules"
	"github.com/JakeFAU/parlcrawl/internal/rules/ca"
	"github.com/JakeFAU/parlcrawl/internal/scheduler"
	gcsstorage "github.com/JakeFAU/parlcrawl/internal/storage/gcs"
	localstorage "github.com/JakeFAU/parlcrawl/internal/storage/local"
	memorystorage "github.com/JakeFAU/parlcrawl/internal/storage/memory"
	pgstore "github.com/JakeFAU/parlcrawl/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/parlcrawl/internal/storage/sqlite"
)

// App holds the long-lived services of one command invocation.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	fetcher   crawler.Fetcher
	limiter   crawler.RateLimiter
	store     crawler.ProfileStore
	blobs     crawler.BlobStore
	publisher crawler.Publisher
	rules     *rules.Set
	ids       crawler.IDGenerator
	clock     crawler.Clock
	hasher    crawler.Hasher

	gcsClient    *storage.Client
	pubsubClient *pubsub.Client
	gcpPublisher *gcppublisher.Publisher
	closers      []func() error
}

// Option overrides a dependency Build would otherwise create.
type Option func(*App)

// WithFetcher replaces the network fetcher. Retries still wrap it.
func WithFetcher(f crawler.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithProfileStore replaces the configured profile store.
func WithProfileStore(s crawler.ProfileStore) Option {
	return func(a *App) { a.store = s }
}

// WithBlobStore replaces the configured artifact store.
func WithBlobStore(s crawler.BlobStore) Option {
	return func(a *App) { a.blobs = s }
}

// WithPublisher replaces the artifact notification publisher.
func WithPublisher(p crawler.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithClock replaces the wall clock.
func WithClock(c crawler.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithIDGenerator replaces the run id generator.
func WithIDGenerator(g crawler.IDGenerator) Option {
	return func(a *App) { a.ids = g }
}

// Build creates the application's dependencies from cfg.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		rules:  rules.Default(),
		hasher: sha256.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = system.New()
	}
	if a.ids == nil {
		a.ids = uuid.New()
	}

	metrics.Init()
	a.logger.Info("building application dependencies",
		zap.String("store", cfg.Store.Backend),
		zap.String("output", cfg.Output.Backend),
	)

	a.setupFetcher()
	if err := a.setupProfileStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.setupBlobStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.setupPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) setupFetcher() {
	if a.fetcher == nil {
		a.fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:   a.cfg.HTTP.UserAgent,
			Timeout:     a.cfg.HTTP.Timeout(),
			Headers:     a.cfg.HTTP.Headers,
			MaxBodySize: a.cfg.HTTP.MaxBodyBytes,
		}, a.logger)
		a.logger.Info("using colly fetcher", zap.String("user_agent", a.cfg.HTTP.UserAgent))
	}
	policy := crawler.NewExponentialRetryPolicy(
		a.cfg.HTTP.MaxRetries+1,
		a.cfg.HTTP.BackoffInitial(),
		a.cfg.HTTP.BackoffMax(),
	)
	a.fetcher = crawler.NewRetryingFetcher(a.fetcher, policy)
	a.limiter = ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.HTTP.RPS,
		DefaultBurst: a.cfg.HTTP.Burst,
		HostRPS:      a.cfg.HTTP.HostRPS(),
	})
}

func (a *App) gcs(ctx context.Context) (*storage.Client, error) {
	if a.gcsClient != nil {
		return a.gcsClient, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client init failed: %w", err)
	}
	a.gcsClient = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *App) setupProfileStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	cfg := a.cfg
	switch cfg.Store.Backend {
	case config.BackendMemory:
		a.logger.Warn("using in-memory profile store; profiles will not survive the run")
		a.store = memorystorage.NewProfileStore()
	case config.BackendLocal:
		s, err := localstorage.NewProfileStore(localstorage.Config{BaseDir: cfg.Store.Dir})
		if err != nil {
			return fmt.Errorf("local profile store init failed: %w", err)
		}
		a.store = s
		a.logger.Info("using local profile store", zap.String("path", cfg.Store.Dir))
	case config.BackendSQLite:
		s, err := sqlitestore.Open(sqlitestore.Config{Path: cfg.Store.SQLitePath})
		if err != nil {
			return fmt.Errorf("sqlite profile store init failed: %w", err)
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
		a.logger.Info("using sqlite profile store", zap.String("path", cfg.Store.SQLitePath))
	case config.BackendPostgres:
		s, err := pgstore.New(ctx, pgstore.Config{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetimeSeconds) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("postgres profile store init failed: %w", err)
		}
		a.closers = append(a.closers, func() error { s.Close(); return nil })
		if err := s.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres profile store schema: %w", err)
		}
		a.store = s
		a.logger.Info("using postgres profile store", zap.String("table", cfg.DB.Table))
	case config.BackendGCS:
		client, err := a.gcs(ctx)
		if err != nil {
			return err
		}
		s, err := gcsstorage.NewProfileStore(client, gcsstorage.Config{
			Bucket: cfg.GCS.Bucket,
			Prefix: cfg.GCS.ProfilePrefix,
		})
		if err != nil {
			return fmt.Errorf("gcs profile store init failed: %w", err)
		}
		a.store = s
		a.logger.Info("using gcs profile store", zap.String("bucket", cfg.GCS.Bucket))
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return nil
}

func (a *App) setupBlobStore(ctx context.Context) error {
	if a.blobs != nil {
		return nil
	}
	switch a.cfg.Output.Backend {
	case config.BackendLocal:
		s, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Output.Dir})
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
		a.blobs = s
		a.logger.Debug("local output backend", zap.String("path", a.cfg.Output.Dir))
	case config.BackendGCS:
		client, err := a.gcs(ctx)
		if err != nil {
			return err
		}
		s, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.GCS.Bucket})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.blobs = s
		a.logger.Debug("gcs output backend", zap.String("bucket", a.cfg.GCS.Bucket))
	default:
		a.logger.Info("using in-memory output backend")
		a.blobs = memorystorage.NewBlobStore()
	}
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.publisher != nil {
		return nil
	}
	if a.cfg.PubSub.Topic == "" {
		a.logger.Debug("no Pub/Sub topic configured, artifact notifications disabled")
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.gcpPublisher = gcppublisher.New(client)
	a.publisher = a.gcpPublisher
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.Topic),
	)
	return nil
}

// Store returns the profile store.
func (a *App) Store() crawler.ProfileStore {
	return a.store
}

// Close releases clients and flushes the logger.
func (a *App) Close() {
	if a.gcpPublisher != nil {
		a.gcpPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}

// RunOptions override the configured run knobs for one invocation.
type RunOptions struct {
	Cutoff         *time.Time
	StartTerm      *int
	EndTerm        *int
	IncludeCurrent *bool
	RoleFields     []string
}

// Result is the outcome of a crawl or an offline extraction.
type Result struct {
	Summary   scheduler.Summary
	Artifacts []emit.Artifact
}

func (a *App) runContext(site string, opts RunOptions) (crawler.RunContext, error) {
	runCfg := a.cfg.Run
	if opts.StartTerm != nil {
		runCfg.StartTerm = *opts.StartTerm
	}
	if opts.EndTerm != nil {
		runCfg.EndTerm = *opts.EndTerm
	}
	if opts.IncludeCurrent != nil {
		runCfg.IncludeCurrent = *opts.IncludeCurrent
	}
	if len(opts.RoleFields) > 0 {
		runCfg.RoleFields = opts.RoleFields
	}
	cutoff, err := runCfg.CutoffTime()
	if err != nil {
		return crawler.RunContext{}, err
	}
	if opts.Cutoff != nil {
		cutoff = *opts.Cutoff
	}
	runID, err := a.ids.NewID()
	if err != nil {
		return crawler.RunContext{}, fmt.Errorf("run id: %w", err)
	}
	return crawler.RunContext{
		RunID:      runID,
		Site:       site,
		Cutoff:     cutoff,
		Terms:      runCfg.Terms(),
		RoleFields: runCfg.RoleFields,
		StartedAt:  a.clock.Now(),
	}, nil
}

func (a *App) normalizer() *emit.Normalizer {
	return emit.NewNormalizer(emit.Options{
		ValueDelimiter:     a.cfg.Output.Delimiter,
		UnsupportedColumns: a.cfg.Output.UnsupportedColumns,
		DropEmptyColumns:   a.cfg.Output.DropEmptyColumns,
	})
}

func (a *App) writer() *emit.Writer {
	formats := make([]emit.Format, len(a.cfg.Output.Formats))
	for i, f := range a.cfg.Output.Formats {
		formats[i] = emit.Format(f)
	}
	return emit.NewWriter(a.blobs, a.publisher, a.hasher, a.clock, emit.WriterConfig{
		Prefix:  a.cfg.Output.Prefix,
		Formats: formats,
		Topic:   a.cfg.PubSub.Topic,
	}, a.logger)
}

// Crawl runs site from its seeds and writes the normalized tables. The
// summary is returned alongside any run-level error so partial results can
// be reported.
func (a *App) Crawl(ctx context.Context, site string, opts RunOptions) (Result, error) {
	seeds, err := rules.Seeds(site, a.cfg.Sites[site])
	if err != nil {
		return Result{}, err
	}
	rc, err := a.runContext(site, opts)
	if err != nil {
		return Result{}, err
	}
	logger := logging.ForRun(a.logger, rc.RunID, site)

	collector := emit.NewCollector()
	sched := scheduler.New(a.fetcher, a.store, a.rules, collector, a.limiter, a.clock, scheduler.Config{
		Workers:     a.cfg.Crawler.Workers,
		MaxInFlight: int64(a.cfg.Crawler.MaxInFlight),
	}, logger)

	if a.cfg.Metrics.Addr != "" {
		srvCtx, stop := context.WithCancel(ctx)
		defer stop()
		srv := api.NewServer(sched, a.store, logger.Named("api"))
		go func() {
			if err := srv.ListenAndServe(srvCtx, a.cfg.Metrics.Addr); err != nil {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
	}

	summary, runErr := sched.Run(ctx, rc, seeds...)
	result := Result{Summary: summary}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return result, runErr
	}

	// Partial results of a canceled run are still written.
	writeCtx := context.WithoutCancel(ctx)
	tables := a.normalizer().Normalize(collector.Groups())
	arts, err := a.writer().WriteAll(writeCtx, rc.RunID, tables)
	result.Artifacts = arts
	if err != nil {
		return result, fmt.Errorf("write artifacts: %w", err)
	}
	return result, runErr
}

// ExtractRoles re-reads every stored Canadian profile and writes one roles
// table for field. No network access is needed.
func (a *App) ExtractRoles(ctx context.Context, field string) (Result, error) {
	if field == "" {
		return Result{}, errors.New("role field is required")
	}
	rc, err := a.runContext("ca-roles", RunOptions{RoleFields: []string{field}})
	if err != nil {
		return Result{}, err
	}
	keys, err := a.store.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list profiles: %w", err)
	}

	summary := scheduler.Summary{
		RunID:     rc.RunID,
		Site:      rc.Site,
		StartedAt: a.clock.Now(),
		Records:   make(map[crawler.RecordKind]int),
	}
	collector := emit.NewCollector()
	for _, key := range keys {
		if key.Type() != crawler.DocCAProfile {
			continue
		}
		blob, err := a.store.Load(ctx, key.EntityID)
		if err != nil {
			return Result{Summary: summary}, fmt.Errorf("load profile %s: %w", key.EntityID, err)
		}
		req := crawler.NewRequest("store://"+key.Entity(), crawler.DocCAProfile)
		req.Context = req.Context.WithEntity(key.Entity(), key.DisplayName)
		ext, err := ca.ExtractProfile(rc, crawler.Document{Request: req, URL: req.URL, Body: blob, FromStore: true})
		summary.FromStore++
		if err != nil {
			summary.Failures = append(summary.Failures, scheduler.Failure{URL: req.URL, Type: req.Type, Error: err.Error()})
			continue
		}
		summary.Warnings = append(summary.Warnings, ext.Warnings...)
		collector.Accept(ext.Records...)
		for _, r := range ext.Records {
			summary.Records[r.Kind]++
		}
	}
	summary.FinishedAt = a.clock.Now()

	tables := a.normalizer().Normalize(collector.Groups())
	if len(tables) == 0 {
		// No roles: keep the person columns so the table is never headerless.
		tables = []emit.Table{{
			Name:    emit.TableName(crawler.KindRole),
			Kind:    crawler.KindRole,
			Columns: []string{"PersonId", "LastName", "UsedFirstName"},
		}}
	}
	for i := range tables {
		tables[i].Name = fmt.Sprintf("%s-%s", tables[i].Name, field)
	}
	arts, err := a.writer().WriteAll(ctx, rc.RunID, tables)
	return Result{Summary: summary, Artifacts: arts}, err
}

// Terms fetches the Canadian parliament options in chronological order.
func (a *App) Terms(ctx context.Context) ([]ca.Option, error) {
	seeds, err := rules.Seeds("ca-parliaments", a.cfg.Sites["ca-parliaments"])
	if err != nil {
		return nil, err
	}
	if err := a.limiter.Wait(ctx, seeds[0].URL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	doc, err := a.fetcher.Fetch(ctx, seeds[0])
	if err != nil {
		return nil, fmt.Errorf("fetch refiners: %w", err)
	}
	return ca.ParliamentOptions(doc.Body)
}

// Profiles lists the stored profile keys.
func (a *App) Profiles(ctx context.Context) ([]crawler.ProfileKey, error) {
	keys, err := a.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return keys, nil
}
