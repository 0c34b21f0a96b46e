// Package app wires configuration into long-lived services and runs the checker.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrees/canonical-checker/internal/cache/memory"
	"github.com/jobtrees/canonical-checker/internal/cache/postgres"
	"github.com/jobtrees/canonical-checker/internal/cache/sqlite"
	"github.com/jobtrees/canonical-checker/internal/checker"
	"github.com/jobtrees/canonical-checker/internal/clock/system"
	"github.com/jobtrees/canonical-checker/internal/config"
	"github.com/jobtrees/canonical-checker/internal/hash/sha256"
	collyfetcher "github.com/jobtrees/canonical-checker/internal/fetcher/colly"
	"github.com/jobtrees/canonical-checker/internal/id/uuid"
	"github.com/jobtrees/canonical-checker/internal/metrics"
	"github.com/jobtrees/canonical-checker/internal/policy/ratelimit"
	memorypublisher "github.com/jobtrees/canonical-checker/internal/publisher/memory"
	gcppublisher "github.com/jobtrees/canonical-checker/internal/publisher/pubsub"
	"github.com/jobtrees/canonical-checker/internal/report"
	"github.com/jobtrees/canonical-checker/internal/storage/gcs"
	"github.com/jobtrees/canonical-checker/internal/storage/local"
	memorystore "github.com/jobtrees/canonical-checker/internal/storage/memory"
)

// App holds the shared, long-lived services for one process.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Cache      checker.Cache
	Fetcher    checker.Fetcher
	Resolver   *checker.Resolver
	Aggregator *checker.Aggregator
	Reports    checker.ReportWriter
	Blobs      checker.BlobStore
	Publisher  checker.Publisher
	Clock      checker.Clock
	IDs        checker.IDGenerator
	Hasher     checker.Hasher

	// SitemapFetcher reads sitemap documents under their own, larger body limit.
	SitemapFetcher checker.Fetcher

	closers []func() error
}

// New builds every service from cfg. It fails fast if the cache, upload
// target or publisher cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Reports: report.NewWriter(),
		Clock:   system.New(),
		IDs:     uuid.New(),
		Hasher:  sha256.New(),
	}

	cache, err := newCache(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize cache: %w", err)
	}
	a.Cache = cache
	a.closers = append(a.closers, cache.Close)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.HTTP.RatePerSecond,
		Burst:             cfg.HTTP.RateBurst,
	})
	a.Fetcher = newFetcher(cfg, cfg.HTTP.MaxBodyBytes, limiter, logger)
	a.SitemapFetcher = newFetcher(cfg, cfg.HTTP.SitemapMaxBodyBytes, limiter, logger)
	a.Resolver = checker.NewResolver(a.SitemapFetcher, cfg.Checker.SitemapSuffix, logger)
	a.Aggregator = checker.NewAggregator(
		checker.NewCanonicalFetcher(a.Cache, a.Fetcher, logger),
		cfg.Checker.ProgressEvery,
		logger,
	)

	if err := a.initBlobStore(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	if err := a.initPublisher(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("initialize publisher: %w", err)
	}

	logger.Info("application services initialized",
		zap.String("cache", cfg.Cache.Provider),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("notify", cfg.Notify.Provider),
	)
	return a, nil
}

// newFetcher builds a retrying colly fetcher with its own body limit. Page and
// sitemap fetchers share the limiter so pacing is per host across both.
func newFetcher(cfg config.Config, maxBody int, limiter *ratelimit.Limiter, logger *zap.Logger) checker.Fetcher {
	var base checker.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Checker.UserAgent,
		Timeout:     cfg.RequestTimeout(),
		MaxBodySize: maxBody,
		Headers:     cfg.RequestHeaders(),
	})
	if limiter.Enabled() {
		base = ratelimit.NewFetcher(base, limiter)
	}
	return checker.NewRetryingFetcher(
		base,
		checker.NewRetryPolicy(checker.RetryConfig{
			MaxAttempts:   cfg.HTTP.MaxAttempts,
			BaseDelay:     cfg.BackoffInitial(),
			MaxDelay:      cfg.BackoffMax(),
			RetryStatuses: cfg.HTTP.RetryStatuses,
		}),
		logger,
	)
}

func newCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (checker.Cache, error) {
	switch cfg.Provider {
	case "", "sqlite":
		return sqlite.New(ctx, sqlite.Config{Path: cfg.Path, Table: cfg.Table, MaxConns: cfg.MaxConns}, logger)
	case "postgres":
		return postgres.New(ctx, postgres.Config{DSN: cfg.DSN, Table: cfg.Table, MaxConns: int32(cfg.MaxConns)}) // #nosec G115 -- bounded by config
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown cache provider: %s", cfg.Provider)
	}
}

func (a *App) initBlobStore(ctx context.Context) error {
	cfg := a.Config.Storage
	switch cfg.Provider {
	case "", "none":
		a.Logger.Info("report upload disabled")
	case "gcs":
		store, err := gcs.New(ctx, gcs.Config{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.CredentialsFile,
			CredentialsJSON: cfg.CredentialsJSON,
		})
		if err != nil {
			return err
		}
		a.Blobs = store
		a.closers = append(a.closers, store.Close)
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return err
		}
		a.Blobs = store
	case "memory":
		a.Blobs = memorystore.NewBlobStore()
	default:
		return fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	cfg := a.Config.Notify
	switch cfg.Provider {
	case "", "none":
	case "pubsub":
		pub, err := gcppublisher.Dial(ctx, gcppublisher.Config{
			ProjectID:       cfg.ProjectID,
			Topic:           cfg.Topic,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			return err
		}
		a.Publisher = pub
		a.closers = append(a.closers, pub.Close)
	case "memory":
		a.Publisher = memorypublisher.New()
	default:
		return fmt.Errorf("unknown notify provider: %s", cfg.Provider)
	}
	return nil
}

// Runner returns a Runner for the configured sitemaps.
func (a *App) Runner() *Runner {
	return &Runner{
		Sitemaps:     a.Config.Checker.Sitemaps,
		Concurrency:  a.Config.Checker.Concurrency,
		ReportPath:   a.Config.Report.OutputPath,
		UploadPrefix: a.Config.Storage.Prefix,
		Topic:        a.Config.Notify.Topic,
		Resolver:     a.Resolver,
		Aggregator:   a.Aggregator,
		Reports:      a.Reports,
		Blobs:        a.Blobs,
		Publisher:    a.Publisher,
		Clock:        a.Clock,
		Hasher:       a.Hasher,
		IDs:          a.IDs,
		Logger:       a.Logger,
	}
}

// ServeMetrics starts the /metrics and /healthz listener when metrics.addr is
// set. The returned function stops it.
func (a *App) ServeMetrics() (func(context.Context) error, error) {
	if a.Config.Metrics.Addr == "" {
		return func(context.Context) error { return nil }, nil
	}
	ln, err := net.Listen("tcp", a.Config.Metrics.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", a.Config.Metrics.Addr, err)
	}
	srv := &http.Server{
		Handler:           metrics.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.Logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv.Shutdown, nil
}

// Close releases every service in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("error closing services", zap.Error(err))
		return err
	}
	return nil
}
