package checker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jobtrees/canonical-checker/internal/metrics"
)

const (
	// DefaultConcurrency is the worker pool width.
	DefaultConcurrency = 30
	// DefaultProgressEvery is the completion interval between progress logs.
	DefaultProgressEvery = 100
)

// CanonicalResolver is satisfied by CanonicalFetcher.
type CanonicalResolver interface {
	FetchCanonical(ctx context.Context, url string) (CacheEntry, error)
}

// Aggregator fans page checks out over a bounded worker pool.
type Aggregator struct {
	resolver      CanonicalResolver
	progressEvery int
	logger        *zap.Logger
}

// NewAggregator builds an Aggregator.
func NewAggregator(resolver CanonicalResolver, progressEvery int, logger *zap.Logger) *Aggregator {
	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{resolver: resolver, progressEvery: progressEvery, logger: logger.Named("aggregator")}
}

// FindMismatches checks every URL with min(concurrency, len(urls)) workers and
// returns the mismatches in completion order. Per-page failures are part of
// the outcome; only a cache failure stops the pool, and it is returned along
// with the records collected before it.
func (a *Aggregator) FindMismatches(ctx context.Context, urls []string, concurrency int) ([]MismatchRecord, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	workers := min(concurrency, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan string)
	results := make(chan CacheEntry, workers)

	g.Go(func() error {
		defer close(jobs)
		for _, u := range urls {
			select {
			case jobs <- u:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		g.Go(func() error {
			defer wg.Done()
			for u := range jobs {
				entry, err := a.resolver.FetchCanonical(gctx, u)
				if err != nil {
					return err
				}
				results <- entry
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		records []MismatchRecord
		done    int
	)
	for entry := range results {
		done++
		if rec, ok := entry.Mismatch(); ok {
			metrics.ObserveMismatch()
			records = append(records, rec)
		}
		if done%a.progressEvery == 0 {
			a.logger.Info("progress",
				zap.Int("done", done),
				zap.Int("total", len(urls)),
				zap.Int("mismatches", len(records)),
			)
		}
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrCacheUnavailable) {
			return records, ctxErr
		}
		return records, err
	}
	return records, ctx.Err()
}
