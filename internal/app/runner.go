package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrees/canonical-checker/internal/checker"
	"github.com/jobtrees/canonical-checker/internal/metrics"
	"github.com/jobtrees/canonical-checker/internal/report"
	"github.com/jobtrees/canonical-checker/internal/storage"
)

// SitemapResolver expands a sitemap root into leaf URLs.
type SitemapResolver interface {
	Resolve(ctx context.Context, rootURL string) ([]string, error)
}

// MismatchFinder checks a batch of URLs for canonical mismatches.
type MismatchFinder interface {
	FindMismatches(ctx context.Context, urls []string, concurrency int) ([]checker.MismatchRecord, error)
}

// Runner executes one full check: every sitemap, the report, the upload and
// the notification. Blobs and Publisher are optional.
type Runner struct {
	Sitemaps     []string
	Concurrency  int
	ReportPath   string
	UploadPrefix string
	Topic        string

	Resolver   SitemapResolver
	Aggregator MismatchFinder
	Reports    checker.ReportWriter
	Blobs      checker.BlobStore
	Publisher  checker.Publisher
	Hasher     checker.Hasher
	Clock      checker.Clock
	IDs        checker.IDGenerator
	Logger     *zap.Logger
}

// Run processes the sitemaps in order and always writes the report. A cache
// failure or cancellation stops the remaining sitemaps, skips upload and
// notification, and is returned after the partial report is written.
func (r *Runner) Run(ctx context.Context) (checker.RunSummary, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := r.IDs.NewID()
	if err != nil {
		return checker.RunSummary{}, fmt.Errorf("generate run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))

	summary := checker.RunSummary{
		RunID:      runID,
		StartedAt:  r.Clock.Now(),
		ReportPath: r.ReportPath,
	}
	logger.Info("starting canonical check", zap.Int("sitemaps", len(r.Sitemaps)))

	runErr := r.checkSitemaps(ctx, logger, &summary)

	if err := r.Reports.Write(r.ReportPath, summary.Sitemaps); err != nil {
		summary.FinishedAt = r.Clock.Now()
		return summary, errors.Join(runErr, fmt.Errorf("write report: %w", err))
	}
	logger.Info("report written", zap.String("path", r.ReportPath))

	if runErr != nil {
		summary.FinishedAt = r.Clock.Now()
		logger.Error("run aborted", zap.Error(runErr))
		return summary, runErr
	}

	data, err := os.ReadFile(r.ReportPath)
	if err != nil {
		logger.Error("read report failed", zap.String("path", r.ReportPath), zap.Error(err))
	} else {
		summary.ReportSHA256 = r.digest(logger, data)
		summary.ReportURI = r.upload(ctx, logger, data)
	}
	summary.FinishedAt = r.Clock.Now()
	r.notify(ctx, logger, summary)

	logger.Info("canonical check finished",
		zap.Int("urls", summary.TotalURLs),
		zap.Int("mismatches", summary.TotalMismatches),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

func (r *Runner) checkSitemaps(ctx context.Context, logger *zap.Logger, summary *checker.RunSummary) error {
	for i, root := range r.Sitemaps {
		index := i + 1
		label := report.SheetLabel(index, root)
		log := logger.With(zap.String("sitemap", root), zap.Int("index", index))
		log.Info("processing sitemap")
		start := r.Clock.Now()

		sr := checker.SitemapReport{Index: index, RootURL: root, Label: label}
		urls, err := r.Resolver.Resolve(ctx, root)
		sr.URLCount = len(urls)
		if err == nil {
			log.Info("fetched sitemap urls", zap.Int("urls", len(urls)))
			sr.Mismatches, err = r.Aggregator.FindMismatches(ctx, urls, r.Concurrency)
		}
		sr.Duration = r.Clock.Now().Sub(start)
		if err != nil {
			sr.Err = err.Error()
		}

		summary.Sitemaps = append(summary.Sitemaps, sr)
		summary.TotalURLs += sr.URLCount
		summary.TotalMismatches += len(sr.Mismatches)
		metrics.ObserveSitemap(label, sr.URLCount, sr.Duration)
		log.Info("finished sitemap",
			zap.Int("mismatches", len(sr.Mismatches)),
			zap.Duration("elapsed", sr.Duration.Round(10*time.Millisecond)),
		)

		if err != nil {
			return fmt.Errorf("sitemap %s: %w", root, err)
		}
	}
	return nil
}

// upload copies the report to the blob store. Failures are logged and the
// local file is kept.
func (r *Runner) upload(ctx context.Context, logger *zap.Logger, data []byte) string {
	if r.Blobs == nil {
		return ""
	}
	key := storage.ObjectKey(r.UploadPrefix, r.ReportPath)
	uri, err := r.Blobs.PutObject(ctx, key, report.ContentType, bytes.NewReader(data))
	if err != nil {
		logger.Error("report upload failed; local file kept", zap.String("key", key), zap.Error(err))
		return ""
	}
	logger.Info("report uploaded", zap.String("uri", uri))
	return uri
}

func (r *Runner) digest(logger *zap.Logger, data []byte) string {
	if r.Hasher == nil {
		return ""
	}
	sum, err := r.Hasher.Hash(data)
	if err != nil {
		logger.Warn("hash report failed", zap.Error(err))
		return ""
	}
	return sum
}

func (r *Runner) notify(ctx context.Context, logger *zap.Logger, summary checker.RunSummary) {
	if r.Publisher == nil {
		return
	}
	id, err := r.Publisher.Publish(ctx, r.Topic, summary)
	if err != nil {
		logger.Error("run notification failed", zap.Error(err))
		return
	}
	logger.Info("run notification published", zap.String("message_id", id))
}
