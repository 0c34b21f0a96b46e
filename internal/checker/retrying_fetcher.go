package checker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrees/canonical-checker/internal/metrics"
)

// RetryingFetcher wraps a Fetcher with a RetryPolicy.
type RetryingFetcher struct {
	inner  Fetcher
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetryingFetcher decorates inner with retries.
func NewRetryingFetcher(inner Fetcher, policy RetryPolicy, logger *zap.Logger) *RetryingFetcher {
	if policy == nil {
		policy = NewExponentialRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingFetcher{inner: inner, policy: policy, logger: logger}
}

// Fetch runs attempts until the policy gives up. When retries run out on a
// retryable status, the last response is returned without an error.
func (f *RetryingFetcher) Fetch(ctx context.Context, url string) (FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := f.inner.Fetch(ctx, url)
		resp.Attempts = attempt
		if ctx.Err() != nil || !f.policy.ShouldRetry(resp, err, attempt) {
			return resp, err
		}

		delay := f.policy.Backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("status", resp.StatusCode),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		metrics.ObserveRetry()

		if waitErr := sleepContext(ctx, delay); waitErr != nil {
			return FetchResponse{}, fmt.Errorf("retry wait canceled: %w", waitErr)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
