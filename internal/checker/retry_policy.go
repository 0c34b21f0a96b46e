package checker

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"
)

// DefaultRetryStatuses are the response codes that trigger another attempt.
var DefaultRetryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// RetryConfig tunes ExponentialRetryPolicy.
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	RetryStatuses []int
}

// ExponentialRetryPolicy implements RetryPolicy with doubling backoff.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	statuses    map[int]struct{}
}

// NewExponentialRetryPolicy builds a policy with sane defaults: 5 attempts,
// 0.5s initial backoff, 30s cap, and the usual transient status codes.
func NewExponentialRetryPolicy() *ExponentialRetryPolicy {
	return NewRetryPolicy(RetryConfig{})
}

// NewRetryPolicy builds a policy from cfg, filling zero values with defaults.
func NewRetryPolicy(cfg RetryConfig) *ExponentialRetryPolicy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if len(cfg.RetryStatuses) == 0 {
		cfg.RetryStatuses = DefaultRetryStatuses
	}
	statuses := make(map[int]struct{}, len(cfg.RetryStatuses))
	for _, code := range cfg.RetryStatuses {
		statuses[code] = struct{}{}
	}
	return &ExponentialRetryPolicy{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		statuses:    statuses,
	}
}

// ShouldRetry decides whether attempt (1-based, already made) deserves a successor.
func (p *ExponentialRetryPolicy) ShouldRetry(resp FetchResponse, err error, attempt int) bool {
	if attempt >= p.maxAttempts {
		return false
	}
	if err != nil {
		// Per-attempt client timeouts also match context.DeadlineExceeded, so only
		// cancellation is terminal here; the caller checks its own context.
		return !errors.Is(err, context.Canceled)
	}
	_, ok := p.statuses[resp.StatusCode]
	return ok
}

// Backoff returns the wait before the retry that follows attempt: base, 2*base, 4*base, ...
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		return p.maxDelay
	}
	return time.Duration(delay)
}

// MaxAttempts reports the attempt cap.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}
