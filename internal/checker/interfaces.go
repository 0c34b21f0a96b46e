package checker

import (
	"context"
	"io"
	"time"
)

// Cache persists fetch outcomes keyed by URL.
// Implementations must be safe for concurrent use and must fail loudly
// (never silently skip) when the backing store is unavailable.
type Cache interface {
	Lookup(ctx context.Context, url string) (CacheEntry, bool, error)
	Store(ctx context.Context, entry CacheEntry) error
	Close() error
}

// Fetcher issues a single HTTP GET and returns the response, whatever its status.
// Errors are reserved for transport failures.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// RetryPolicy decides whether and when a fetch attempt is repeated.
type RetryPolicy interface {
	ShouldRetry(resp FetchResponse, err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// BlobStore writes report artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher produces a hex digest of report contents.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// ReportWriter renders per-sitemap results into an artifact on disk.
type ReportWriter interface {
	Write(path string, reports []SitemapReport) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
