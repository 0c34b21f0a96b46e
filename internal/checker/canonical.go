package checker

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jobtrees/canonical-checker/internal/metrics"
)

const canonicalSelector = `link[rel~="canonical"]`

// CanonicalFetcher resolves the declared canonical URL of a page, consulting
// the cache before touching the network.
type CanonicalFetcher struct {
	cache   Cache
	fetcher Fetcher
	logger  *zap.Logger
}

// NewCanonicalFetcher builds a CanonicalFetcher.
func NewCanonicalFetcher(cache Cache, fetcher Fetcher, logger *zap.Logger) *CanonicalFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CanonicalFetcher{cache: cache, fetcher: fetcher, logger: logger.Named("canonical")}
}

// FetchCanonical returns the cached outcome for url, or fetches, parses and
// caches it. The error is non-nil only when the cache fails (wrapping
// ErrCacheUnavailable) or ctx is done.
func (c *CanonicalFetcher) FetchCanonical(ctx context.Context, url string) (CacheEntry, error) {
	entry, ok, err := c.cache.Lookup(ctx, url)
	if err != nil {
		return CacheEntry{}, fmt.Errorf("%w: lookup %s: %w", ErrCacheUnavailable, url, err)
	}
	metrics.ObserveCacheLookup(ok)
	if ok {
		return entry, nil
	}

	entry = c.fetch(ctx, url)
	if err := ctx.Err(); err != nil {
		return CacheEntry{}, fmt.Errorf("fetch canonical %s: %w", url, err)
	}
	if err := c.cache.Store(ctx, entry); err != nil {
		return CacheEntry{}, fmt.Errorf("%w: store %s: %w", ErrCacheUnavailable, url, err)
	}
	return entry, nil
}

func (c *CanonicalFetcher) fetch(ctx context.Context, url string) CacheEntry {
	resp, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		c.logger.Warn("page fetch failed", zap.String("url", url), zap.Error(err))
		return CacheEntry{URL: url, Status: StatusTransportFailure}
	}
	if resp.StatusCode != http.StatusOK {
		return CacheEntry{URL: url, Status: resp.StatusCode}
	}
	return CacheEntry{URL: url, Canonical: ExtractCanonical(resp.Body), Status: resp.StatusCode}
}

// ExtractCanonical returns the href of the first canonical link element in an
// HTML document, or "" when none is declared.
func ExtractCanonical(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	href, _ := doc.Find(canonicalSelector).First().Attr("href")
	return strings.TrimSpace(href)
}
