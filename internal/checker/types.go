package checker

import (
	"net/http"
	"time"
)

// StatusTransportFailure is recorded when a fetch never produced an HTTP response
// (timeout, DNS failure, connection reset).
const StatusTransportFailure = -1

// CacheEntry is the durable outcome of fetching one URL.
// An empty Canonical means the page declared no canonical URL.
type CacheEntry struct {
	URL       string `json:"url"`
	Canonical string `json:"canonical,omitempty"`
	Status    int    `json:"status"`
}

// HasCanonical reports whether the page declared a canonical URL.
func (e CacheEntry) HasCanonical() bool {
	return e.Canonical != ""
}

// MismatchRecord describes a page whose canonical URL differs from the URL it was discovered through.
type MismatchRecord struct {
	SourceURL    string `json:"source_url"`
	CanonicalURL string `json:"canonical_url"`
	StatusCode   int    `json:"status_code"`
}

// Mismatch converts a cache entry into a MismatchRecord.
// The second return value is false when the entry does not describe a mismatch.
func (e CacheEntry) Mismatch() (MismatchRecord, bool) {
	if !e.HasCanonical() || e.Canonical == e.URL {
		return MismatchRecord{}, false
	}
	return MismatchRecord{
		SourceURL:    e.URL,
		CanonicalURL: e.Canonical,
		StatusCode:   e.Status,
	}, true
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Attempts   int
	// Truncated is set when Body stopped at the fetcher's size limit.
	Truncated bool
}

// SitemapReport is the per-root outcome of a run.
type SitemapReport struct {
	Index      int              `json:"index"`
	RootURL    string           `json:"root_url"`
	Label      string           `json:"label"`
	URLCount   int              `json:"url_count"`
	Mismatches []MismatchRecord `json:"mismatches"`
	Duration   time.Duration    `json:"duration_ns"`
	Err        string           `json:"error,omitempty"`
}

// RunSummary describes a completed run and is published to downstream consumers.
type RunSummary struct {
	RunID           string          `json:"run_id"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	ReportPath      string          `json:"report_path"`
	ReportURI       string          `json:"report_uri,omitempty"`
	ReportSHA256    string          `json:"report_sha256,omitempty"`
	Sitemaps        []SitemapReport `json:"sitemaps"`
	TotalURLs       int             `json:"total_urls"`
	TotalMismatches int             `json:"total_mismatches"`
}
