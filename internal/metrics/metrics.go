// Package metrics exposes Prometheus collectors for the canonical checker.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	cacheLookupsTotal          *prometheus.CounterVec
	mismatchesTotal            prometheus.Counter
	fetchRetriesTotal          prometheus.Counter
	sitemapURLsTotal           *prometheus.CounterVec
	sitemapDurationSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; observers call it lazily.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canonical_fetches_total",
				Help: "Total number of page fetches that reached the network, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canonical_cache_lookups_total",
				Help: "Total number of URL cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		mismatchesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "canonical_mismatches_total",
				Help: "Total number of pages whose canonical URL differs from the requested URL.",
			},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "canonical_fetch_retries_total",
				Help: "Total number of retried HTTP attempts.",
			},
		)

		sitemapURLsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canonical_sitemap_urls_total",
				Help: "Total number of leaf URLs resolved, labeled by sitemap.",
			},
			[]string{"sitemap"},
		)

		sitemapDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "canonical_sitemap_duration_seconds",
				Help:    "Histogram of the time spent checking one sitemap root.",
				Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
			},
			[]string{"sitemap"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests to the metrics server, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "canonical_rate_limit_delay_seconds",
				Help:    "Histogram of time spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch counts a network fetch outcome. Transport failures carry status -1.
func ObserveFetch(rawURL string, status int) {
	Init()
	fetchesTotal.WithLabelValues(SanitizeSite(rawURL), strconv.Itoa(status)).Inc()
}

// ObserveCacheLookup counts a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveMismatch counts one canonical mismatch.
func ObserveMismatch() {
	Init()
	mismatchesTotal.Inc()
}

// ObserveRetry counts one retried attempt.
func ObserveRetry() {
	Init()
	fetchRetriesTotal.Inc()
}

// ObserveSitemap records the resolved URL count and elapsed time for a sitemap root.
func ObserveSitemap(label string, urls int, duration time.Duration) {
	Init()
	sitemapURLsTotal.WithLabelValues(label).Add(float64(urls))
	sitemapDurationSeconds.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records how long a fetch waited for a rate limit token.
func ObserveRateLimitDelay(site string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(site).Observe(d.Seconds())
}
