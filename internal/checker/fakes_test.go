package checker_test

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/jobtrees/canonical-checker/internal/checker"
)

var errTimeout = errors.New("simulated timeout")

// fakeFetcher serves canned responses keyed by URL and counts calls.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]checker.FetchResponse
	errs      map[string]error
	calls     map[string]int
	block     map[string]chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]checker.FetchResponse),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
		block:     make(map[string]chan struct{}),
	}
}

func (f *fakeFetcher) page(url string, status int, body string) *fakeFetcher {
	f.responses[url] = checker.FetchResponse{URL: url, StatusCode: status, Body: []byte(body)}
	return f
}

// cut serves body as a 200 response that stopped at the size limit.
func (f *fakeFetcher) cut(url string, body string) *fakeFetcher {
	f.responses[url] = checker.FetchResponse{URL: url, StatusCode: http.StatusOK, Body: []byte(body), Truncated: true}
	return f
}

func (f *fakeFetcher) fail(url string, err error) *fakeFetcher {
	f.errs[url] = err
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (checker.FetchResponse, error) {
	f.mu.Lock()
	f.calls[url]++
	wait := f.block[url]
	f.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return checker.FetchResponse{}, ctx.Err()
		}
	}
	if err := f.errs[url]; err != nil {
		return checker.FetchResponse{URL: url, StatusCode: checker.StatusTransportFailure}, err
	}
	if resp, ok := f.responses[url]; ok {
		return resp, nil
	}
	return checker.FetchResponse{URL: url, StatusCode: http.StatusNotFound}, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// failingCache returns err from every operation.
type failingCache struct {
	err error
}

func (c failingCache) Lookup(context.Context, string) (checker.CacheEntry, bool, error) {
	return checker.CacheEntry{}, false, c.err
}

func (c failingCache) Store(context.Context, checker.CacheEntry) error { return c.err }

func (c failingCache) Close() error { return nil }

func canonicalPage(href string) string {
	return `<html><head><title>t</title><link rel="canonical" href="` + href + `"></head><body></body></html>`
}

func urlset(locs ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		body += "<url><loc>" + loc + "</loc></url>"
	}
	return body + "</urlset>"
}

func sitemapIndex(locs ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		body += "<sitemap><loc>" + loc + "</loc></sitemap>"
	}
	return body + "</sitemapindex>"
}
