// Package memory provides an in-process URL cache.
package memory

import (
	"context"
	"sync"

	"github.com/jobtrees/canonical-checker/internal/checker"
)

// Cache implements checker.Cache with a guarded map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]checker.CacheEntry
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]checker.CacheEntry)}
}

// Lookup implements checker.Cache.
func (c *Cache) Lookup(_ context.Context, url string) (checker.CacheEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[url]
	return entry, ok, nil
}

// Store implements checker.Cache.
func (c *Cache) Store(_ context.Context, entry checker.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.URL] = entry
	return nil
}

// Len reports the number of cached URLs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close implements checker.Cache.
func (c *Cache) Close() error {
	return nil
}
