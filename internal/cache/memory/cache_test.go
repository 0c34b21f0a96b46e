package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrees/canonical-checker/internal/checker"
)

func TestCacheStoreAndLookup(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()

	_, ok, err := c.Lookup(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, ok)

	entry := checker.CacheEntry{URL: "https://example.com/a", Canonical: "https://example.com/b", Status: 200}
	require.NoError(t, c.Store(ctx, entry))
	got, ok, err := c.Lookup(ctx, entry.URL)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, entry, got)

	require.NoError(t, c.Store(ctx, checker.CacheEntry{URL: entry.URL, Status: 404}))
	got, _, _ = c.Lookup(ctx, entry.URL)
	assert.Equal(t, checker.CacheEntry{URL: entry.URL, Status: 404}, got)
	assert.Equal(t, 1, c.Len())
	require.NoError(t, c.Close())
}

func TestCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url := "https://example.com/" + string(rune('a'+i%26))
			_ = c.Store(context.Background(), checker.CacheEntry{URL: url, Status: 200})
			_, _, _ = c.Lookup(context.Background(), url)
		}()
	}
	wg.Wait()
	assert.Equal(t, 26, c.Len())
}
