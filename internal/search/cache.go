// Package search decorates image search providers with shared behavior.
package search

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/catalogops/imageingest/internal/ingest"
)

// CachedProvider memoizes successful lookups so reruns over an overlapping
// catalog do not hit the upstream twice for the same query. Errors are never
// cached.
type CachedProvider struct {
	inner ingest.SearchProvider
	cache *lru.Cache[string, []ingest.ImageCandidate]
}

// NewCached wraps inner with an LRU of the given size. Size must be
// positive.
func NewCached(inner ingest.SearchProvider, size int) (*CachedProvider, error) {
	cache, err := lru.New[string, []ingest.ImageCandidate](size)
	if err != nil {
		return nil, fmt.Errorf("create search cache: %w", err)
	}
	return &CachedProvider{inner: inner, cache: cache}, nil
}

// Search consults the cache before delegating. Cached slices are copied on
// the way out so callers cannot mutate shared entries.
func (c *CachedProvider) Search(ctx context.Context, query string, maxResults int) ([]ingest.ImageCandidate, error) {
	key := fmt.Sprintf("%s|%d", query, maxResults)
	if cached, ok := c.cache.Get(key); ok {
		return append([]ingest.ImageCandidate(nil), cached...), nil
	}
	results, err := c.inner.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]ingest.ImageCandidate(nil), results...))
	return results, nil
}
