package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogops/imageingest/internal/ingest"
)

type countingProvider struct {
	calls   int
	results []ingest.ImageCandidate
	err     error
}

func (p *countingProvider) Search(_ context.Context, _ string, _ int) ([]ingest.ImageCandidate, error) {
	p.calls++
	return p.results, p.err
}

func TestCachedProviderMemoizes(t *testing.T) {
	inner := &countingProvider{results: []ingest.ImageCandidate{{URL: "https://a.example/1.jpg"}}}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	first, err := c.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "q", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	// Different limits are different cache entries.
	_, err = c.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{err: errors.New("upstream down")}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "q", 5)
	assert.Error(t, err)
	_, err = c.Search(context.Background(), "q", 5)
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedProviderCopiesResults(t *testing.T) {
	inner := &countingProvider{results: []ingest.ImageCandidate{{URL: "https://a.example/1.jpg"}}}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	first, err := c.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	first[0].URL = "mutated"

	second, err := c.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, "https://a.example/1.jpg", second[0].URL)
}
