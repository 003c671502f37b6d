package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogops/imageingest/internal/ingest"
)

func TestRankPrefersReputableOverLargerUnlisted(t *testing.T) {
	r := New(Config{
		ReputableDomains: []string{"acme-store.com"},
		BlockedDomains:   []string{"spammyicons.com"},
	})

	ranked, rejected := r.Rank([]ingest.ImageCandidate{
		{URL: "https://spammyicons.com/big.jpg", Width: 5000, Height: 5000},
		{URL: "https://cdn.example.com/huge.jpg", Width: 4000, Height: 3000},
		{URL: "https://acme-store.com/product.jpg", Width: 2000, Height: 1500},
	})

	require.Len(t, ranked, 2)
	assert.Equal(t, "acme-store.com", ranked[0].Domain)
	assert.Equal(t, "cdn.example.com", ranked[1].Domain)

	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Reason, "blocked domain")
}

func TestRankSubdomainsMatchLists(t *testing.T) {
	r := New(Config{
		ReputableDomains: []string{"acme-store.com"},
		BlockedDomains:   []string{"spammyicons.com"},
	})

	ranked, rejected := r.Rank([]ingest.ImageCandidate{
		{URL: "https://img.acme-store.com/p.jpg", Width: 100, Height: 100},
		{URL: "https://cdn.spammyicons.com/x.jpg", Width: 100, Height: 100},
	})

	require.Len(t, ranked, 1)
	assert.Equal(t, "img.acme-store.com", ranked[0].Domain)
	assert.Greater(t, ranked[0].Score, reputableTierBase)
	assert.Len(t, rejected, 1)
}

func TestRankRejectsUnusableCandidates(t *testing.T) {
	r := New(Config{})

	ranked, rejected := r.Rank([]ingest.ImageCandidate{
		{URL: "://not a url"},
		{URL: "ftp://files.example.com/a.jpg"},
		{URL: "https://a.example/vector.svg", Width: 500, Height: 500},
		{URL: "https://a.example/page.html"},
		{URL: "https://a.example/image", Width: 800, Height: 600},
	})

	require.Len(t, ranked, 1, "extensionless URL should pass")
	assert.Equal(t, "https://a.example/image", ranked[0].URL)
	assert.Len(t, rejected, 4)
}

func TestRankAreaOrdersWithinTier(t *testing.T) {
	r := New(Config{})

	ranked, _ := r.Rank([]ingest.ImageCandidate{
		{URL: "https://a.example/small.jpg", Width: 100, Height: 100},
		{URL: "https://b.example/large.jpg", Width: 2000, Height: 1500},
		{URL: "https://c.example/nodims.jpg"},
	})

	require.Len(t, ranked, 3)
	assert.Equal(t, "https://b.example/large.jpg", ranked[0].URL)
	assert.Equal(t, "https://a.example/small.jpg", ranked[1].URL)
	assert.Equal(t, "https://c.example/nodims.jpg", ranked[2].URL)
	assert.Zero(t, ranked[2].Score)
}

func TestRankStableOnTies(t *testing.T) {
	r := New(Config{})

	ranked, _ := r.Rank([]ingest.ImageCandidate{
		{URL: "https://a.example/first.jpg", Width: 500, Height: 500},
		{URL: "https://b.example/second.jpg", Width: 500, Height: 500},
	})

	require.Len(t, ranked, 2)
	assert.Equal(t, "https://a.example/first.jpg", ranked[0].URL)
	assert.Equal(t, "https://b.example/second.jpg", ranked[1].URL)
}

func TestRankNormalizesDomainCasing(t *testing.T) {
	r := New(Config{BlockedDomains: []string{"SpammyIcons.com"}})

	_, rejected := r.Rank([]ingest.ImageCandidate{
		{URL: "https://SPAMMYICONS.COM/x.jpg"},
	})
	require.Len(t, rejected, 1)
}

func TestDomainMatcher(t *testing.T) {
	m := newDomainMatcher([]string{"acme.com", "*.images.example.org", ".cdn.net", "", "acme.com"})

	assert.True(t, m.Matches("acme.com"))
	assert.True(t, m.Matches("shop.acme.com"))
	assert.False(t, m.Matches("notacme.com"))
	assert.True(t, m.Matches("images.example.org"))
	assert.True(t, m.Matches("a.images.example.org"))
	assert.True(t, m.Matches("cdn.net"))
	assert.False(t, m.Matches(""))

	var empty *domainMatcher
	assert.False(t, empty.Matches("anything.com"))
}
