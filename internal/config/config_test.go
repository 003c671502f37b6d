package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/inventory.csv", cfg.Catalog.Path)
	assert.Equal(t, "out/assets", cfg.Assets.Dir)
	assert.Equal(t, 4, cfg.Run.Concurrency)
	assert.Zero(t, cfg.Run.Limit)
	assert.Equal(t, "ddg", cfg.Search.Provider)
	assert.Equal(t, 14, cfg.Search.MaxResults)
	assert.Equal(t, 1200, cfg.Normalize.MaxDimension)
	assert.Equal(t, 88, cfg.Normalize.JPEGQuality)
	assert.Equal(t, 5, cfg.Pipeline.MaxCandidatesPerItem)
	assert.Equal(t, int64(20<<20), cfg.Fetch.MaxBytes)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffInitial())
	assert.Equal(t, 5*time.Second, cfg.BackoffMax())
	assert.Contains(t, cfg.Rank.ReputableDomains, "midwayusa.com")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog:
  path: /data/items.csv
run:
  limit: 25
  concurrency: 8
search:
  provider: fixture
  fixture_path: fixtures.json
rank:
  blocked_domains:
    - spammyicons.com
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/items.csv", cfg.Catalog.Path)
	assert.Equal(t, 25, cfg.Run.Limit)
	assert.Equal(t, 8, cfg.Run.Concurrency)
	assert.Equal(t, "fixture", cfg.Search.Provider)
	assert.Equal(t, []string{"spammyicons.com"}, cfg.Rank.BlockedDomains)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Run.Concurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Search.Provider = "bing"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Search.Provider = "fixture"
	assert.Error(t, cfg.Validate())
	cfg.Search.FixturePath = "fixtures.json"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Normalize.JPEGQuality = 101
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Run.Limit = -1
	assert.Error(t, cfg.Validate())
}
