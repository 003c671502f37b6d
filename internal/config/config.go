// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Run       RunConfig       `mapstructure:"run"`
	Search    SearchConfig    `mapstructure:"search"`
	Rank      RankConfig      `mapstructure:"rank"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CatalogConfig locates the inventory input.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// AssetsConfig controls where normalized assets land.
type AssetsConfig struct {
	Dir string `mapstructure:"dir"`
}

// RunConfig governs item selection for a run.
type RunConfig struct {
	Limit       int  `mapstructure:"limit"`
	Overwrite   bool `mapstructure:"overwrite"`
	Concurrency int  `mapstructure:"concurrency"`
}

// SearchConfig selects and tunes the image search provider.
type SearchConfig struct {
	Provider    string `mapstructure:"provider"`
	MaxResults  int    `mapstructure:"max_results"`
	FixturePath string `mapstructure:"fixture_path"`
	CacheSize   int    `mapstructure:"cache_size"`
}

// RankConfig carries the candidate domain lists.
type RankConfig struct {
	ReputableDomains []string `mapstructure:"reputable_domains"`
	BlockedDomains   []string `mapstructure:"blocked_domains"`
}

// FetchConfig configures candidate download behavior.
type FetchConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxAttempts      int    `mapstructure:"max_attempts"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	MaxBytes         int64  `mapstructure:"max_bytes"`
	UserAgent        string `mapstructure:"user_agent"`
	RespectRobots    bool   `mapstructure:"respect_robots"`
}

// PipelineConfig bounds per-item work.
type PipelineConfig struct {
	MaxCandidatesPerItem int `mapstructure:"max_candidates_per_item"`
}

// NormalizeConfig sets the canonical output format.
type NormalizeConfig struct {
	MaxDimension int `mapstructure:"max_dimension"`
	JPEGQuality  int `mapstructure:"jpeg_quality"`
}

// RateLimitConfig throttles outbound requests per domain.
type RateLimitConfig struct {
	PerDomainRPS float64 `mapstructure:"per_domain_rps"`
	Burst        int     `mapstructure:"burst"`
}

// MetricsConfig controls the operational HTTP endpoint. Empty addr disables
// it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig configures the optional GCS mirror.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// DBConfig controls the optional Postgres manifest.
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	RunsTable   string `mapstructure:"runs_table"`
	AssetsTable string `mapstructure:"assets_table"`
}

// PubSubConfig holds metadata for run event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IMAGEINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.path", "data/inventory.csv")
	v.SetDefault("assets.dir", "out/assets")
	v.SetDefault("run.limit", 0)
	v.SetDefault("run.overwrite", false)
	v.SetDefault("run.concurrency", 4)
	v.SetDefault("search.provider", "ddg")
	v.SetDefault("search.max_results", 14)
	v.SetDefault("search.cache_size", 512)
	v.SetDefault("rank.reputable_domains", defaultReputableDomains)
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.backoff_initial_ms", 250)
	v.SetDefault("fetch.backoff_max_ms", 5000)
	v.SetDefault("fetch.max_bytes", int64(20<<20))
	v.SetDefault("fetch.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("pipeline.max_candidates_per_item", 5)
	v.SetDefault("normalize.max_dimension", 1200)
	v.SetDefault("normalize.jpeg_quality", 88)
	v.SetDefault("ratelimit.per_domain_rps", 1.0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("db.runs_table", "ingest_runs")
	v.SetDefault("db.assets_table", "ingest_assets")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path must be set")
	}
	if c.Assets.Dir == "" {
		return fmt.Errorf("assets.dir must be set")
	}
	if c.Run.Concurrency <= 0 {
		return fmt.Errorf("run.concurrency must be > 0")
	}
	if c.Run.Limit < 0 {
		return fmt.Errorf("run.limit must be >= 0")
	}
	switch c.Search.Provider {
	case "ddg":
	case "fixture":
		if c.Search.FixturePath == "" {
			return fmt.Errorf("search.fixture_path must be set when search.provider is fixture")
		}
	default:
		return fmt.Errorf("unknown search.provider %q", c.Search.Provider)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("fetch.max_bytes must be > 0")
	}
	if c.Normalize.MaxDimension <= 0 {
		return fmt.Errorf("normalize.max_dimension must be > 0")
	}
	if c.Normalize.JPEGQuality <= 0 || c.Normalize.JPEGQuality > 100 {
		return fmt.Errorf("normalize.jpeg_quality must be in (0, 100]")
	}
	if c.Pipeline.MaxCandidatesPerItem <= 0 {
		return fmt.Errorf("pipeline.max_candidates_per_item must be > 0")
	}
	return nil
}

// FetchTimeout converts the fetch timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the initial backoff config into a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.Fetch.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the backoff ceiling config into a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Fetch.BackoffMaxMs) * time.Millisecond
}

// Retailer and manufacturer sites whose product imagery is consistently
// clean; candidates hosted on them outrank everything else.
var defaultReputableDomains = []string{
	"midwayusa.com",
	"ammoseek.com",
	"palmettostatearmory.com",
	"sportsmans.com",
	"images-na.ssl-images-amazon.com",
	"m.media-amazon.com",
	"targetsportsusa.com",
	"brownells.com",
	"academysports.com",
	"basspro.com",
	"cabelas.com",
	"cheaperthandirt.com",
	"sgammo.com",
	"gunmagwarehouse.com",
	"sportsmansguide.com",
	"natchezss.com",
	"opticsplanet.com",
}
