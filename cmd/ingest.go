package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/catalogops/imageingest/internal/api"
	"github.com/catalogops/imageingest/internal/catalog"
	"github.com/catalogops/imageingest/internal/config"
	"github.com/catalogops/imageingest/internal/dispatcher"
	"github.com/catalogops/imageingest/internal/fetch"
	"github.com/catalogops/imageingest/internal/ingest"
	"github.com/catalogops/imageingest/internal/logging"
	"github.com/catalogops/imageingest/internal/manifest"
	manifestpg "github.com/catalogops/imageingest/internal/manifest/postgres"
	"github.com/catalogops/imageingest/internal/metrics"
	"github.com/catalogops/imageingest/internal/normalize"
	"github.com/catalogops/imageingest/internal/publish"
	"github.com/catalogops/imageingest/internal/rank"
	"github.com/catalogops/imageingest/internal/ratelimit"
	"github.com/catalogops/imageingest/internal/search"
	"github.com/catalogops/imageingest/internal/search/ddg"
	"github.com/catalogops/imageingest/internal/search/fixture"
	"github.com/catalogops/imageingest/internal/store/gcs"
	"github.com/catalogops/imageingest/internal/store/local"
	"github.com/catalogops/imageingest/internal/worker"
)

type ingestFlags struct {
	catalogPath string
	assetsDir   string
	limit       int
	overwrite   bool
	concurrency int
}

func newIngestCmd() *cobra.Command {
	flags := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the catalog and acquire missing images",
		Long: `Processes every catalog item that does not yet have a stored
asset, up to the configured limit, and prints a run summary. Items that
cannot be resolved are reported in the summary; they do not abort the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.catalogPath, "catalog", "", "catalog CSV path (overrides config)")
	cmd.Flags().StringVar(&flags.assetsDir, "assets-dir", "", "asset output directory (overrides config)")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "max items to attempt, 0 for all (overrides config)")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "replace existing assets (overrides config)")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "worker count (overrides config)")

	return cmd
}

func runIngest(cmd *cobra.Command, flags *ingestFlags) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(cmd, flags, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	items, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("catalog loaded",
		zap.String("path", cfg.Catalog.Path),
		zap.Int("items", len(items)),
	)

	store, err := local.New(cfg.Assets.Dir, logger)
	if err != nil {
		return fmt.Errorf("init asset store: %w", err)
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}

	fetcher := fetch.New(fetch.Config{
		UserAgent:      cfg.Fetch.UserAgent,
		Timeout:        cfg.FetchTimeout(),
		MaxBytes:       cfg.Fetch.MaxBytes,
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		BackoffInitial: cfg.BackoffInitial(),
		BackoffMax:     cfg.BackoffMax(),
		RespectRobots:  cfg.Fetch.RespectRobots,
	})
	normalizer := normalize.New(normalize.Config{
		MaxDimension: cfg.Normalize.MaxDimension,
		JPEGQuality:  cfg.Normalize.JPEGQuality,
	})
	ranker := rank.New(rank.Config{
		ReputableDomains: cfg.Rank.ReputableDomains,
		BlockedDomains:   cfg.Rank.BlockedDomains,
	})
	limiter := ratelimit.New(cfg.RateLimit.PerDomainRPS, cfg.RateLimit.Burst)

	mirror, err := buildMirror(ctx, cfg, logger)
	if err != nil {
		return err
	}
	manifestStore, err := buildManifest(ctx, cfg)
	if err != nil {
		return err
	}
	defer manifestStore.Close()

	publisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if serveErr := api.Serve(ctx, cfg.Metrics.Addr, logger); serveErr != nil {
				logger.Warn("metrics server stopped", zap.Error(serveErr))
			}
		}()
	}

	w := worker.New(
		worker.Config{
			MaxResults:    cfg.Search.MaxResults,
			MaxCandidates: cfg.Pipeline.MaxCandidatesPerItem,
			Overwrite:     cfg.Run.Overwrite,
		},
		provider, ranker, fetcher, normalizer, store, mirror, limiter, logger,
	)
	d := dispatcher.New(
		dispatcher.Config{
			Concurrency: cfg.Run.Concurrency,
			Limit:       cfg.Run.Limit,
			Overwrite:   cfg.Run.Overwrite,
		},
		w, store, manifestStore, logger,
	)

	runID := newRunID()
	startedAt := time.Now().UTC()
	logger.Info("run starting",
		zap.String("run_id", runID),
		zap.Int("concurrency", cfg.Run.Concurrency),
		zap.Int("limit", cfg.Run.Limit),
	)

	summary, runErr := d.Run(ctx, runID, items, startedAt)
	publishRunEvent(logger, publisher, summary)
	printSummary(summary)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run: %w", runErr)
	}
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, flags *ingestFlags, cfg *config.Config) {
	if cmd.Flags().Changed("catalog") {
		cfg.Catalog.Path = flags.catalogPath
	}
	if cmd.Flags().Changed("assets-dir") {
		cfg.Assets.Dir = flags.assetsDir
	}
	if cmd.Flags().Changed("limit") {
		cfg.Run.Limit = flags.limit
	}
	if cmd.Flags().Changed("overwrite") {
		cfg.Run.Overwrite = flags.overwrite
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Run.Concurrency = flags.concurrency
	}
}

func buildProvider(cfg config.Config, logger *zap.Logger) (ingest.SearchProvider, error) {
	var provider ingest.SearchProvider
	switch cfg.Search.Provider {
	case "fixture":
		p, err := fixture.Load(cfg.Search.FixturePath)
		if err != nil {
			return nil, fmt.Errorf("load fixture provider: %w", err)
		}
		provider = p
	default:
		provider = ddg.New(ddg.Config{
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   cfg.FetchTimeout(),
		}, logger)
	}
	if cfg.Search.CacheSize > 0 {
		cached, err := search.NewCached(provider, cfg.Search.CacheSize)
		if err != nil {
			return nil, err
		}
		provider = cached
	}
	return provider, nil
}

func buildMirror(ctx context.Context, cfg config.Config, logger *zap.Logger) (ingest.Mirror, error) {
	if cfg.Storage.GCSBucket == "" {
		return nil, nil
	}
	mirror, err := gcs.New(ctx, cfg.Storage.GCSBucket, cfg.Storage.GCSPrefix, logger)
	if err != nil {
		return nil, fmt.Errorf("init gcs mirror: %w", err)
	}
	return mirror, nil
}

func buildManifest(ctx context.Context, cfg config.Config) (manifest.Store, error) {
	if cfg.DB.DSN == "" {
		return manifest.Noop{}, nil
	}
	store, err := manifestpg.New(ctx, manifestpg.Config{
		DSN:         cfg.DB.DSN,
		RunsTable:   cfg.DB.RunsTable,
		AssetsTable: cfg.DB.AssetsTable,
	})
	if err != nil {
		return nil, fmt.Errorf("init manifest store: %w", err)
	}
	return store, nil
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (ingest.Publisher, error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return publish.Noop{}, nil
	}
	p, err := publish.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger)
	if err != nil {
		return nil, fmt.Errorf("init publisher: %w", err)
	}
	return p, nil
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// publishRunEvent emits the summary as JSON; the run already succeeded
// locally, so publish failures only warn.
func publishRunEvent(logger *zap.Logger, publisher ingest.Publisher, summary ingest.RunSummary) {
	payload, err := json.Marshal(summary)
	if err != nil {
		logger.Warn("marshal run event failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := publisher.Publish(ctx, payload); err != nil {
		logger.Warn("publish run event failed", zap.Error(err))
	}
}

func printSummary(summary ingest.RunSummary) {
	fmt.Fprintf(os.Stdout, "run %s finished in %s\n",
		summary.RunID, summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(os.Stdout, "  attempted: %d\n", summary.Attempted)
	fmt.Fprintf(os.Stdout, "  succeeded: %d\n", summary.Succeeded)
	fmt.Fprintf(os.Stdout, "  skipped:   %d\n", summary.Skipped)
	fmt.Fprintf(os.Stdout, "  failed:    %d\n", summary.Failed)
	for _, failure := range summary.Failures {
		fmt.Fprintf(os.Stdout, "    %s: %s\n", failure.Key, failure.Reason)
	}
}
