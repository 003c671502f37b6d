// Package worker runs the per-item ingestion pipeline: query, search, rank,
// fetch, normalize, persist.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/catalogops/imageingest/internal/catalog"
	"github.com/catalogops/imageingest/internal/ingest"
	"github.com/catalogops/imageingest/internal/metrics"
	"github.com/catalogops/imageingest/internal/query"
)

// searchDomain is the limiter bucket shared by all search calls, distinct
// from any real hosting domain.
const searchDomain = "search"

// Config bounds per-item work.
type Config struct {
	MaxResults    int
	MaxCandidates int
	Overwrite     bool
}

// Worker processes one catalog item at a time. All collaborators are
// injected; a Worker holds no per-item state and is safe to share across
// goroutines.
type Worker struct {
	cfg        Config
	provider   ingest.SearchProvider
	ranker     ingest.Ranker
	fetcher    ingest.Fetcher
	normalizer ingest.Normalizer
	store      ingest.AssetStore
	mirror     ingest.Mirror
	limiter    ingest.Limiter
	clock      ingest.Clock
	logger     *zap.Logger
}

// New builds a Worker; mirror may be nil.
func New(
	cfg Config,
	provider ingest.SearchProvider,
	ranker ingest.Ranker,
	fetcher ingest.Fetcher,
	normalizer ingest.Normalizer,
	store ingest.AssetStore,
	mirror ingest.Mirror,
	limiter ingest.Limiter,
	logger *zap.Logger,
) *Worker {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 14
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		cfg:        cfg,
		provider:   provider,
		ranker:     ranker,
		fetcher:    fetcher,
		normalizer: normalizer,
		store:      store,
		mirror:     mirror,
		limiter:    limiter,
		clock:      ingest.SystemClock{},
		logger:     logger,
	}
}

// ProcessItem drives one item through the pipeline and returns its terminal
// record. A returned record with OutcomeFailed carries the reason; the error
// is non-nil only when the context is done, so the dispatcher can stop the
// run.
func (w *Worker) ProcessItem(ctx context.Context, item catalog.Item) (ingest.AssetRecord, error) {
	metrics.WorkerStarted()
	defer metrics.WorkerFinished()

	log := w.logger.With(zap.String("key", item.Key))
	rec := ingest.AssetRecord{Key: item.Key, FetchedAt: w.clock.Now()}

	q := query.Build(item)
	if q == "" {
		return w.fail(rec, "empty search query"), nil
	}

	ranked, err := w.search(ctx, log, q)
	if err != nil {
		if ctx.Err() != nil {
			return rec, ctx.Err()
		}
		return w.fail(rec, err.Error()), nil
	}
	if len(ranked) == 0 {
		return w.fail(rec, (&ingest.NoCandidateError{Query: q}).Error()), nil
	}

	if len(ranked) > w.cfg.MaxCandidates {
		ranked = ranked[:w.cfg.MaxCandidates]
	}

	var lastReason string
	for _, candidate := range ranked {
		img, err := w.acquire(ctx, log, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return rec, ctx.Err()
			}
			lastReason = err.Error()
			continue
		}

		outcome, err := w.persist(ctx, item.Key, img)
		if err != nil {
			// A store failure is environmental; trying more candidates
			// would hit the same disk.
			return w.fail(rec, fmt.Sprintf("store: %v", err)), nil
		}

		rec.Outcome = outcome
		rec.Path = w.store.Path(item.Key)
		rec.SourceURL = candidate.URL
		rec.Width = img.Width
		rec.Height = img.Height
		rec.Bytes = len(img.Data)
		w.mirrorAsset(ctx, log, item.Key, img)
		metrics.ObserveItem(string(outcome))
		log.Info("item ingested",
			zap.String("source", candidate.URL),
			zap.String("outcome", string(outcome)),
			zap.Int("width", img.Width),
			zap.Int("height", img.Height),
		)
		return rec, nil
	}

	if lastReason == "" {
		lastReason = "all candidates exhausted"
	}
	return w.fail(rec, lastReason), nil
}

func (w *Worker) search(ctx context.Context, log *zap.Logger, q string) ([]ingest.RankedCandidate, error) {
	if err := w.limiter.Wait(ctx, searchDomain); err != nil {
		return nil, err
	}
	start := time.Now()
	candidates, err := w.provider.Search(ctx, q, w.cfg.MaxResults)
	metrics.ObserveStage("search", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	ranked, rejected := w.ranker.Rank(candidates)
	metrics.ObserveCandidates("ranked", len(ranked))
	metrics.ObserveCandidates("rejected", len(rejected))
	for _, rej := range rejected {
		log.Debug("candidate rejected",
			zap.String("url", rej.URL),
			zap.String("reason", rej.Reason),
		)
	}
	return ranked, nil
}

// acquire downloads and normalizes one candidate.
func (w *Worker) acquire(ctx context.Context, log *zap.Logger, candidate ingest.RankedCandidate) (ingest.NormalizedImage, error) {
	if err := w.limiter.Wait(ctx, candidate.Domain); err != nil {
		return ingest.NormalizedImage{}, err
	}

	start := time.Now()
	result, err := w.fetcher.Fetch(ctx, candidate.URL)
	metrics.ObserveStage("fetch", time.Since(start))
	if err != nil {
		metrics.ObserveFetchAttempt("error")
		log.Debug("candidate fetch failed", zap.String("url", candidate.URL), zap.Error(err))
		return ingest.NormalizedImage{}, fmt.Errorf("fetch %s: %w", candidate.URL, err)
	}
	metrics.ObserveFetchAttempt("ok")
	metrics.ObserveBytesFetched(candidate.Domain, len(result.Body))

	start = time.Now()
	img, err := w.normalizer.Normalize(result.Body)
	metrics.ObserveStage("normalize", time.Since(start))
	if err != nil {
		var decodeErr *ingest.DecodeError
		if errors.As(err, &decodeErr) {
			log.Debug("candidate payload not an image", zap.String("url", candidate.URL), zap.Error(err))
		}
		return ingest.NormalizedImage{}, fmt.Errorf("normalize %s: %w", candidate.URL, err)
	}
	return img, nil
}

func (w *Worker) persist(ctx context.Context, key string, img ingest.NormalizedImage) (ingest.WriteOutcome, error) {
	start := time.Now()
	outcome, err := w.store.Write(ctx, key, img, w.cfg.Overwrite)
	metrics.ObserveStage("store", time.Since(start))
	return outcome, err
}

// mirrorAsset replicates the written asset; failures are logged only.
func (w *Worker) mirrorAsset(ctx context.Context, log *zap.Logger, key string, img ingest.NormalizedImage) {
	if w.mirror == nil {
		return
	}
	if err := w.mirror.Upload(ctx, key+".jpg", img.Data); err != nil {
		log.Warn("asset mirror failed", zap.String("key", key), zap.Error(err))
	}
}

func (w *Worker) fail(rec ingest.AssetRecord, reason string) ingest.AssetRecord {
	rec.Outcome = ingest.OutcomeFailed
	rec.Reason = reason
	metrics.ObserveItem(string(ingest.OutcomeFailed))
	w.logger.Warn("item failed", zap.String("key", rec.Key), zap.String("reason", reason))
	return rec
}
