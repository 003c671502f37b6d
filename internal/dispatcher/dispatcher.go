// Package dispatcher fans catalog items out to a bounded worker pool and
// assembles the run summary.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/catalogops/imageingest/internal/catalog"
	"github.com/catalogops/imageingest/internal/ingest"
	"github.com/catalogops/imageingest/internal/manifest"
	"github.com/catalogops/imageingest/internal/metrics"
	"github.com/catalogops/imageingest/internal/worker"
)

// Processor handles one catalog item to its terminal record.
type Processor interface {
	ProcessItem(ctx context.Context, item catalog.Item) (ingest.AssetRecord, error)
}

// Config controls a run.
type Config struct {
	Concurrency int
	// Limit caps attempted items; zero means unlimited. Items skipped for
	// an existing asset do not count against it.
	Limit     int
	Overwrite bool
}

// Dispatcher owns run orchestration: item selection, the worker pool, the
// summary, and manifest bookkeeping.
type Dispatcher struct {
	cfg       Config
	processor Processor
	store     ingest.AssetStore
	manifest  manifest.Store
	logger    *zap.Logger
}

// New builds a Dispatcher; manifest may be nil.
func New(cfg Config, processor Processor, store ingest.AssetStore, m manifest.Store, logger *zap.Logger) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if m == nil {
		m = manifest.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:       cfg,
		processor: processor,
		store:     store,
		manifest:  m,
		logger:    logger,
	}
}

// Run processes items and returns the summary. Cancellation stops feeding
// new items; in-flight items finish and are counted. Per-item failures land
// in the summary, never in the returned error.
func (d *Dispatcher) Run(ctx context.Context, runID string, items []catalog.Item, startedAt time.Time) (ingest.RunSummary, error) {
	builder := worker.NewSummaryBuilder(runID, startedAt)
	if err := d.manifest.BeginRun(ctx, runID); err != nil {
		return builder.Finish(time.Now().UTC()), err
	}

	work := make(chan catalog.Item)
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.consume(ctx, runID, work, builder, id)
		}(i)
	}

	attempted := 0
produce:
	for _, item := range items {
		if d.cfg.Limit > 0 && attempted >= d.cfg.Limit {
			break
		}
		if !d.cfg.Overwrite && d.store.Exists(item.Key) {
			builder.RecordSkip()
			metrics.ObserveItem(string(ingest.OutcomeSkipped))
			d.logger.Debug("asset exists, skipping", zap.String("key", item.Key))
			continue
		}
		select {
		case work <- item:
			attempted++
		case <-ctx.Done():
			break produce
		}
	}
	close(work)
	wg.Wait()

	summary := builder.Finish(time.Now().UTC())
	if err := d.manifest.FinishRun(context.WithoutCancel(ctx), summary); err != nil {
		d.logger.Warn("manifest finish failed", zap.Error(err))
	}
	return summary, ctx.Err()
}

func (d *Dispatcher) consume(ctx context.Context, runID string, work <-chan catalog.Item, builder *worker.SummaryBuilder, id int) {
	log := d.logger.With(zap.Int("worker", id))
	for item := range work {
		rec, err := d.processor.ProcessItem(ctx, item)
		if err != nil {
			// Context-level failure; record the item as failed so the
			// summary accounts for everything that was dequeued.
			rec.Key = item.Key
			rec.Outcome = ingest.OutcomeFailed
			if rec.Reason == "" {
				rec.Reason = err.Error()
			}
		}
		builder.Record(rec)
		if mErr := d.manifest.RecordAsset(context.WithoutCancel(ctx), runID, rec); mErr != nil {
			log.Warn("manifest record failed", zap.String("key", item.Key), zap.Error(mErr))
		}
	}
}
