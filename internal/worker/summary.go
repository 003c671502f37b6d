package worker

import (
	"sync"
	"time"

	"github.com/catalogops/imageingest/internal/ingest"
)

// SummaryBuilder accumulates per-item outcomes from concurrent workers into
// one RunSummary.
type SummaryBuilder struct {
	mu      sync.Mutex
	summary ingest.RunSummary
}

// NewSummaryBuilder starts a summary for runID at the given time.
func NewSummaryBuilder(runID string, startedAt time.Time) *SummaryBuilder {
	return &SummaryBuilder{
		summary: ingest.RunSummary{RunID: runID, StartedAt: startedAt},
	}
}

// RecordSkip counts an item that already had an asset and was never
// attempted.
func (b *SummaryBuilder) RecordSkip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.Skipped++
}

// Record counts an attempted item by its terminal record.
func (b *SummaryBuilder) Record(rec ingest.AssetRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.Attempted++
	if rec.Outcome == ingest.OutcomeFailed {
		b.summary.Failed++
		b.summary.Failures = append(b.summary.Failures, ingest.Failure{
			Key:    rec.Key,
			Reason: rec.Reason,
		})
		return
	}
	b.summary.Succeeded++
}

// Finish stamps the end time and returns the completed summary.
func (b *SummaryBuilder) Finish(finishedAt time.Time) ingest.RunSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.FinishedAt = finishedAt
	return b.summary
}
