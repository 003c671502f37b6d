// Package manifest records ingestion runs and their per-item outcomes in a
// durable store for later audit.
package manifest

import (
	"context"

	"github.com/catalogops/imageingest/internal/ingest"
)

// Store persists run and asset records. Implementations must tolerate
// concurrent RecordAsset calls from worker goroutines.
type Store interface {
	// BeginRun registers a run before any item work starts.
	BeginRun(ctx context.Context, runID string) error
	// RecordAsset appends one item outcome to the run.
	RecordAsset(ctx context.Context, runID string, rec ingest.AssetRecord) error
	// FinishRun stamps the run with its final summary counts.
	FinishRun(ctx context.Context, summary ingest.RunSummary) error
	// Close releases underlying resources.
	Close()
}

// Noop discards everything. Used when no manifest backend is configured.
type Noop struct{}

func (Noop) BeginRun(context.Context, string) error                        { return nil }
func (Noop) RecordAsset(context.Context, string, ingest.AssetRecord) error { return nil }
func (Noop) FinishRun(context.Context, ingest.RunSummary) error            { return nil }
func (Noop) Close()                                                        {}
