// Package memory implements an in-process manifest store, mostly for tests
// and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/catalogops/imageingest/internal/ingest"
)

// Store keeps runs and their asset records in maps guarded by one RWMutex.
type Store struct {
	mu       sync.RWMutex
	runs     map[string]ingest.RunSummary
	assets   map[string][]ingest.AssetRecord
	finished map[string]bool
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		runs:     make(map[string]ingest.RunSummary),
		assets:   make(map[string][]ingest.AssetRecord),
		finished: make(map[string]bool),
	}
}

func (s *Store) BeginRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; ok {
		return fmt.Errorf("run %s already registered", runID)
	}
	s.runs[runID] = ingest.RunSummary{RunID: runID}
	return nil
}

func (s *Store) RecordAsset(_ context.Context, runID string, rec ingest.AssetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("unknown run %s", runID)
	}
	s.assets[runID] = append(s.assets[runID], rec)
	return nil
}

func (s *Store) FinishRun(_ context.Context, summary ingest.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[summary.RunID]; !ok {
		return fmt.Errorf("unknown run %s", summary.RunID)
	}
	s.runs[summary.RunID] = summary
	s.finished[summary.RunID] = true
	return nil
}

func (s *Store) Close() {}

// Run returns the stored summary and whether the run has finished.
func (s *Store) Run(runID string) (ingest.RunSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.runs[runID]
	return summary, ok && s.finished[runID]
}

// Assets returns a copy of the records accumulated for runID.
func (s *Store) Assets(runID string) []ingest.AssetRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ingest.AssetRecord(nil), s.assets[runID]...)
}
