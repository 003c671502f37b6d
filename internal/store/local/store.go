// Package local persists normalized assets on the local filesystem with
// atomic, idempotent writes.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/catalogops/imageingest/internal/ingest"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SafeKey maps an arbitrary catalog key onto a filesystem-safe name. Runs of
// disallowed characters collapse into a single underscore.
func SafeKey(key string) string {
	cleaned := unsafeKeyChars.ReplaceAllString(strings.TrimSpace(key), "_")
	cleaned = strings.Trim(cleaned, "._")
	if cleaned == "" {
		cleaned = "_"
	}
	return cleaned
}

// Store writes assets under a single directory as <SafeKey>.jpg.
type Store struct {
	dir    string
	logger *zap.Logger
}

// New ensures dir exists and is writable, probing with a throwaway file so a
// read-only mount fails the run up front rather than per item.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("asset directory not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset directory %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("asset directory %s not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	return &Store{dir: dir, logger: logger}, nil
}

// Path returns the destination path for key without touching the filesystem.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, SafeKey(key)+".jpg")
}

// Exists reports whether an asset for key is already persisted.
func (s *Store) Exists(key string) bool {
	info, err := os.Stat(s.Path(key))
	return err == nil && info.Mode().IsRegular()
}

// Write persists img for key. An existing asset is left untouched unless
// overwrite is set. The payload lands in a temp file in the target directory
// first and is renamed into place, so readers never observe a partial asset.
func (s *Store) Write(ctx context.Context, key string, img ingest.NormalizedImage, overwrite bool) (ingest.WriteOutcome, error) {
	if err := ctx.Err(); err != nil {
		return ingest.OutcomeFailed, err
	}

	target := s.Path(key)
	existed := s.Exists(key)
	if existed && !overwrite {
		return ingest.OutcomeSkipped, nil
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+SafeKey(key)+"-*")
	if err != nil {
		return ingest.OutcomeFailed, fmt.Errorf("create temp asset: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(img.Data); err != nil {
		tmp.Close()
		return ingest.OutcomeFailed, fmt.Errorf("write temp asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return ingest.OutcomeFailed, fmt.Errorf("close temp asset: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return ingest.OutcomeFailed, fmt.Errorf("publish asset %s: %w", target, err)
	}

	s.logger.Debug("asset written",
		zap.String("key", key),
		zap.String("path", target),
		zap.Int("bytes", len(img.Data)),
		zap.Bool("overwrote", existed),
	)
	if existed {
		return ingest.OutcomeOverwritten, nil
	}
	return ingest.OutcomeWritten, nil
}
