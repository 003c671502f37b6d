// Package postgres implements the manifest store on top of a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/catalogops/imageingest/internal/ingest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool backing the manifest.
type Config struct {
	DSN             string
	RunsTable       string
	AssetsTable     string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes run and asset rows into Postgres.
type Store struct {
	pool        execCloser
	runsTable   string
	assetsTable string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	runsTable, assetsTable, err := tableNames(cfg.RunsTable, cfg.AssetsTable)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, runsTable: runsTable, assetsTable: assetsTable}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing).
func NewWithPool(pool execCloser, runsTable, assetsTable string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	runs, assets, err := tableNames(runsTable, assetsTable)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, runsTable: runs, assetsTable: assets}, nil
}

func tableNames(runs, assets string) (string, string, error) {
	if runs == "" {
		runs = "ingest_runs"
	}
	if assets == "" {
		assets = "ingest_assets"
	}
	for _, table := range []string{runs, assets} {
		if !validTableName.MatchString(table) {
			return "", "", fmt.Errorf("invalid table name %q", table)
		}
	}
	return runs, assets, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// BeginRun inserts the run row before any item work starts.
func (s *Store) BeginRun(ctx context.Context, runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	started_at
) VALUES (
	$1,$2
)`, s.runsTable)

	if _, err := s.pool.Exec(ctx, query, runID, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordAsset appends one item outcome row to the run.
func (s *Store) RecordAsset(ctx context.Context, runID string, rec ingest.AssetRecord) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if rec.Key == "" {
		return fmt.Errorf("asset key is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	item_key,
	outcome,
	asset_path,
	source_url,
	width,
	height,
	bytes,
	reason,
	fetched_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.assetsTable)

	args := []any{
		runID,
		rec.Key,
		string(rec.Outcome),
		rec.Path,
		rec.SourceURL,
		rec.Width,
		rec.Height,
		rec.Bytes,
		rec.Reason,
		rec.FetchedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// FinishRun stamps the run row with its final counts.
func (s *Store) FinishRun(ctx context.Context, summary ingest.RunSummary) error {
	if summary.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
UPDATE %s SET
	finished_at = $2,
	attempted = $3,
	skipped = $4,
	succeeded = $5,
	failed = $6
WHERE run_id = $1`, s.runsTable)

	args := []any{
		summary.RunID,
		summary.FinishedAt,
		summary.Attempted,
		summary.Skipped,
		summary.Succeeded,
		summary.Failed,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}
