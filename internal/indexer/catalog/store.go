// Package catalog records finished index runs in PostgreSQL so that operators
// can see which partitions a run produced and how long each phase took.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/postgres"
)

// Run statuses.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Schema creates the catalog tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS index_runs (
		run_id          TEXT PRIMARY KEY,
		manifest        TEXT NOT NULL,
		status          TEXT NOT NULL,
		error           TEXT NOT NULL DEFAULT '',
		mappers         INTEGER NOT NULL,
		reducers        INTEGER NOT NULL,
		files           INTEGER NOT NULL,
		skipped         INTEGER NOT NULL,
		words           INTEGER NOT NULL,
		map_ms          BIGINT NOT NULL,
		reduce_ms       BIGINT NOT NULL,
		total_ms        BIGINT NOT NULL,
		started_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS index_partitions (
		run_id  TEXT NOT NULL REFERENCES index_runs(run_id) ON DELETE CASCADE,
		letter  CHAR(1) NOT NULL,
		path    TEXT NOT NULL,
		words   INTEGER NOT NULL,
		PRIMARY KEY (run_id, letter)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_index_runs_started_at ON index_runs (started_at DESC)`,
}

// RunRecord is one row of index_runs plus its partitions.
type RunRecord struct {
	RunID          string
	Manifest       string
	Status         string
	Error          string
	Mappers        int
	Reducers       int
	Files          int
	Skipped        int
	Words          int
	MapDuration    time.Duration
	ReduceDuration time.Duration
	TotalDuration  time.Duration
	StartedAt      time.Time
	Partitions     []indexer.PartitionResult
}

// FromResult builds the record for a run. runErr is the error Run returned,
// if any; res may be partial in that case.
func FromResult(manifest string, res *indexer.RunResult, runErr error) RunRecord {
	rec := RunRecord{
		RunID:          res.RunID,
		Manifest:       manifest,
		Status:         StatusSucceeded,
		Mappers:        res.Mappers,
		Reducers:       res.Reducers,
		Files:          res.Files,
		Skipped:        len(res.Skipped),
		Words:          res.Words,
		MapDuration:    res.MapDuration,
		ReduceDuration: res.ReduceDuration,
		TotalDuration:  res.TotalDuration,
		StartedAt:      res.StartedAt.UTC(),
		Partitions:     res.Partitions,
	}
	if runErr != nil {
		rec.Status = StatusFailed
		rec.Error = runErr.Error()
	}
	return rec
}

// Store reads and writes the run catalog.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "run-catalog"),
	}
}

// Migrate creates the catalog tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.Migrate(ctx, Schema...); err != nil {
		return fmt.Errorf("migrating run catalog: %w", err)
	}
	return nil
}

// RecordRun inserts rec and its partitions in one transaction.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO index_runs
			(run_id, manifest, status, error, mappers, reducers, files, skipped, words, map_ms, reduce_ms, total_ms, started_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			rec.RunID, rec.Manifest, rec.Status, rec.Error, rec.Mappers, rec.Reducers,
			rec.Files, rec.Skipped, rec.Words,
			rec.MapDuration.Milliseconds(), rec.ReduceDuration.Milliseconds(), rec.TotalDuration.Milliseconds(),
			rec.StartedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}
		for _, p := range rec.Partitions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO index_partitions (run_id, letter, path, words) VALUES ($1, $2, $3, $4)`,
				rec.RunID, p.Letter, p.Path, p.Words,
			); err != nil {
				return fmt.Errorf("inserting partition %s: %w", p.Letter, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording run %s: %w", rec.RunID, err)
	}
	s.logger.Info("run recorded",
		"run_id", rec.RunID,
		"status", rec.Status,
		"partitions", len(rec.Partitions),
	)
	return nil
}

// GetRun loads a run and its partitions. It returns nil, nil when the run is
// unknown.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	var mapMS, reduceMS, totalMS int64
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT run_id, manifest, status, error, mappers, reducers, files, skipped, words,
		map_ms, reduce_ms, total_ms, started_at
		FROM index_runs WHERE run_id=$1`, runID,
	).Scan(&rec.RunID, &rec.Manifest, &rec.Status, &rec.Error, &rec.Mappers, &rec.Reducers,
		&rec.Files, &rec.Skipped, &rec.Words, &mapMS, &reduceMS, &totalMS, &rec.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	rec.MapDuration = time.Duration(mapMS) * time.Millisecond
	rec.ReduceDuration = time.Duration(reduceMS) * time.Millisecond
	rec.TotalDuration = time.Duration(totalMS) * time.Millisecond

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT letter, path, words FROM index_partitions WHERE run_id=$1 ORDER BY letter`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying partitions of %s: %w", runID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var p indexer.PartitionResult
		if err := rows.Scan(&p.Letter, &p.Path, &p.Words); err != nil {
			return nil, fmt.Errorf("scanning partition row: %w", err)
		}
		rec.Partitions = append(rec.Partitions, p)
	}
	return &rec, rows.Err()
}
