package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"gridline/internal/model"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) UpsertSamples(ctx context.Context, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO energy_samples (
			provider, area, kind, resolution, ts, value, unit, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, area, kind, resolution, ts)
		DO UPDATE SET
			value = excluded.value,
			unit = excluded.unit,
			ingested_at = excluded.ingested_at
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range samples {
		sample := samples[i]
		if sample.IngestedAt.IsZero() {
			sample.IngestedAt = now
		}
		_, err = stmt.ExecContext(
			ctx,
			sample.Provider,
			sample.Area,
			string(sample.Kind),
			sample.Resolution,
			sample.Timestamp.UTC().Format(time.RFC3339),
			sample.Value,
			sample.Unit,
			sample.IngestedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *Store) ListSampleTimes(ctx context.Context, provider, area string, kind model.Kind) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts FROM energy_samples
		WHERE provider = ? AND area = ? AND kind = ?
		ORDER BY ts
	`, provider, area, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	times := make([]time.Time, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("sqlite: bad timestamp %q: %w", raw, err)
		}
		times = append(times, ts)
	}
	return times, rows.Err()
}

func (s *Store) ListAreas(ctx context.Context, provider string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT area FROM energy_samples
		WHERE provider = ?
		ORDER BY area
	`, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	areas := make([]string, 0)
	for rows.Next() {
		var area string
		if err := rows.Scan(&area); err != nil {
			return nil, err
		}
		areas = append(areas, area)
	}
	return areas, rows.Err()
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS energy_samples (
			provider TEXT NOT NULL,
			area TEXT NOT NULL,
			kind TEXT NOT NULL,
			resolution TEXT NOT NULL,
			ts TEXT NOT NULL,
			value REAL NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			ingested_at TEXT NOT NULL,
			PRIMARY KEY (provider, area, kind, resolution, ts)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}
