//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"goalreach/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.SolveRun) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.SolveRun, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.SolveRun{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SolveRun{}, false, nil
		}
		return model.SolveRun{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.SolveRun{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.SolveRun, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM runs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.SolveRun
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM solutions WHERE run_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveSolutions(ctx context.Context, runID string, solutions []model.SolutionRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeSolutions(solutions)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO solutions (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) GetSolutions(ctx context.Context, runID string) ([]model.SolutionRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM solutions WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	solutions, err := DecodeSolutions(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode solutions %s: %w", runID, err)
	}
	return solutions, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS solutions (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
