//go:build sqlite

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the black-box record across coordinator
// restarts, useful for post-mortem analysis of a crashed run.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
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
		db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return err
	}
	s.db = db
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS lifecycle (
			run_id TEXT NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS crashes (
			run_id TEXT NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS frame_errors (
			run_id TEXT NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func (s *SQLiteStore) RecordLifecycle(ctx context.Context, ev LifecycleEvent) error {
	return s.insert(ctx, "lifecycle", ev.RunID, ev)
}

func (s *SQLiteStore) RecordCrash(ctx context.Context, report CrashReport) error {
	return s.insert(ctx, "crashes", report.RunID, report)
}

func (s *SQLiteStore) RecordFrameError(ctx context.Context, fe FrameError) error {
	return s.insert(ctx, "frame_errors", fe.RunID, fe)
}

func (s *SQLiteStore) insert(ctx context.Context, table, runID string, v any) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "INSERT INTO "+table+" (run_id, payload) VALUES (?, ?)", runID, payload)
	return err
}

func (s *SQLiteStore) LifecycleFor(ctx context.Context, runID string) ([]LifecycleEvent, error) {
	rows, err := s.query(ctx, "lifecycle", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LifecycleEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev LifecycleEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CrashesFor(ctx context.Context, runID string) ([]CrashReport, error) {
	rows, err := s.query(ctx, "crashes", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CrashReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r CrashReport
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FrameErrorsFor(ctx context.Context, runID string) ([]FrameError, error) {
	rows, err := s.query(ctx, "frame_errors", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FrameError
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var fe FrameError
		if err := json.Unmarshal(payload, &fe); err != nil {
			return nil, err
		}
		out = append(out, fe)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) query(ctx context.Context, table, runID string) (*sql.Rows, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, "SELECT payload FROM "+table+" WHERE run_id = ?", runID)
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
