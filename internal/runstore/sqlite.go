package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteStore struct {
	path   string
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewSQLiteStore persists runs in a local SQLite file. The durable-local
// option when no Postgres is available.
func NewSQLiteStore(path string) (Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidInput
	}
	return &sqliteStore{path: path, openDB: sql.Open}, nil
}

func (s *sqliteStore) ensureReady() error {
	s.initOnce.Do(func() {
		db, err := s.openDB("sqlite3", s.path)
		if err != nil {
			s.initErr = err
			return
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS fieldsync_runs (
				run_id TEXT PRIMARY KEY,
				started_at TEXT NOT NULL,
				payload TEXT NOT NULL
			)`)
		if err != nil {
			_ = db.Close()
			s.initErr = err
			return
		}
		s.db = db
	})
	return s.initErr
}

func (s *sqliteStore) Save(ctx context.Context, run Run) error {
	if run.ID == "" {
		return ErrInvalidInput
	}
	if err := s.ensureReady(); err != nil {
		return err
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fieldsync_runs (run_id, started_at, payload)
		VALUES (?, ?, ?)
		ON CONFLICT (run_id)
		DO UPDATE SET started_at = excluded.started_at, payload = excluded.payload`,
		run.ID, run.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"), string(payload))
	return err
}

func (s *sqliteStore) Get(ctx context.Context, id string) (Run, error) {
	if err := s.ensureReady(); err != nil {
		return Run{}, err
	}
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM fieldsync_runs WHERE run_id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	var run Run
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *sqliteStore) List(ctx context.Context, limit int) ([]Run, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM fieldsync_runs ORDER BY started_at DESC, run_id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var runs []Run
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var run Run
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
