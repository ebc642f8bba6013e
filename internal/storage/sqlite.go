package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed store.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection: an in-memory database exists per connection, and the
	// CLI never needs concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS downloads (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL,
		path      TEXT NOT NULL,
		bytes     INTEGER NOT NULL,
		saved_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS downloads_saved_at ON downloads(saved_at);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// GetPref retrieves a preference by key.
func (s *SQLiteStore) GetPref(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get pref %q: %w", key, err)
	}
	return value, true, nil
}

// PutPref stores or updates a preference.
func (s *SQLiteStore) PutPref(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("put pref %q: %w", key, err)
	}
	return nil
}

// DeletePref removes a preference.
func (s *SQLiteStore) DeletePref(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete pref %q: %w", key, err)
	}
	return nil
}

// Prefs lists every stored preference.
func (s *SQLiteStore) Prefs(ctx context.Context) ([]Pref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT key, value, updated_at FROM preferences ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list prefs: %w", err)
	}
	defer rows.Close()

	var prefs []Pref
	for rows.Next() {
		var p Pref
		var updatedAt string
		if err := rows.Scan(&p.Key, &p.Value, &updatedAt); err != nil {
			return nil, err
		}
		p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// RecordDownload appends a download to the history.
func (s *SQLiteStore) RecordDownload(ctx context.Context, d Download) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.SavedAt.IsZero() {
		d.SavedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO downloads (report_id, path, bytes, saved_at) VALUES (?, ?, ?, ?)",
		d.ReportID, d.Path, d.Bytes, d.SavedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record download %q: %w", d.ReportID, err)
	}
	return nil
}

// Downloads returns up to limit downloads, newest first.
func (s *SQLiteStore) Downloads(ctx context.Context, limit int) ([]Download, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT report_id, path, bytes, saved_at FROM downloads ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var d Download
		var savedAt string
		if err := rows.Scan(&d.ReportID, &d.Path, &d.Bytes, &savedAt); err != nil {
			return nil, err
		}
		d.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close shuts down the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
