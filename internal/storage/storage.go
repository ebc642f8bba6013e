// Package storage persists the client's local state: display preferences
// and the history of reports saved to disk.
//
// The Store interface is the primary abstraction. SQLiteStore is the default
// implementation using pure-Go SQLite (modernc.org/sqlite).
package storage

import (
	"context"
	"time"
)

// Pref is one stored preference.
type Pref struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Download records a report written to a local file.
type Download struct {
	ReportID string
	Path     string
	Bytes    int
	SavedAt  time.Time
}

// Store is the persistent storage interface.
type Store interface {
	// GetPref returns the preference for key. ok is false when unset.
	GetPref(ctx context.Context, key string) (value string, ok bool, err error)

	// PutPref stores a preference (upsert).
	PutPref(ctx context.Context, key, value string) error

	// DeletePref removes a preference.
	DeletePref(ctx context.Context, key string) error

	// Prefs lists all preferences, ordered by key.
	Prefs(ctx context.Context) ([]Pref, error)

	// RecordDownload appends to the download history.
	RecordDownload(ctx context.Context, d Download) error

	// Downloads returns the most recent downloads first.
	Downloads(ctx context.Context, limit int) ([]Download, error)

	// Close shuts down the store.
	Close() error
}
