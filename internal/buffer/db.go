package buffer

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrWriteFailed is returned when an append could not be made durable
// after exhausting its retries.
var ErrWriteFailed = errors.New("buffer write failed")

// ErrSessionNotFound is returned when a session ID has no buffered data.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionSealed is returned when appending to a finalized session.
var ErrSessionSealed = errors.New("session already finalized")

// Open opens the sample buffer database inside dir, creating it if
// necessary. Pass "" to use the default data directory (~/.trainlog).
// WAL mode keeps each single-row append cheap while still making it
// durable before Append returns.
func Open(dir string) (*Store, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "samples.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring database: %w", err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, nextSeq: make(map[string]int64)}, nil
}

// DefaultDir returns the default data directory (~/.trainlog).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".trainlog"), nil
}
