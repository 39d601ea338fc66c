// Package sqlite persists per-source poll checkpoints so a restarted service
// resumes from the newest alert it already published.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// CheckpointStore keeps the newest published alert time for each source.
// It implements pipeline.CheckpointStore and is safe for concurrent use.
type CheckpointStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates the store at path, creating the schema if needed.
// ":memory:" opens a private in-memory database.
func Open(path string) (*CheckpointStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping checkpoint db: %w", err)
	}
	if path != memoryPath {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &CheckpointStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoint table: %w", err)
	}
	return s, nil
}

func (s *CheckpointStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS checkpoints (
		source TEXT PRIMARY KEY,
		published_unix_nano INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

// Since returns the checkpoint of source. ok is false when none is stored.
func (s *CheckpointStore) Since(ctx context.Context, source string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nanos int64
	err := s.db.QueryRowContext(ctx,
		"SELECT published_unix_nano FROM checkpoints WHERE source = ?", source,
	).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read checkpoint %q: %w", source, err)
	}
	return time.Unix(0, nanos).UTC(), true, nil
}

// Advance moves the checkpoint of source forward to t. An older t is ignored.
func (s *CheckpointStore) Advance(ctx context.Context, source string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (source, published_unix_nano, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(source) DO UPDATE SET
			published_unix_nano = MAX(checkpoints.published_unix_nano, excluded.published_unix_nano),
			updated_at = CURRENT_TIMESTAMP
	`, source, t.UnixNano())
	if err != nil {
		return fmt.Errorf("advance checkpoint %q: %w", source, err)
	}
	return nil
}

// Close releases the database.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
