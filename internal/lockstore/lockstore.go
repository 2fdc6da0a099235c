// Package lockstore is the persistent concurrency guard backing store: a
// per-path advisory lock and the session's lastSync revision bookkeeping,
// both held in a small SQLite database so neither is lost across a daemon
// restart mid-invocation. This is still process-local advisory locking —
// SQLite is used as an embedded, single-writer structured file, not a
// network service.
package lockstore

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"orchestrator/internal/orcherr"
)

const schema = `
CREATE TABLE IF NOT EXISTS path_locks (
    path        TEXT PRIMARY KEY,
    holder      TEXT NOT NULL,
    acquired_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_state (
    session_id  TEXT PRIMARY KEY,
    revision_id TEXT NOT NULL,
    updated_at  INTEGER NOT NULL
);
`

// Store is the SQLite-backed lock and sync-state registry.
type Store struct {
	db      *sql.DB
	lockDir string
	holder  string
}

// Open opens or creates the SQLite database at path and applies its schema.
// lockDir, if non-empty, is where the cross-process flock sidecar files are
// created; pass "" to rely on the SQLite row alone. holder identifies this
// process in the path_locks table, for diagnostics only.
func Open(path, lockDir, holder string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create lockstore directory: %w", err)
	}
	if lockDir != "" {
		if err := os.MkdirAll(lockDir, 0o750); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open lockstore: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply lockstore schema: %w", err)
	}

	return &Store{db: db, lockDir: lockDir, holder: holder}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Acquire implements pipeline.LockStore. It takes the SQLite row lock
// first, then the cross-process flock sidecar if one is configured, and
// releases both from the returned function. The release function is safe
// to call more than once.
func (s *Store) Acquire(path string) (func(), error) {
	_, err := s.db.Exec(
		`INSERT INTO path_locks (path, holder, acquired_at) VALUES (?, ?, ?)`,
		path, s.holder, time.Now().UTC().Unix(),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, orcherr.New(orcherr.ConcurrencyConflict,
				fmt.Sprintf("%s is already locked by another invocation", path),
				"retry once the conflicting invocation has completed")
		}
		return nil, fmt.Errorf("acquire lock row for %s: %w", path, err)
	}

	var fl *fileLock
	if s.lockDir != "" {
		fl, err = acquireFileLock(s.lockDir, path)
		if err != nil {
			s.releaseRow(path)
			return nil, orcherr.New(orcherr.ConcurrencyConflict,
				fmt.Sprintf("could not take the cross-process lock for %s: %v", path, err),
				"retry once the conflicting process has released the file")
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		fl.release()
		s.releaseRow(path)
	}, nil
}

func (s *Store) releaseRow(path string) {
	_, _ = s.db.Exec(`DELETE FROM path_locks WHERE path = ?`, path)
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// SyncState returns sessionID's persisted lastSync revision, or "" if none
// has been recorded yet.
func (s *Store) SyncState(sessionID string) (string, error) {
	var revisionID string
	err := s.db.QueryRow(`SELECT revision_id FROM sync_state WHERE session_id = ?`, sessionID).Scan(&revisionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read sync state: %w", err)
	}
	return revisionID, nil
}

// SetSyncState persists sessionID's lastSync revision.
func (s *Store) SetSyncState(sessionID, revisionID string) error {
	_, err := s.db.Exec(
		`INSERT INTO sync_state (session_id, revision_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET revision_id = excluded.revision_id, updated_at = excluded.updated_at`,
		sessionID, revisionID, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	return nil
}

func lockFileName(lockDir, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(lockDir, hex.EncodeToString(sum[:])+".lock")
}
