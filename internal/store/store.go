// Package store persists feedback records in an embedded SQLite database.
// Writes are serialized through a process-wide gate; reads bypass it and run
// concurrently under WAL. The unique index on content_hash enforces the
// one-record-per-sanitized-text invariant at the engine level, below any
// application-side dedup check.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"aegis/internal/logging"
)

// hashCacheSize bounds the recently-seen-hash cache used to route duplicate
// lookups through the primary key instead of the hash index.
const hashCacheSize = 4096

// Store is the single-writer persistence layer.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	hashes  *lru.Cache[string, uuid.UUID]
	logger  logging.Logger
}

// Open initializes the SQLite database at path, enables WAL, and ensures the
// schema. The special path ":memory:" opens an in-memory store for tests.
func Open(path string, logger logging.Logger) (*Store, error) {
	logger = logging.OrNop(logger)

	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
	} else {
		// A shared cache keeps every connection of the pool on the same
		// in-memory database.
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Warn("Pragma failed (%s): %v", pragma, err)
		}
	}

	hashes, err := lru.New[string, uuid.UUID](hashCacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init hash cache: %w", err)
	}

	s := &Store{db: db, hashes: hashes, logger: logger}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Store ready at %s", path)
	return s, nil
}

func (s *Store) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		raw_content TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		sentiment TEXT NOT NULL,
		topics TEXT NOT NULL,
		is_urgent INTEGER NOT NULL DEFAULT 0,
		confidence_score REAL NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		ai_provider TEXT NOT NULL DEFAULT 'unknown',
		department TEXT NOT NULL DEFAULT 'Unassigned',
		status TEXT NOT NULL DEFAULT 'Open',
		priority TEXT NOT NULL DEFAULT 'Medium',
		resolution_note TEXT,
		needs_review INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_source ON feedback(source);
	CREATE INDEX IF NOT EXISTS idx_feedback_urgent ON feedback(is_urgent);
	CREATE INDEX IF NOT EXISTS idx_feedback_review ON feedback(needs_review);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is the engine rejecting a duplicate
// content hash.
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
