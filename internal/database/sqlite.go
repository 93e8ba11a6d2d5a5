package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store wraps the primary cache store file and its connection pool. The pool
// can be dropped and reopened in place, which is how restore swaps the
// underlying file without invalidating every handle in the process.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the store at path.
// path can be a file path or ":memory:" for an in-memory store.
func Open(path string) (*Store, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the engine depends on: WAL journaling for durability, a busy timeout so
// transient lock contention is retried by the engine itself, and foreign
// keys so hard deletes cascade through the parent/child relation.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := EnsureDir(path); err != nil {
			return nil, err
		}
		dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if path == ":memory:" {
		// In-memory stores get one connection; a second one would see a
		// different empty database. Foreign keys still need switching on.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	return db, nil
}

// DB returns the live connection pool.
func (s *Store) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// Path returns the store file path (or ":memory:").
func (s *Store) Path() string {
	return s.path
}

// WALPath returns the path of the store's write-ahead log file.
func (s *Store) WALPath() string {
	return s.path + "-wal"
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Reopen drops the current connection pool and opens a fresh one against
// the same path. Used after the store file has been replaced on disk.
func (s *Store) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing stale pool: %w", err)
		}
	}

	db, err := OpenConnection(s.path)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// DiscardFiles closes the pool and removes the store file along with its
// WAL and shared-memory sidecars. Last-resort recovery only: everything in
// the cache is lost and must be rebuilt from the file system.
func (s *Store) DiscardFiles() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		s.db.Close()
		s.db = nil
	}

	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", s.path+suffix, err)
		}
	}
	return nil
}

// EnsureDir creates the directory that will hold the store file.
func EnsureDir(path string) error {
	if path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	return nil
}
