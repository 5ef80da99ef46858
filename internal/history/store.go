// Package history persists launch and delivery records in a local SQLite
// database. Every simulation launch becomes a run row, and every parameter
// delivery attempt against that run becomes an apply row, so past sessions
// can be listed, inspected, and compared after the fact.
package history

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/orbitctl/orbitctl/internal/log"
)

const backupSuffix = ".bak"

// Store owns the database connection and hands out repositories bound to it.
type Store struct {
	path string
	db   *sql.DB
	repo *Repository
}

// Open opens (or creates) the history database at path, backs up any existing
// file, and applies pending schema migrations. The parent directory is created
// if missing.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	// Snapshot the current file before migrations touch it. A botched
	// migration should never be the end of the operator's history.
	if _, err := os.Stat(path); err == nil {
		if err := backupFile(path, path+backupSuffix); err != nil {
			return nil, fmt.Errorf("failed to back up history database: %w", err)
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		path,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info(log.CatHistory, "History database ready", "path", path)

	return &Store{
		path: path,
		db:   db,
		repo: newRepository(db),
	}, nil
}

// Repository returns the run and apply repository bound to this store.
func (s *Store) Repository() *Repository {
	return s.repo
}

// Connection returns the underlying database connection.
func (s *Store) Connection() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// backupFile copies src to dst, truncating any previous backup.
func backupFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- path comes from validated config
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- backup lives beside the source file
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy database: %w", err)
	}
	return out.Close()
}
