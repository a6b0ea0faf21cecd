// Package contentstore persists sections, documents and objects in a single
// SQLite file and provides the batch and score primitives used to join
// similarity results into relational queries.
package contentstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Options configures a Store.
type Options struct {
	// Encoder handles object payloads. Defaults to a ZstdEncoder.
	Encoder Encoder
	// Aliases maps logical column names to trusted SQL expressions and
	// takes precedence over the built-in resolution rules.
	Aliases map[string]string
}

// Store is a content store backed by one SQLite database.
//
// The store keeps a single connection open: the batch and scores tables are
// TEMP tables and only exist on the connection that created them.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	path    string
	encoder Encoder
	aliases map[string]string
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens the store at path, creating the schema if needed.
// An empty path opens a temporary in-memory store that can be
// materialized later with Save.
func Open(path string, opts Options) (*Store, error) {
	enc := opts.Encoder
	if enc == nil {
		z, err := NewZstdEncoder()
		if err != nil {
			return nil, err
		}
		enc = z
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, path: path, encoder: enc, aliases: opts.Aliases}
	slog.Info("content store opened", "path", s.describe())
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// migrateDB applies the embedded schema migrations. The migrate instance is
// not closed because that would close db as well.
func migrateDB(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite driver: %w", err)
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Path returns the backing file, or "" for a temporary store.
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *Store) describe() string {
	if s.path == "" {
		return ":memory:"
	}
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if c, ok := s.encoder.(interface{ Close() }); ok {
		c.Close()
	}
	return err
}

// conn returns the live handle. Callers must hold s.mu.
func (s *Store) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// Count returns the number of sections.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sections: %w", err)
	}
	return n, nil
}

// withTx runs fn inside a transaction on the live connection.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
