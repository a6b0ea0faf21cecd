package contentstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Save materializes the store at path.
//
// A temporary store is copied to path, then its in-memory connection is
// closed and replaced by a new handle on the saved file: the live handle
// changes, and TEMP tables of the old connection are gone. When path is the
// store's own file, pending WAL content is checkpointed. Any other path
// receives a copy while the store keeps its current file and handle.
func (s *Store) Save(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return err
	}

	switch {
	case s.path == "":
		if err := copyTo(ctx, db, path); err != nil {
			return err
		}
		next, err := openDB(path)
		if err != nil {
			return err
		}
		db.Close()
		s.db, s.path = next, path
		slog.Info("content store materialized", "path", path)

	case samePath(s.path, path):
		var busy, logged, moved int
		if err := db.QueryRowContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`).Scan(&busy, &logged, &moved); err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}

	default:
		if err := copyTo(ctx, db, path); err != nil {
			return err
		}
		slog.Info("content store copied", "from", s.path, "to", path)
	}
	return nil
}

// copyTo writes a consistent snapshot of db to path, replacing any file
// already there.
func copyTo(ctx context.Context, db *sql.DB, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp := path + ".tmp"
	os.Remove(tmp)
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		return fmt.Errorf("copy store: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(path + suffix)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
