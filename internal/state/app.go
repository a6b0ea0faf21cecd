// Package state holds the process-wide application context: the storage
// root, the open stores, the similarity index and the runtime flags shared
// by the ingestion scheduler and the memory service.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nextlevelbuilder/unlost/internal/capture"
	"github.com/nextlevelbuilder/unlost/internal/contentstore"
	"github.com/nextlevelbuilder/unlost/internal/similarity"
)

// ErrMigrating is returned by mutating operations while a store migration
// is in progress.
var ErrMigrating = errors.New("store migration in progress")

const (
	StateRunning   = "running"
	StateMigrating = "migrating"
	StateDeleting  = "deleting"
)

// Options configures Open.
type Options struct {
	// Index overrides the default in-process similarity index.
	Index similarity.Index
	// CacheSize bounds the query-embedding cache of the default index.
	CacheSize int
	// Dims sets the vector size of the default index.
	Dims int
}

// App is the explicit application context. It is built once by Open and
// torn down by Close.
type App struct {
	Root    string
	Capture *capture.Store
	Content *contentstore.Store
	Index   similarity.Index

	// Now is the clock used for viewer timestamps.
	Now func() time.Time

	mu        sync.Mutex
	migration atomic.Pointer[string]
	deleting  atomic.Bool
	openedAt  atomic.Int64
	closedAt  atomic.Int64
}

// ContentPath returns the content store file under root.
func ContentPath(root string) string { return filepath.Join(root, "txtai", "content.db") }

// IndexPath returns the similarity index file under root.
func IndexPath(root string) string { return filepath.Join(root, "txtai", "vectors.zst") }

// LogPath returns the server log file under root.
func LogPath(root string) string { return filepath.Join(root, "logs", "server", "logs.txt") }

// Open builds the context for the storage root. An empty root yields an
// App without stores; the scheduler treats it as not configured.
func Open(root string, opts Options) (*App, error) {
	app := &App{Root: root, Now: time.Now}
	if root == "" {
		return app, nil
	}

	if err := os.MkdirAll(filepath.Dir(ContentPath(root)), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dirs: %w", err)
	}

	var err error
	if app.Capture, err = capture.Open(root); err != nil {
		return nil, err
	}
	if app.Content, err = contentstore.Open(ContentPath(root), contentstore.Options{}); err != nil {
		app.Capture.Close()
		return nil, err
	}

	app.Index = opts.Index
	if app.Index == nil {
		embedder := similarity.NewHashEmbedder(opts.Dims)
		if app.Index, err = similarity.NewVectorIndex(embedder, opts.CacheSize); err != nil {
			app.Close()
			return nil, err
		}
	}
	if err := app.Index.Load(IndexPath(root)); err != nil {
		slog.Warn("similarity index not loaded", "path", IndexPath(root), "error", err)
	}

	slog.Info("application context opened", "root", root)
	return app, nil
}

// Close releases the stores.
func (a *App) Close() error {
	var errs []error
	if a.Content != nil {
		errs = append(errs, a.Content.Close())
	}
	if a.Capture != nil {
		errs = append(errs, a.Capture.Close())
	}
	return errors.Join(errs...)
}

// Lock acquires the coarse lock guarding the content store and the
// similarity index.
func (a *App) Lock() { a.mu.Lock() }

// Unlock releases the coarse lock.
func (a *App) Unlock() { a.mu.Unlock() }

// SetMigration marks a store migration as running under key. An empty key
// clears it.
func (a *App) SetMigration(key string) {
	if key == "" {
		a.migration.Store(nil)
		return
	}
	a.migration.Store(&key)
}

// Migration returns the running migration key, or "".
func (a *App) Migration() string {
	if k := a.migration.Load(); k != nil {
		return *k
	}
	return ""
}

func (a *App) SetDeleting(v bool) { a.deleting.Store(v) }

func (a *App) Deleting() bool { return a.deleting.Load() }

// State reports the coarse application state.
func (a *App) State() string {
	switch {
	case a.Migration() != "":
		return StateMigrating
	case a.Deleting():
		return StateDeleting
	default:
		return StateRunning
	}
}

// SetClientOpen records a viewer open or close event at the current time.
func (a *App) SetClientOpen(open bool) {
	now := a.Now().UnixNano()
	if open {
		a.openedAt.Store(now)
	} else {
		a.closedAt.Store(now)
	}
}

// ClientOpen reports whether the last viewer event was an open, and how
// long ago that open happened.
func (a *App) ClientOpen() (bool, time.Duration) {
	opened, closed := a.openedAt.Load(), a.closedAt.Load()
	if opened <= closed {
		return false, 0
	}
	return true, a.Now().Sub(time.Unix(0, opened))
}
