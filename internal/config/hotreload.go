package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadDebounce coalesces bursts of file events into one reload.
const ReloadDebounce = 300 * time.Millisecond

// ChangeHandler receives each successfully reloaded config.
type ChangeHandler func(cfg *Config)

// Watcher reloads the config file when it changes. It watches the parent
// directory so that editors replacing the file by rename are still seen.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	handlers []ChangeHandler
	stop     chan struct{}
	done     chan struct{}
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{path: abs, watcher: fw, debounce: ReloadDebounce}, nil
}

// OnChange registers a handler.
func (w *Watcher) OnChange(h ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Start begins watching.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop()

	slog.Info("config watcher started", "path", w.path)
	return nil
}

// Stop halts the watcher and waits for its loop to exit.
func (w *Watcher) Stop() {
	if w.stop != nil {
		close(w.stop)
		<-w.done
		w.stop = nil
	}
	w.watcher.Close()
	slog.Info("config watcher stopped")
}

func (w *Watcher) loop() {
	defer close(w.done)
	var timer *time.Timer

	for {
		select {
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	slog.Info("config file changed, reloading", "path", w.path)

	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("config reload failed", "error", err)
		return
	}

	w.mu.Lock()
	handlers := append([]ChangeHandler(nil), w.handlers...)
	w.mu.Unlock()

	for _, h := range handlers {
		h(cfg)
	}
	slog.Info("config reloaded", "log_level", cfg.LogLevel, "interval_secs", cfg.Ingest.IntervalSecs)
}
