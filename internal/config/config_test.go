package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ingest.IntervalSecs != 60 || cfg.Ingest.BatchSize != 50 || cfg.Ingest.MinBatch != 5 {
		t.Errorf("ingest defaults = %+v", cfg.Ingest)
	}
	if cfg.Search.MinScore != 0.25 || cfg.Search.Limit != 160 {
		t.Errorf("search defaults = %+v", cfg.Search)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("level = %v", cfg.Level())
	}
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "json5",
			file: "unlost.json5",
			body: `{
				// storage root
				root: "/data/unlost",
				log_level: "debug",
				ingest: { interval_secs: 30, schedule: "*/2 * * * *", },
			}`,
		},
		{
			name: "yaml",
			file: "unlost.yaml",
			body: "root: /data/unlost\nlog_level: debug\ningest:\n  interval_secs: 30\n  schedule: \"*/2 * * * *\"\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Root != "/data/unlost" || cfg.Level() != slog.LevelDebug {
				t.Errorf("root=%q level=%v", cfg.Root, cfg.Level())
			}
			if cfg.Ingest.Interval() != 30*time.Second || cfg.Ingest.Schedule != "*/2 * * * *" {
				t.Errorf("ingest = %+v", cfg.Ingest)
			}
			// Unset fields keep their defaults.
			if cfg.Ingest.BatchSize != 50 || cfg.Index.Dims != 512 {
				t.Errorf("partial file lost defaults: %+v %+v", cfg.Ingest, cfg.Index)
			}
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{root: "), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UNLOST_ROOT", "/env/root")
	t.Setenv("UNLOST_INGEST_INTERVAL_SECS", "15")
	t.Setenv("UNLOST_INGEST_BATCH_SIZE", "not-a-number")
	t.Setenv("UNLOST_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Root != "/env/root" || cfg.Ingest.IntervalSecs != 15 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Ingest.BatchSize != 50 {
		t.Errorf("invalid override should be ignored, batch = %d", cfg.Ingest.BatchSize)
	}
	if cfg.Level() != slog.LevelWarn {
		t.Errorf("level = %v", cfg.Level())
	}
}

func TestWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unlost.json")
	if err := os.WriteFile(path, []byte(`{"ingest": {"interval_secs": 10}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond

	var calls, interval atomic.Int64
	w.OnChange(func(cfg *Config) {
		interval.Store(int64(cfg.Ingest.IntervalSecs))
		calls.Add(1)
	})
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	// Writes to siblings are ignored.
	os.WriteFile(filepath.Join(filepath.Dir(path), "other.json"), []byte("{}"), 0o644)
	if err := os.WriteFile(path, []byte(`{"ingest": {"interval_secs": 42}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatal("handler not called")
	}
	if interval.Load() != 42 {
		t.Errorf("interval = %d, want 42", interval.Load())
	}
}
