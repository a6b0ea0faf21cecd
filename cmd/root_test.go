package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/unlost/internal/config"
)

func TestIngestConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Ingest.IntervalSecs = 30
	cfg.Ingest.ViewerGraceSecs = 90
	cfg.Ingest.ContinuationMs = 250
	cfg.Ingest.Schedule = "*/5 * * * *"

	got := ingestConfig(cfg)
	if got.Interval != 30*time.Second || got.ViewerGrace != 90*time.Second || got.ContinuationGap != 250*time.Millisecond {
		t.Errorf("durations = %+v", got)
	}
	if got.Schedule != "*/5 * * * *" || got.BatchSize != 50 || got.MinBatch != 5 {
		t.Errorf("mapping = %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"short":            "****",
		"Bearer abcdefgh1": "Bear****fgh1",
	}
	for in, want := range tests {
		if got := mask(in); got != want {
			t.Errorf("mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPIDRoundTrip(t *testing.T) {
	root := t.TempDir()
	if _, err := readPID(root); err == nil {
		t.Fatal("expected error without pid file")
	}
	if err := writePID(root); err != nil {
		t.Fatal(err)
	}
	if _, err := readPID(root); err != nil {
		t.Errorf("readPID: %v", err)
	}
	if filepath.Base(pidPath(root)) != "unlost.pid" {
		t.Errorf("pid path = %s", pidPath(root))
	}
}

func TestOpenServicesRequiresRoot(t *testing.T) {
	t.Setenv("UNLOST_ROOT", "")
	cfgFile = filepath.Join(t.TempDir(), "absent.json5")
	rootFlag = ""
	defer func() { cfgFile = "" }()

	if _, err := openRuntime(); err == nil {
		t.Fatal("expected error without a storage root")
	}
}
