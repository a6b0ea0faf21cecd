// Package config loads the server configuration from a JSON5 or YAML file,
// applies defaults and UNLOST_* environment overrides, and watches the file
// for changes.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	// Root is the storage root holding the capture database, the content
	// store and the logs. Empty means not configured.
	Root     string          `json:"root" yaml:"root"`
	LogLevel string          `json:"log_level" yaml:"log_level"`
	Ingest   IngestConfig    `json:"ingest" yaml:"ingest"`
	Search   SearchConfig    `json:"search" yaml:"search"`
	Index    IndexConfig     `json:"index" yaml:"index"`
	Tracing  TelemetryConfig `json:"tracing" yaml:"tracing"`
}

// IngestConfig tunes the ingestion scheduler.
type IngestConfig struct {
	IntervalSecs    int    `json:"interval_secs" yaml:"interval_secs"`
	Schedule        string `json:"schedule,omitempty" yaml:"schedule,omitempty"` // cron expression, overrides the interval
	BatchSize       int    `json:"batch_size" yaml:"batch_size"`
	MinBatch        int    `json:"min_batch" yaml:"min_batch"`
	MaxChained      int    `json:"max_chained" yaml:"max_chained"`
	ViewerGraceSecs int    `json:"viewer_grace_secs" yaml:"viewer_grace_secs"`
	ContinuationMs  int    `json:"continuation_ms,omitempty" yaml:"continuation_ms,omitempty"`
}

// SearchConfig tunes memory search.
type SearchConfig struct {
	MinScore   float64 `json:"min_score" yaml:"min_score"`
	Limit      int     `json:"limit" yaml:"limit"`
	Candidates int     `json:"candidates" yaml:"candidates"`
}

// IndexConfig configures the in-process similarity index.
type IndexConfig struct {
	Dims      int `json:"dims" yaml:"dims"`
	CacheSize int `json:"cache_size" yaml:"cache_size"`
}

// TelemetryConfig configures OTLP trace export. Tracing is off unless
// Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty" yaml:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			IntervalSecs:    60,
			BatchSize:       50,
			MinBatch:        5,
			MaxChained:      1000,
			ViewerGraceSecs: 60,
		},
		Search: SearchConfig{MinScore: 0.25, Limit: 160, Candidates: 1000},
		Index:  IndexConfig{Dims: 512, CacheSize: 256},
		Tracing: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "unlost",
		},
	}
}

// Load reads path, parsing YAML for .yaml/.yml and JSON5 otherwise. A
// missing file yields the defaults. Environment overrides apply in both
// cases.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json5.Unmarshal(data, cfg)
	}
}

// applyEnv overlays UNLOST_* variables.
func (c *Config) applyEnv() {
	envStr("UNLOST_ROOT", &c.Root)
	envStr("UNLOST_LOG_LEVEL", &c.LogLevel)
	envInt("UNLOST_INGEST_INTERVAL_SECS", &c.Ingest.IntervalSecs)
	envStr("UNLOST_INGEST_SCHEDULE", &c.Ingest.Schedule)
	envInt("UNLOST_INGEST_BATCH_SIZE", &c.Ingest.BatchSize)
	envStr("UNLOST_OTEL_ENDPOINT", &c.Tracing.Endpoint)
	envStr("UNLOST_OTEL_PROTOCOL", &c.Tracing.Protocol)
}

func envStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid integer env override", "key", key, "value", v)
		return
	}
	*dst = n
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Ingest.IntervalSecs <= 0 {
		c.Ingest.IntervalSecs = d.Ingest.IntervalSecs
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = d.Ingest.BatchSize
	}
	if c.Ingest.MinBatch <= 0 {
		c.Ingest.MinBatch = d.Ingest.MinBatch
	}
	if c.Ingest.MaxChained <= 0 {
		c.Ingest.MaxChained = d.Ingest.MaxChained
	}
	if c.Ingest.ViewerGraceSecs <= 0 {
		c.Ingest.ViewerGraceSecs = d.Ingest.ViewerGraceSecs
	}
	if c.Search.MinScore <= 0 {
		c.Search.MinScore = d.Search.MinScore
	}
	if c.Search.Limit <= 0 {
		c.Search.Limit = d.Search.Limit
	}
	if c.Search.Candidates <= 0 {
		c.Search.Candidates = d.Search.Candidates
	}
	if c.Index.Dims <= 0 {
		c.Index.Dims = d.Index.Dims
	}
	if c.Index.CacheSize <= 0 {
		c.Index.CacheSize = d.Index.CacheSize
	}
	if c.Tracing.Protocol == "" {
		c.Tracing.Protocol = d.Tracing.Protocol
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = d.Tracing.ServiceName
	}
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Interval is the timed pass interval.
func (c IngestConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSecs) * time.Second
}

// ViewerGrace is how long a viewer open event defers ingestion.
func (c IngestConfig) ViewerGrace() time.Duration {
	return time.Duration(c.ViewerGraceSecs) * time.Second
}

// ContinuationGap is the minimum spacing between chained passes.
func (c IngestConfig) ContinuationGap() time.Duration {
	return time.Duration(c.ContinuationMs) * time.Millisecond
}
