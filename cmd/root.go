// Package cmd implements the unlost command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/unlost/internal/config"
	"github.com/nextlevelbuilder/unlost/internal/ingest"
	"github.com/nextlevelbuilder/unlost/internal/memory"
	"github.com/nextlevelbuilder/unlost/internal/state"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	cfgFile  string
	rootFlag string
	verbose  bool
)

// logLevel is shared by every handler so hot reload can retune it.
var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:           "unlost",
	Short:         "Screen-capture memory indexer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $UNLOST_CONFIG or ~/.unlost/config.json5)")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "storage root (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(tagsCmd())
	rootCmd.AddCommand(transcriptCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(pruneCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(pingCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("unlost", Version)
		},
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := os.Getenv("UNLOST_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json5"
	}
	return filepath.Join(home, ".unlost", "config.json5")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if rootFlag != "" {
		cfg.Root = rootFlag
	}
	return cfg, nil
}

// setupLogging installs the default logger writing to stderr and, when a
// storage root is configured, to the server log file. The returned closer
// releases the file.
func setupLogging(cfg *config.Config) io.Closer {
	applyLevel(cfg)

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)
	if cfg.Root != "" {
		path := state.LogPath(cfg.Root)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				out = io.MultiWriter(os.Stderr, f)
				closer = f
			}
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel})))
	return closer
}

func applyLevel(cfg *config.Config) {
	if verbose {
		logLevel.Set(slog.LevelDebug)
		return
	}
	logLevel.Set(cfg.Level())
}

// services bundles what most subcommands need.
type services struct {
	cfg    *config.Config
	app    *state.App
	memory *memory.Service
	logs   io.Closer
}

func openRuntime() (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logs := setupLogging(cfg)
	if cfg.Root == "" {
		logs.Close()
		return nil, fmt.Errorf("storage root not configured (set root in %s or pass --root)", resolveConfigPath())
	}

	app, err := state.Open(cfg.Root, state.Options{Dims: cfg.Index.Dims, CacheSize: cfg.Index.CacheSize})
	if err != nil {
		logs.Close()
		return nil, err
	}
	svc := memory.New(app)
	tuneMemory(svc, cfg)
	return &services{cfg: cfg, app: app, memory: svc, logs: logs}, nil
}

func (r *services) Close() {
	if err := r.app.Close(); err != nil {
		slog.Warn("close stores", "error", err)
	}
	r.logs.Close()
}

func tuneMemory(svc *memory.Service, cfg *config.Config) {
	svc.MinScore = cfg.Search.MinScore
	svc.Limit = cfg.Search.Limit
	svc.Candidates = cfg.Search.Candidates
}

func ingestConfig(cfg *config.Config) ingest.Config {
	return ingest.Config{
		Interval:        cfg.Ingest.Interval(),
		Schedule:        cfg.Ingest.Schedule,
		BatchSize:       cfg.Ingest.BatchSize,
		MinBatch:        cfg.Ingest.MinBatch,
		MaxChained:      cfg.Ingest.MaxChained,
		ViewerGrace:     cfg.Ingest.ViewerGrace(),
		ContinuationGap: cfg.Ingest.ContinuationGap(),
	}
}

// withRuntime adapts a RunE body that needs open services.
func withRuntime(fn func(ctx context.Context, rt *services, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(cmd.Context(), rt, args)
	}
}
