package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/unlost/internal/config"
	"github.com/nextlevelbuilder/unlost/internal/ingest"
	"github.com/nextlevelbuilder/unlost/internal/tracing"
)

func serveCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the background ingestion scheduler",
		RunE: withRuntime(func(ctx context.Context, rt *services, args []string) error {
			return runServe(ctx, rt, watch)
		}),
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the config file when it changes")
	return cmd
}

func runServe(ctx context.Context, rt *services, watch bool) error {
	shutdownTracing, err := tracing.Setup(ctx, rt.cfg.Tracing, Version)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown", "error", err)
		}
	}()

	icfg := ingestConfig(rt.cfg)
	if err := icfg.Validate(); err != nil {
		return err
	}
	sched := ingest.New(rt.app, rt.memory, nil, icfg)
	sched.Start()
	defer sched.Stop()

	if watch {
		if w, err := config.NewWatcher(resolveConfigPath()); err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		} else {
			w.OnChange(func(cfg *config.Config) {
				applyLevel(cfg)
				tuneMemory(rt.memory, cfg)
				if err := sched.Update(ingestConfig(cfg)); err != nil {
					slog.Error("rejected ingest config", "error", err)
				}
			})
			if err := w.Start(); err != nil {
				slog.Warn("config watcher not started", "error", err)
			} else {
				defer w.Stop()
			}
		}
	}

	if err := writePID(rt.cfg.Root); err != nil {
		slog.Warn("pid file not written", "error", err)
	}
	defer os.Remove(pidPath(rt.cfg.Root))

	viewer := viewerSignals(rt.app)
	defer viewer()

	sched.Trigger()
	slog.Info("unlost serving", "root", rt.cfg.Root, "version", Version, "state", rt.app.State())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down")
	return nil
}
