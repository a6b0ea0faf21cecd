package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/unlost/internal/capture"
	"github.com/nextlevelbuilder/unlost/internal/config"
	"github.com/nextlevelbuilder/unlost/internal/state"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and storage health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("unlost doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	if err := ingestConfig(cfg).Validate(); err != nil {
		fmt.Printf("  Schedule: %s\n", err)
	}

	fmt.Println()
	fmt.Println("  Storage:")
	if cfg.Root == "" {
		fmt.Println("    root not configured")
		return
	}
	checkPath("Root", cfg.Root)
	checkPath("Captures", filepath.Join(cfg.Root, capture.DBName))
	checkPath("Content", state.ContentPath(cfg.Root))
	checkPath("Index", state.IndexPath(cfg.Root))
	checkPath("Log", state.LogPath(cfg.Root))
	checkServer(cfg)

	fmt.Println()
	fmt.Println("  Tracing:")
	if cfg.Tracing.Endpoint == "" {
		fmt.Println("    disabled")
	} else {
		fmt.Printf("    %s (%s)\n", cfg.Tracing.Endpoint, cfg.Tracing.Protocol)
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkPath(name, path string) {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("    %-10s %s (NOT FOUND)\n", name+":", path)
		return
	}
	if info.IsDir() {
		fmt.Printf("    %-10s %s\n", name+":", path)
		return
	}
	fmt.Printf("    %-10s %s (%d bytes)\n", name+":", path, info.Size())
}

func checkServer(cfg *config.Config) {
	pid, err := readPID(cfg.Root)
	if err != nil {
		fmt.Printf("    %-10s not running\n", "Server:")
		return
	}
	fmt.Printf("    %-10s pid %d\n", "Server:", pid)
}
