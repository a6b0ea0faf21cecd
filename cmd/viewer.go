package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func pidPath(root string) string { return filepath.Join(root, "unlost.pid") }

func writePID(root string) error {
	return os.WriteFile(pidPath(root), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPID(root string) (int, error) {
	data, err := os.ReadFile(pidPath(root))
	if err != nil {
		return 0, fmt.Errorf("server not running under %s: %w", root, err)
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// pingCmd forwards viewer open/close events to the running server, which
// defers ingestion while a viewer is open.
func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "ping [open|closed]",
		Short:     "Report the viewer as opened or closed to the running server",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"open", "closed"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Root == "" {
				return fmt.Errorf("storage root not configured")
			}
			var open bool
			switch args[0] {
			case "open", "true", "1":
				open = true
			case "closed", "close", "false", "0":
			default:
				return fmt.Errorf("unknown viewer event %q", args[0])
			}
			pid, err := readPID(cfg.Root)
			if err != nil {
				return err
			}
			if err := notifyViewer(pid, open); err != nil {
				return err
			}
			fmt.Printf("viewer %s reported to pid %d\n", args[0], pid)
			return nil
		},
	}
}
