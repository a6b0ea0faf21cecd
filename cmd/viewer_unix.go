//go:build !windows

package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nextlevelbuilder/unlost/internal/state"
)

// viewerSignals maps SIGUSR1 to a viewer open and SIGUSR2 to a close.
func viewerSignals(app *state.App) (stop func()) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-ch:
				open := sig == syscall.SIGUSR1
				app.SetClientOpen(open)
				slog.Info("viewer ping", "open", open)
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func notifyViewer(pid int, open bool) error {
	sig := syscall.SIGUSR2
	if open {
		sig = syscall.SIGUSR1
	}
	return syscall.Kill(pid, sig)
}
