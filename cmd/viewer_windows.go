//go:build windows

package cmd

import (
	"errors"

	"github.com/nextlevelbuilder/unlost/internal/state"
)

func viewerSignals(*state.App) (stop func()) { return func() {} }

func notifyViewer(int, bool) error {
	return errors.New("viewer pings are not supported on windows")
}
