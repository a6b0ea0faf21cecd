package state

import (
	"testing"
	"time"
)

func TestState(t *testing.T) {
	app, err := Open("", Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if app.State() != StateRunning {
		t.Errorf("State = %q", app.State())
	}
	app.SetDeleting(true)
	if app.State() != StateDeleting {
		t.Errorf("State = %q, want deleting", app.State())
	}
	app.SetMigration("v2")
	if app.State() != StateMigrating || app.Migration() != "v2" {
		t.Errorf("State = %q, migration %q", app.State(), app.Migration())
	}
	app.SetMigration("")
	app.SetDeleting(false)
	if app.State() != StateRunning {
		t.Errorf("State = %q after clearing flags", app.State())
	}
}

func TestClientOpen(t *testing.T) {
	app, _ := Open("", Options{})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	app.Now = func() time.Time { return now }

	if open, _ := app.ClientOpen(); open {
		t.Fatal("client open before any ping")
	}

	app.SetClientOpen(true)
	now = now.Add(30 * time.Second)
	open, since := app.ClientOpen()
	if !open || since != 30*time.Second {
		t.Errorf("ClientOpen = %v, %v", open, since)
	}

	app.SetClientOpen(false)
	if open, _ := app.ClientOpen(); open {
		t.Error("client still open after close")
	}
}

func TestOpenRoot(t *testing.T) {
	root := t.TempDir()
	app, err := Open(root, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer app.Close()

	if app.Capture == nil || app.Content == nil || app.Index == nil {
		t.Fatal("stores not opened")
	}
	if !app.Index.Ready() {
		t.Error("index not ready after Open")
	}
	if app.Content.Path() != ContentPath(root) {
		t.Errorf("content path = %q", app.Content.Path())
	}
}
