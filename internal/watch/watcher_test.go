package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestIsRelevant(t *testing.T) {
	cases := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "/m/layout.yaml", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/m/layout.YML", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/m/layout.go", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "/m/layout.yaml", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/m/README.md", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/m/.layout.yaml.swp", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/m/.hidden.yaml", Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		if got := IsRelevant(tc.event); got != tc.want {
			t.Fatalf("IsRelevant(%v) = %v, want %v", tc.event, got, tc.want)
		}
	}
}

func TestWatcherSignalsOnManifestWrite(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Dir: dir, DebounceDur: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	changes, err := w.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(filepath.Join(dir, "layout.yaml"), []byte("id: x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatalf("no change signal after writing a manifest")
	}
}

func TestStartFailsForMissingDir(t *testing.T) {
	w, err := New(DefaultConfig(filepath.Join(t.TempDir(), "missing")))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()
	if _, err := w.Start(); err == nil {
		t.Fatalf("expected start to fail for a missing directory")
	}
}
