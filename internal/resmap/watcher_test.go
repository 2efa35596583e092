package resmap

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherRebuildsOnNewModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Existing.lua"), "-- @provides Existing\n")

	cfg := testConfig(root)

	rebuilt := make(chan *ResourceMap, 4)
	w, err := NewWatcher(cfg, func(m *ResourceMap) { rebuilt <- m })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(root, "Fresh.lua"), "-- @provides Fresh\n")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case m := <-rebuilt:
			if _, ok := m.ModulePath("Fresh"); ok {
				return // rebuilt map picked up the new module
			}
		case <-deadline:
			t.Fatal("Timed out waiting for rescan")
		}
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)

	rebuilt := make(chan *ResourceMap, 1)
	w, err := NewWatcher(cfg, func(m *ResourceMap) { rebuilt <- m })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(root, "notes.txt"), "not a module\n")

	select {
	case <-rebuilt:
		t.Fatal("Non-source files must not trigger a rescan")
	case <-time.After(500 * time.Millisecond):
	}
}
