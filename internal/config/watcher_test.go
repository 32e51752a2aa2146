// ABOUTME: Tests for the fsnotify settings watcher
// ABOUTME: Validates change detection, debouncing, unrelated files, and stop behavior

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitForCalls(t *testing.T, called *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if called.Load() >= want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("onChange called %d times; want at least %d", called.Load(), want)
}

func TestWatcher_DetectsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var called atomic.Int32
	w := NewWatcher([]string{path}, func() { called.Add(1) })
	w.SetDebounce(20 * time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	waitForCalls(t, &called, 1)
}

func TestWatcher_DetectsCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	var called atomic.Int32
	w := NewWatcher([]string{path}, func() { called.Add(1) })
	w.SetDebounce(20 * time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("default_theme: x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	waitForCalls(t, &called, 1)
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	var called atomic.Int32
	w := NewWatcher([]string{path}, func() { called.Add(1) })
	w.SetDebounce(300 * time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := range 5 {
		if err := os.WriteFile(path, []byte{byte('a' + i)}, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	waitForCalls(t, &called, 1)
	time.Sleep(400 * time.Millisecond)
	if n := called.Load(); n != 1 {
		t.Errorf("onChange called %d times for one burst; want 1", n)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	var called atomic.Int32
	w := NewWatcher([]string{path}, func() { called.Add(1) })
	w.SetDebounce(10 * time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "print.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if called.Load() != 0 {
		t.Errorf("onChange called %d times for an unrelated file", called.Load())
	}
}

func TestWatcher_MissingDirSkipped(t *testing.T) {
	w := NewWatcher([]string{"/nonexistent/dir/settings.yaml"}, func() {})
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestWatcher_RunStopsWithContext(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "settings.yaml")}, func() {})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
