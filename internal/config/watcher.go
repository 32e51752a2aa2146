// ABOUTME: fsnotify-based settings watcher for hot reload
// ABOUTME: Watches parent directories so editor rename-on-save is seen; bursts are debounced

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mauromedda/print-go/internal/log"
)

var logger = log.Named("config")

// Watcher calls onChange after any of the watched files is written,
// created, renamed or removed.
type Watcher struct {
	paths    map[string]bool
	onChange func()

	mu       sync.Mutex
	debounce time.Duration
	timer    *time.Timer
	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for paths. Nothing is watched until Start.
func NewWatcher(paths []string, onChange func()) *Watcher {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[filepath.Clean(p)] = true
	}
	return &Watcher{
		paths:    set,
		onChange: onChange,
		debounce: 100 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// SetDebounce overrides the default debounce window (100ms).
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start begins watching. Directories that do not exist are skipped.
// Calling Start twice is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	dirs := make(map[string]bool)
	for p := range w.paths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			logger.Debug("not watching %s: %v", dir, err)
			continue
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	w.fsw = fsw
	go w.loop(fsw)
	return nil
}

// Run starts the watcher and blocks until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// Stop halts the watcher. Safe to call multiple times and concurrently.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		fsw := w.fsw
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		if fsw != nil {
			_ = fsw.Close()
			<-w.doneCh
		}
	})
}

func (w *Watcher) loop(fsw *fsnotify.Watcher) {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.paths[filepath.Clean(ev.Name)] {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				logger.Debug("settings event: %s", ev)
				w.schedule()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("settings watcher: %v", err)
		}
	}
}

// schedule fires onChange once per burst of events.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.onChange()
	})
}
