// ABOUTME: Manager switches the open file and directory and saves state after every switch
// ABOUTME: Files are opened as engine views and focused in the dispatcher

package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Opener opens and closes engine views. *rpc.Client satisfies it.
type Opener interface {
	NewView(ctx context.Context, filePath string) (string, error)
	CloseView(viewID string) error
}

// Focuser tracks which view receives feedback. *dispatch.Dispatcher
// satisfies it.
type Focuser interface {
	Focus(viewID string) error
	Forget(viewID string)
}

// Manager owns the State and the currently open view.
type Manager struct {
	path   string
	opener Opener
	focus  Focuser

	mu     sync.Mutex
	state  State
	viewID string
}

// NewManager wraps state, persisting it to statePath.
func NewManager(statePath string, state *State, opener Opener, focus Focuser) *Manager {
	if state == nil {
		state = &State{}
	}
	return &Manager{path: statePath, opener: opener, focus: focus, state: *state}
}

// SetFile opens path as a view, focuses it, closes the previous view, and
// saves the state.
func (m *Manager) SetFile(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("opening %s: is a directory", path)
	}

	viewID, err := m.opener.NewView(ctx, abs)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	if err := m.focus.Focus(viewID); err != nil {
		logger.Warn("focusing %s: %v", viewID, err)
	}

	m.mu.Lock()
	prev := m.viewID
	m.viewID = viewID
	m.state.CurrentFile = abs
	m.state.Workspace.CurrentFile = abs
	m.state.Title = filepath.Base(abs)
	m.mu.Unlock()

	if prev != "" && prev != viewID {
		m.focus.Forget(prev)
		if err := m.opener.CloseView(prev); err != nil {
			logger.Warn("closing %s: %v", prev, err)
		}
	}
	logger.Info("open file: %s", abs)
	m.save()
	return viewID, nil
}

// SetDir makes path the project directory and saves the state.
func (m *Manager) SetDir(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("opening %s: not a directory", path)
	}

	m.mu.Lock()
	m.state.Workspace.Project = filepath.Base(abs)
	m.state.Workspace.Dir = abs
	m.state.LastDir = m.state.CurrentDir
	m.state.CurrentDir = abs
	m.mu.Unlock()

	logger.Info("open dir: %s", abs)
	m.save()
	return nil
}

// Restore reopens the directory and file recorded in the state. Entries
// that no longer exist are dropped.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	dir, file := m.state.CurrentDir, m.state.CurrentFile
	m.mu.Unlock()

	var errs []error
	if dir != "" {
		if err := m.SetDir(dir); err != nil {
			m.mu.Lock()
			m.state.CurrentDir = ""
			m.mu.Unlock()
			errs = append(errs, err)
		}
	}
	if file != "" {
		if _, err := m.SetFile(ctx, file); err != nil {
			m.mu.Lock()
			m.state.CurrentFile = ""
			m.mu.Unlock()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RelativePath renders the current file as "project > a > b".
func (m *Manager) RelativePath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Workspace.RelativePath()
}

// ViewID returns the open view, or "".
func (m *Manager) ViewID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewID
}

// State returns a copy of the state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) save() {
	if m.path == "" {
		return
	}
	m.mu.Lock()
	s := m.state
	m.mu.Unlock()
	if err := Save(m.path, &s); err != nil {
		logger.Warn("saving state: %v", err)
	}
}
