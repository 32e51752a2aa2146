// ABOUTME: Persisted application state (title, workspace, last file and directories) as JSON
// ABOUTME: Load treats a corrupt file as absent and deletes it; Save writes a temp file then renames

package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mauromedda/print-go/internal/log"
)

var logger = log.Named("workspace")

// Workspace is the open project.
type Workspace struct {
	Project     string `json:"project"`
	Dir         string `json:"dir,omitempty"`
	CurrentFile string `json:"current_file,omitempty"`
}

// RelativePath renders the current file relative to the project directory
// as "project > a > b". Files outside the project yield the project name;
// without a project it is the file's base name.
func (w Workspace) RelativePath() string {
	if w.CurrentFile == "" {
		return w.Project
	}
	if w.Dir == "" {
		return filepath.Base(w.CurrentFile)
	}
	rel, err := filepath.Rel(w.Dir, w.CurrentFile)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return w.Project
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return w.Project + " > " + strings.Join(parts, " > ")
}

// Params holds display toggles.
type Params struct {
	DebugLayout bool `json:"debug_layout"`
}

// State is what survives restarts.
type State struct {
	Title       string    `json:"title"`
	Workspace   Workspace `json:"workspace"`
	Params      Params    `json:"params"`
	CurrentFile string    `json:"current_file,omitempty"`
	CurrentDir  string    `json:"current_dir,omitempty"`
	LastDir     string    `json:"last_dir,omitempty"`
}

// Load reads the state at path. A missing file yields the zero state. A
// file that does not parse is deleted and the zero state returned.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		logger.Warn("corrupt state file %s, removing: %v", path, err)
		if rmErr := os.Remove(path); rmErr != nil {
			logger.Warn("removing %s: %v", path, rmErr)
		}
		return &State{}, nil
	}
	return &s, nil
}

// Save writes s to path. The workspace is rebuilt from the paths on the
// next start, so it is stored empty.
func Save(path string, s *State) error {
	persisted := *s
	persisted.Workspace = Workspace{}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".print-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing state: %w", err)
	}
	logger.Debug("saved state to %s", path)
	return nil
}
