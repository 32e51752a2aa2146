// ABOUTME: Standard filesystem paths for print-go settings and state
// ABOUTME: Resolves ~/.print/ for global and .print/ for project-local paths

package config

import (
	"os"
	"path/filepath"
)

const (
	globalDirName  = ".print"
	projectDirName = ".print"
)

// GlobalDir returns the user-global directory (~/.print/).
func GlobalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", globalDirName)
	}
	return filepath.Join(home, globalDirName)
}

// ProjectDir returns the project-local directory (.print/ under projectRoot).
func ProjectDir(projectRoot string) string {
	return filepath.Join(projectRoot, projectDirName)
}

// GlobalSettingsFile returns the path to the user settings file.
func GlobalSettingsFile() string {
	return filepath.Join(GlobalDir(), "settings.yaml")
}

// ProjectSettingsFile returns the path to the project settings file.
func ProjectSettingsFile(projectRoot string) string {
	return filepath.Join(ProjectDir(projectRoot), "settings.yaml")
}

// StateFile returns the path of the persisted application state.
func StateFile() string {
	return filepath.Join(GlobalDir(), "print.json")
}

// EnsureDir creates a directory and all parents if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
