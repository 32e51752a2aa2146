// ABOUTME: Tests for settings loading, YAML parsing, and merging
// ABOUTME: Uses temp directories for isolated file-based tests

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	s := Defaults()
	if s.DefaultTheme != "InspiredGitHub" || s.DefaultLanguage != "Markdown" {
		t.Errorf("defaults = %+v", s)
	}
	if s.Timeout() != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", s.Timeout())
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	base := &Settings{DefaultTheme: "dark", LogLevel: "info"}
	over := &Settings{DefaultTheme: "light"}

	result := merge(base, over)

	if result.DefaultTheme != "light" {
		t.Errorf("DefaultTheme = %q, want %q", result.DefaultTheme, "light")
	}
	if result.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", result.LogLevel, "info")
	}
}

func TestMerge_Nil(t *testing.T) {
	t.Parallel()

	if merge(nil, nil) == nil {
		t.Fatal("merge(nil, nil) should return non-nil")
	}
}

func TestMerge_EngineEnv(t *testing.T) {
	t.Parallel()

	base := &Settings{Engine: Engine{Env: map[string]string{"A": "1", "B": "2"}}}
	over := &Settings{Engine: Engine{Env: map[string]string{"B": "override", "C": "3"}}}

	result := merge(base, over)

	if result.Engine.Env["A"] != "1" || result.Engine.Env["B"] != "override" || result.Engine.Env["C"] != "3" {
		t.Errorf("Env = %v", result.Engine.Env)
	}
	if base.Engine.Env["B"] != "2" {
		t.Error("merge must not modify base")
	}
}

func TestMerge_EngineCommandCarriesArgs(t *testing.T) {
	t.Parallel()

	base := &Settings{Engine: Engine{Command: "xi-core", Args: []string{"-v"}}}
	over := &Settings{Engine: Engine{Command: "other"}}

	result := merge(base, over)
	if result.Engine.Command != "other" || len(result.Engine.Args) != 0 {
		t.Errorf("Engine = %+v", result.Engine)
	}
}

func TestLoadFiles_KeybindingsMergePerAction(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global.yaml")
	project := filepath.Join(dir, "project.yaml")
	writeFile(t, global, "keybindings:\n  quit: [ctrl+q]\n  help: [f1]\n")
	writeFile(t, project, "keybindings:\n  help: [h]\n")

	s, err := LoadFiles(global, project)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Keybindings["quit"]; len(got) != 1 || got[0] != "ctrl+q" {
		t.Errorf("quit = %v, want [ctrl+q]", got)
	}
	if got := s.Keybindings["help"]; len(got) != 1 || got[0] != "h" {
		t.Errorf("help = %v, want project override [h]", got)
	}
}

func TestLoadFile_NotExist(t *testing.T) {
	t.Parallel()

	s, err := loadFile("/nonexistent/path/settings.yaml")
	if !os.IsNotExist(err) {
		t.Errorf("expected not exist error, got %v", err)
	}
	if s == nil {
		t.Error("expected non-nil default settings")
	}
}

func TestLoadFile_ValidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, `
default_theme: Solarized (dark)
request_timeout: 5s
engine:
  command: xi-core
  args: ["--verbose"]
`)

	s, err := loadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.DefaultTheme != "Solarized (dark)" {
		t.Errorf("DefaultTheme = %q", s.DefaultTheme)
	}
	if s.Timeout() != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", s.Timeout())
	}
	if s.Engine.Command != "xi-core" || len(s.Engine.Args) != 1 {
		t.Errorf("Engine = %+v", s.Engine)
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "go duration", input: "request_timeout: 1m30s", want: 90 * time.Second},
		{name: "bare seconds", input: "request_timeout: 10", want: 10 * time.Second},
		{name: "zero disables", input: "request_timeout: 0", want: 0},
		{name: "garbage", input: "request_timeout: soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "settings.yaml")
			writeFile(t, path, tt.input)

			s, err := loadFile(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if s.Timeout() != tt.want {
				t.Errorf("Timeout() = %v, want %v", s.Timeout(), tt.want)
			}
		})
	}
}

func TestLoadFiles_ProjectOverridesGlobal(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global", "settings.yaml")
	project := filepath.Join(dir, "project", ".print", "settings.yaml")
	writeFile(t, global, "default_theme: dark\ndefault_language: Go\n")
	writeFile(t, project, "default_theme: light\n")

	s, err := LoadFiles(global, project, filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if s.DefaultTheme != "light" || s.DefaultLanguage != "Go" {
		t.Errorf("settings = %+v", s)
	}
	if s.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want default", s.LogLevel)
	}
}

func TestLoadFiles_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, "default_theme: [unclosed\n")

	_, err := LoadFiles(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("err = %v; want parse error naming %s", err, path)
	}
}

func TestLoad_UsesProjectDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()
	writeFile(t, ProjectSettingsFile(root), "log_level: debug\n")

	s, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if s.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", s.LogLevel)
	}
}

func TestPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := GlobalSettingsFile(); got != filepath.Join(home, ".print", "settings.yaml") {
		t.Errorf("GlobalSettingsFile() = %q", got)
	}
	if got := StateFile(); got != filepath.Join(home, ".print", "print.json") {
		t.Errorf("StateFile() = %q", got)
	}
	if got := ProjectSettingsFile("/p"); got != filepath.Join("/p", ".print", "settings.yaml") {
		t.Errorf("ProjectSettingsFile() = %q", got)
	}
}
