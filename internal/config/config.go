// ABOUTME: Settings loading with global + project YAML merge and built-in defaults
// ABOUTME: Project settings override global ones; CLI flags are applied by the caller last

package config

import (
	"fmt"
	"maps"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Built-in defaults.
const (
	DefaultTheme          = "InspiredGitHub"
	DefaultLanguage       = "Markdown"
	DefaultRequestTimeout = 30 * time.Second
	DefaultLogLevel       = "info"
)

// Duration is a time.Duration that reads "30s" or a bare number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, raw)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Engine selects the editing core. An empty Command runs the embedded core.
type Engine struct {
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Settings holds the merged configuration.
type Settings struct {
	DefaultTheme    string    `yaml:"default_theme,omitempty"`
	DefaultLanguage string    `yaml:"default_language,omitempty"`
	RequestTimeout  *Duration `yaml:"request_timeout,omitempty"`
	LogLevel        string    `yaml:"log_level,omitempty"`
	ConfigDir       string    `yaml:"config_dir,omitempty"`
	ClientExtrasDir string    `yaml:"client_extras_dir,omitempty"`
	Engine          Engine    `yaml:"engine,omitempty"`

	// Keybindings maps an interactive action name to the keys bound to it.
	Keybindings map[string][]string `yaml:"keybindings,omitempty"`
}

// Defaults returns the built-in settings.
func Defaults() *Settings {
	timeout := Duration(DefaultRequestTimeout)
	return &Settings{
		DefaultTheme:    DefaultTheme,
		DefaultLanguage: DefaultLanguage,
		RequestTimeout:  &timeout,
		LogLevel:        DefaultLogLevel,
	}
}

// Timeout returns the request timeout; zero disables it.
func (s *Settings) Timeout() time.Duration {
	if s.RequestTimeout == nil {
		return DefaultRequestTimeout
	}
	return time.Duration(*s.RequestTimeout)
}

// Load reads and merges defaults, global settings and project settings, in
// that order, and expands ${VAR} references.
func Load(projectRoot string) (*Settings, error) {
	return LoadFiles(GlobalSettingsFile(), ProjectSettingsFile(projectRoot))
}

// LoadFiles merges the given files over the defaults. Missing files are
// skipped.
func LoadFiles(paths ...string) (*Settings, error) {
	merged := Defaults()
	for _, path := range paths {
		s, err := loadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		merged = merge(merged, s)
	}
	ResolveEnvVars(merged)
	return merged, nil
}

// loadFile reads Settings from a YAML file. Returns zero Settings if the
// file does not exist.
func loadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Settings{}, err
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}

// merge overlays non-zero values of over onto base.
func merge(base, over *Settings) *Settings {
	if base == nil {
		base = &Settings{}
	}
	if over == nil {
		return base
	}

	result := *base

	if over.DefaultTheme != "" {
		result.DefaultTheme = over.DefaultTheme
	}
	if over.DefaultLanguage != "" {
		result.DefaultLanguage = over.DefaultLanguage
	}
	if over.RequestTimeout != nil {
		result.RequestTimeout = over.RequestTimeout
	}
	if over.LogLevel != "" {
		result.LogLevel = over.LogLevel
	}
	if over.ConfigDir != "" {
		result.ConfigDir = over.ConfigDir
	}
	if over.ClientExtrasDir != "" {
		result.ClientExtrasDir = over.ClientExtrasDir
	}
	if over.Engine.Command != "" {
		result.Engine.Command = over.Engine.Command
		result.Engine.Args = over.Engine.Args
	}

	if len(over.Engine.Env) > 0 {
		env := make(map[string]string, len(base.Engine.Env)+len(over.Engine.Env))
		for k, v := range base.Engine.Env {
			env[k] = v
		}
		for k, v := range over.Engine.Env {
			env[k] = v
		}
		result.Engine.Env = env
	}

	if len(over.Keybindings) > 0 {
		keys := maps.Clone(base.Keybindings)
		if keys == nil {
			keys = make(map[string][]string, len(over.Keybindings))
		}
		maps.Copy(keys, over.Keybindings)
		result.Keybindings = keys
	}

	return &result
}
