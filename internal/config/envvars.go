// ABOUTME: Environment variable expansion in settings string fields
// ABOUTME: Replaces ${VAR} patterns with os.Getenv values; unset vars become empty

package config

import (
	"os"
	"regexp"
)

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// ResolveEnvVars expands ${VAR} patterns in path and engine fields.
func ResolveEnvVars(s *Settings) {
	s.ConfigDir = expandEnv(s.ConfigDir)
	s.ClientExtrasDir = expandEnv(s.ClientExtrasDir)
	s.Engine.Command = expandEnv(s.Engine.Command)

	for i, arg := range s.Engine.Args {
		s.Engine.Args[i] = expandEnv(arg)
	}
	for k, v := range s.Engine.Env {
		s.Engine.Env[k] = expandEnv(v)
	}
}

// expandEnv replaces ${VAR} with os.Getenv(VAR). Unset vars become "".
func expandEnv(s string) string {
	if s == "" {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
