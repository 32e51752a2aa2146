// ABOUTME: Leveled logging over slog levels for the client, engine and dispatcher
// ABOUTME: Global level via SetLevel; writes to stderr (or SetOutput) to stay out of the TUI

package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level constants matching slog levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	level atomic.Int64

	outMu sync.Mutex
	out   io.Writer = os.Stderr
)

func init() {
	level.Store(int64(LevelInfo))
}

// SetLevel sets the global log level.
func SetLevel(l slog.Level) {
	level.Store(int64(l))
}

// GetLevel returns the current log level.
func GetLevel() slog.Level {
	return slog.Level(level.Load())
}

// ParseLevel maps a settings string ("debug", "info", "warn", "error") to a level.
// Unknown or empty strings map to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetOutput redirects log output. Passing nil restores stderr.
// The interactive mode points this at a file so log lines never tear the screen.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
}

func emit(l slog.Level, tag, prefix, format string, args ...any) {
	if l < LevelError && slog.Level(level.Load()) > l {
		return
	}
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintf(out, "["+tag+"] "+prefix+format+"\n", args...)
}

// Debug logs a debug message if the level allows it.
func Debug(format string, args ...any) { emit(LevelDebug, "DEBUG", "", format, args...) }

// Info logs an info message if the level allows it.
func Info(format string, args ...any) { emit(LevelInfo, "INFO", "", format, args...) }

// Warn logs a warning message if the level allows it.
func Warn(format string, args ...any) { emit(LevelWarn, "WARN", "", format, args...) }

// Error logs an error message (always emitted).
func Error(format string, args ...any) { emit(LevelError, "ERROR", "", format, args...) }

// Logger prefixes every line with a component name, e.g. "[DEBUG] rpc: ...".
type Logger struct {
	prefix string
}

// Named returns a Logger for the given component.
func Named(component string) Logger {
	return Logger{prefix: component + ": "}
}

func (l Logger) Debug(format string, args ...any) { emit(LevelDebug, "DEBUG", l.prefix, format, args...) }
func (l Logger) Info(format string, args ...any)  { emit(LevelInfo, "INFO", l.prefix, format, args...) }
func (l Logger) Warn(format string, args ...any)  { emit(LevelWarn, "WARN", l.prefix, format, args...) }
func (l Logger) Error(format string, args ...any) { emit(LevelError, "ERROR", l.prefix, format, args...) }
