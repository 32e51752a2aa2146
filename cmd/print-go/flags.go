// ABOUTME: CLI flag parsing using stdlib flag package
// ABOUTME: Supports --print, --format, --engine, --theme, --language, --timeout, --log-level, --no-restore

package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mauromedda/print-go/internal/config"
)

type cliArgs struct {
	print      bool
	format     string
	engine     string
	theme      string
	language   string
	timeout    time.Duration
	timeoutSet bool
	logLevel   string
	configDir  string
	extrasDir  string
	noRestore  bool
	version    bool
	file       string
}

// parseFlags parses argv (without the program name). At most one
// positional FILE is accepted.
func parseFlags(argv []string, stderr io.Writer) (cliArgs, error) {
	var args cliArgs
	fs := flag.NewFlagSet("print-go", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: print-go [flags] [FILE]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	fs.BoolVar(&args.print, "print", false, "Non-interactive: print FILE through the engine and exit")
	fs.StringVar(&args.format, "format", "text", "Print mode output format: text or json")
	fs.StringVar(&args.engine, "engine", "", "External engine command (default: embedded core)")
	fs.StringVar(&args.theme, "theme", "", "Theme requested when the engine lists its themes")
	fs.StringVar(&args.language, "language", "", "Language requested when the engine lists its languages")
	fs.DurationVar(&args.timeout, "timeout", 0, "Request timeout (0 disables; default from settings)")
	fs.StringVar(&args.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&args.configDir, "config-dir", "", "Engine config directory sent with client_started")
	fs.StringVar(&args.extrasDir, "extras-dir", "", "Client extras directory sent with client_started")
	fs.BoolVar(&args.noRestore, "no-restore", false, "Do not reopen the last file")
	fs.BoolVar(&args.version, "version", false, "Show version and exit")

	if err := fs.Parse(argv); err != nil {
		return cliArgs{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "timeout" {
			args.timeoutSet = true
		}
	})

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		args.file = rest[0]
	default:
		return cliArgs{}, fmt.Errorf("expected at most one file, got %d: %s", len(rest), strings.Join(rest, " "))
	}

	if args.print && args.file == "" && !args.version {
		return cliArgs{}, fmt.Errorf("--print needs a FILE")
	}
	switch args.format {
	case "text", "json":
	default:
		return cliArgs{}, fmt.Errorf("unknown --format %q (want text or json)", args.format)
	}
	return args, nil
}

// apply overlays the flags that were given onto settings.
func (a cliArgs) apply(s *config.Settings) {
	if a.theme != "" {
		s.DefaultTheme = a.theme
	}
	if a.language != "" {
		s.DefaultLanguage = a.language
	}
	if a.timeoutSet {
		d := config.Duration(a.timeout)
		s.RequestTimeout = &d
	}
	if a.logLevel != "" {
		s.LogLevel = a.logLevel
	}
	if a.configDir != "" {
		s.ConfigDir = a.configDir
	}
	if a.extrasDir != "" {
		s.ClientExtrasDir = a.extrasDir
	}
	if fields := strings.Fields(a.engine); len(fields) > 0 {
		s.Engine.Command = fields[0]
		s.Engine.Args = fields[1:]
	}
}
