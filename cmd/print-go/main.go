// ABOUTME: CLI entry point for print-go: starts the engine, dispatcher and the selected mode
// ABOUTME: Runs dispatcher, UI and settings watcher in one errgroup; shuts the engine down on exit

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	// termfix must be imported before any package that imports bubbletea.
	_ "github.com/mauromedda/print-go/internal/termfix"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/mauromedda/print-go/internal/config"
	"github.com/mauromedda/print-go/internal/core"
	"github.com/mauromedda/print-go/internal/dispatch"
	"github.com/mauromedda/print-go/internal/engine"
	pilog "github.com/mauromedda/print-go/internal/log"
	"github.com/mauromedda/print-go/internal/mode/interactive"
	"github.com/mauromedda/print-go/internal/mode/print"
	"github.com/mauromedda/print-go/internal/rpc"
	"github.com/mauromedda/print-go/internal/workspace"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	args, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if args.version {
		fmt.Printf("print-go %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, args)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run loads settings, starts the engine and dispatches to the selected mode.
func run(ctx context.Context, args cliArgs) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	settings, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	args.apply(settings)
	pilog.SetLevel(pilog.ParseLevel(settings.LogLevel))

	interactiveMode := !args.print && isTerminal()
	if !args.print && !interactiveMode {
		if args.file == "" {
			return fmt.Errorf("not a terminal: pass FILE to print it")
		}
		pilog.Debug("stdin/stderr is not a terminal; using print mode")
	}
	if interactiveMode {
		closeLog, err := logToFile()
		if err != nil {
			return err
		}
		defer closeLog()
	}

	client, opsCh, err := rpc.New(ctx, engineRunner(settings), rpc.WithRequestTimeout(settings.Timeout()))
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer shutdown(client)

	d := dispatch.New(client, dispatch.Options{
		Theme:    settings.DefaultTheme,
		Language: settings.DefaultLanguage,
	})

	statePath := ""
	state := &workspace.State{}
	if interactiveMode {
		statePath = config.StateFile()
		if state, err = workspace.Load(statePath); err != nil {
			pilog.Warn("loading state: %v", err)
			state = &workspace.State{}
		}
	}
	ws := workspace.NewManager(statePath, state, client, d)

	configDir, extrasDir := optional(settings.ConfigDir), optional(settings.ClientExtrasDir)

	g, gctx := errgroup.WithContext(ctx)
	uiCtx, cancelUI := context.WithCancel(gctx)
	defer cancelUI()

	g.Go(func() error {
		defer client.ReleaseOperations()
		err := d.Run(uiCtx, opsCh)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	watcher := config.NewWatcher(
		[]string{config.GlobalSettingsFile(), config.ProjectSettingsFile(cwd)},
		func() { reloadSettings(cwd, args, d) },
	)
	g.Go(func() error { return watcher.Run(uiCtx) })

	g.Go(func() error {
		defer cancelUI()
		if interactiveMode {
			return interactive.Run(uiCtx, interactive.Config{
				ConfigDir:       configDir,
				ClientExtrasDir: extrasDir,
				Restore:         !args.noRestore,
				Keys:            settings.Keybindings,
			}, interactive.Deps{Client: client, Dispatcher: d, Workspace: ws}, args.file)
		}
		return print.Run(uiCtx, print.Config{
			OutputFormat:    args.format,
			Out:             os.Stdout,
			ConfigDir:       configDir,
			ClientExtrasDir: extrasDir,
		}, print.Deps{Client: client, Dispatcher: d, Workspace: ws}, args.file)
	})

	return g.Wait()
}

// engineRunner picks the external engine when one is configured.
func engineRunner(s *config.Settings) engine.Runner {
	if s.Engine.Command == "" {
		return core.New()
	}
	var env []string
	if len(s.Engine.Env) > 0 {
		env = os.Environ()
		for k, v := range s.Engine.Env {
			env = append(env, k+"="+v)
		}
	}
	return engine.Exec{Command: s.Engine.Command, Args: s.Engine.Args, Env: env}
}

// shutdown sends the exit sentinel and waits for the engine to go away.
func shutdown(client *rpc.Client) {
	if client.State() == rpc.StateRunning {
		if err := client.Exit(); err != nil {
			pilog.Debug("sending exit: %v", err)
		}
	}
	if err := client.Close(); err != nil {
		pilog.Debug("closing client: %v", err)
	}
}

// reloadSettings re-reads the settings files and pushes new defaults into
// the dispatcher. CLI flags still win.
func reloadSettings(cwd string, args cliArgs, d *dispatch.Dispatcher) {
	s, err := config.Load(cwd)
	if err != nil {
		pilog.Warn("reloading settings: %v", err)
		return
	}
	args.apply(s)
	pilog.SetLevel(pilog.ParseLevel(s.LogLevel))
	if err := d.SetDefaults(s.DefaultTheme, s.DefaultLanguage); err != nil {
		pilog.Warn("applying settings: %v", err)
	}
	pilog.Info("settings reloaded")
}

// logToFile sends log output to ~/.print/print.log so it does not draw over
// the terminal UI.
func logToFile() (func(), error) {
	dir := config.GlobalDir()
	if err := config.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "print.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	pilog.SetOutput(f)
	return func() {
		pilog.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
