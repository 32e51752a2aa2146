// ABOUTME: Entry point for the interactive terminal view
// ABOUTME: Builds the tea.Program and forwards dispatcher and connection events into it

package interactive

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mauromedda/print-go/internal/dispatch"
	"github.com/mauromedda/print-go/internal/keybindings"
	"github.com/mauromedda/print-go/internal/log"
	"github.com/mauromedda/print-go/internal/rpc"
	"github.com/mauromedda/print-go/internal/workspace"
)

var logger = log.Named("interactive")

// Config configures interactive mode.
type Config struct {
	ConfigDir       *string
	ClientExtrasDir *string
	Restore         bool      // reopen the last file and directory when no path is given
	Keys            map[string][]string
	Input           io.Reader // defaults to the terminal
	Output          io.Writer // defaults to os.Stderr
}

// Deps are the running session pieces the view drives.
type Deps struct {
	Client     *rpc.Client
	Dispatcher *dispatch.Dispatcher
	Workspace  *workspace.Manager
}

// session adapts Deps to Backend.
type session struct {
	deps Deps
}

func (s session) Snapshot() dispatch.State { return s.deps.Dispatcher.Snapshot() }

func (s session) ConnState() (rpc.ConnState, error) {
	return s.deps.Client.State(), s.deps.Client.Err()
}

func (s session) RelativePath() string { return s.deps.Workspace.RelativePath() }

func (s session) SetTheme(name string) error { return s.deps.Client.SetTheme(name) }

func (s session) SetLanguage(viewID, languageID string) error {
	return s.deps.Client.SetLanguage(viewID, languageID)
}

func (s session) Open(ctx context.Context, path string) (string, error) {
	return s.deps.Workspace.SetFile(ctx, path)
}

// Run announces the client, opens path when given, and blocks until the
// user quits or ctx ends.
func Run(ctx context.Context, cfg Config, deps Deps, path string) error {
	keys, err := keybindings.New(cfg.Keys)
	if err != nil {
		return fmt.Errorf("keybindings: %w", err)
	}
	for _, c := range keys.Conflicts() {
		logger.Warn("key %q is bound to %v; using %s", c.Key, c.Actions, c.Actions[0])
	}

	if err := deps.Client.ClientStarted(cfg.ConfigDir, cfg.ClientExtrasDir); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	if path == "" && cfg.Restore {
		if err := deps.Workspace.Restore(ctx); err != nil {
			logger.Warn("restoring workspace: %v", err)
		}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}

	m := NewModel(ctx, session{deps: deps}, path).WithKeys(keys)
	p := tea.NewProgram(m, opts...)

	unsubEvents := deps.Dispatcher.Events().Subscribe(func(ev dispatch.Event) {
		p.Send(eventMsg(ev))
	})
	defer unsubEvents()
	unsubConn := deps.Client.Events().Subscribe(func(ev rpc.ConnEvent) {
		p.Send(connMsg(ev))
	})
	defer unsubConn()

	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("bubble tea: %w", err)
	}
	return nil
}
