// ABOUTME: Headless print mode: opens one file through the engine and prints it or streams events
// ABOUTME: Text and JSON-lines formatters; a lost engine connection is reported as an error

package print

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mauromedda/print-go/internal/dispatch"
	"github.com/mauromedda/print-go/internal/rpc"
	"github.com/mauromedda/print-go/internal/workspace"
)

// Config configures print mode.
type Config struct {
	OutputFormat    string    // "text" (default) or "json"
	Out             io.Writer // defaults to os.Stdout
	ConfigDir       *string
	ClientExtrasDir *string
}

// Deps are the running session pieces print mode drives.
type Deps struct {
	Client     *rpc.Client
	Dispatcher *dispatch.Dispatcher
	Workspace  *workspace.Manager
}

// Run announces the client, opens path, waits until the engine has sent the
// view's first update, and writes the result.
func Run(ctx context.Context, cfg Config, deps Deps, path string) error {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	f, err := newFormatter(cfg.OutputFormat, cfg.Out)
	if err != nil {
		return err
	}

	updated := make(chan struct{}, 1)
	unsub := deps.Dispatcher.Events().Subscribe(func(ev dispatch.Event) {
		f.event(ev)
		if ev.Method == "update" {
			select {
			case updated <- struct{}{}:
			default:
			}
		}
	})
	defer unsub()

	if err := deps.Client.ClientStarted(cfg.ConfigDir, cfg.ClientExtrasDir); err != nil {
		return connErr(deps.Client, fmt.Errorf("starting session: %w", err))
	}
	viewID, err := deps.Workspace.SetFile(ctx, path)
	if err != nil {
		return connErr(deps.Client, err)
	}

	for {
		if v, ok := deps.Dispatcher.Snapshot().Views[viewID]; ok && v.Loaded {
			unsub()
			return f.done(v)
		}
		select {
		case <-updated:
		case <-deps.Client.Done():
			if err := deps.Client.Err(); err != nil {
				return err
			}
			return rpc.ErrEngineGone
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// connErr prefers the connection error when the engine is gone.
func connErr(c *rpc.Client, err error) error {
	if c.State() == rpc.StateLost {
		return c.Err()
	}
	return err
}

// formatter abstracts output formatting.
type formatter interface {
	event(ev dispatch.Event)
	done(v dispatch.ViewState) error
}

func newFormatter(format string, out io.Writer) (formatter, error) {
	switch format {
	case "", "text":
		return &textFormatter{out: out}, nil
	case "json":
		return &jsonFormatter{out: out}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}

// textFormatter prints the loaded text.
type textFormatter struct {
	out io.Writer
}

func (f *textFormatter) event(dispatch.Event) {}

func (f *textFormatter) done(v dispatch.ViewState) error {
	text := v.Text
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(f.out, text)
	return err
}

// jsonFormatter writes one JSON line per dispatcher event and a final
// "view" line with the loaded view.
type jsonFormatter struct {
	mu  sync.Mutex
	out io.Writer
	err error
}

type viewLine struct {
	Method string             `json:"method"`
	ViewID string             `json:"view_id"`
	Params dispatch.ViewState `json:"params"`
}

func (f *jsonFormatter) event(ev dispatch.Event) {
	f.write(ev)
}

func (f *jsonFormatter) done(v dispatch.ViewState) error {
	f.write(viewLine{Method: "view", ViewID: v.ID, Params: v})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *jsonFormatter) write(v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		f.err = fmt.Errorf("encoding event: %w", err)
		return
	}
	data = append(data, '\n')
	if _, err := f.out.Write(data); err != nil {
		f.err = err
	}
}
