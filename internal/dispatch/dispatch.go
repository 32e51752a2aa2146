// ABOUTME: Operation dispatcher: consumes engine operations in order and keeps the editor state
// ABOUTME: Sends feedback (set_theme, set_language) and answers measure_width through a Sender

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/mauromedda/print-go/internal/eventbus"
	"github.com/mauromedda/print-go/internal/linecache"
	"github.com/mauromedda/print-go/internal/log"
	"github.com/mauromedda/print-go/internal/measure"
	"github.com/mauromedda/print-go/internal/ops"
	"github.com/mauromedda/print-go/internal/protocol"
)

var logger = log.Named("dispatch")

// Defaults sent back to the engine when it announces what it supports.
const (
	DefaultTheme    = "InspiredGitHub"
	DefaultLanguage = "Markdown"
)

// Outbound notification names used for feedback.
const (
	methodSetTheme    = "set_theme"
	methodSetLanguage = "set_language"
)

// Sender is the part of the RPC client the dispatcher needs.
type Sender interface {
	SendNotification(method string, params any) error
	Respond(id uint64, result any) error
	RespondError(id uint64, e *protocol.Error) error
}

// Options configures a Dispatcher. Empty fields take the package defaults.
type Options struct {
	Theme    string
	Language string
}

// Event is published after every handled operation.
type Event struct {
	Method string        `json:"method"`
	ViewID string        `json:"view_id,omitempty"`
	Op     ops.Operation `json:"params"`
}

// ViewState is a copy of one view for readers outside the dispatcher.
type ViewState struct {
	ID         string                     `json:"id"`
	Lines      []string                   `json:"lines"`
	Text       string                     `json:"text"`
	Pristine   bool                       `json:"pristine"`
	Loaded     bool                       `json:"loaded"`
	ScrollLine int                        `json:"scroll_line"`
	ScrollCol  int                        `json:"scroll_col"`
	Language   string                     `json:"language,omitempty"`
	Plugins    []ops.Plugin               `json:"plugins,omitempty"`
	Commands   map[string]int             `json:"commands,omitempty"`
	Config     map[string]json.RawMessage `json:"config,omitempty"`
	Find       []ops.FindQuery            `json:"find,omitempty"`
	Replace    ops.ReplaceState           `json:"replace"`
}

// State is a copy of the editor state.
type State struct {
	Theme     string               `json:"theme"`
	Themes    []string             `json:"themes"`
	Languages []string             `json:"languages"`
	Styles    map[int]ops.DefStyle `json:"styles"`
	Focused   string               `json:"focused,omitempty"`
	Alert     string               `json:"alert,omitempty"`
	Views     map[string]ViewState `json:"views"`
}

// View returns the focused view, if any.
func (s State) View() (ViewState, bool) {
	v, ok := s.Views[s.Focused]
	return v, ok
}

type view struct {
	id         string
	cache      *linecache.Cache
	loaded     bool
	scrollLine int
	scrollCol  int
	language   string
	plugins    []ops.Plugin
	cmds       map[string][]json.RawMessage
	config     map[string]json.RawMessage
	find       []ops.FindQuery
	replace    ops.ReplaceState
}

func newView(id string) *view {
	return &view{
		id:     id,
		cache:  linecache.New(),
		cmds:   make(map[string][]json.RawMessage),
		config: make(map[string]json.RawMessage),
	}
}

// Dispatcher owns the editor state. Handle is meant to be called from one
// goroutine; Snapshot, Focus and SetDefaults are safe from any goroutine.
type Dispatcher struct {
	sender Sender
	events *eventbus.Bus[Event]

	mu        sync.Mutex
	theme     string
	language  string
	current   string
	themes    []string
	languages []string
	styles    map[int]ops.DefStyle
	views     map[string]*view
	focused   string
	alert     string
}

// New builds a dispatcher that replies through sender.
func New(sender Sender, opts Options) *Dispatcher {
	if opts.Theme == "" {
		opts.Theme = DefaultTheme
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	return &Dispatcher{
		sender:   sender,
		events:   eventbus.New[Event](),
		theme:    opts.Theme,
		language: opts.Language,
		styles:   make(map[int]ops.DefStyle),
		views:    make(map[string]*view),
	}
}

// Events publishes one Event per handled operation.
func (d *Dispatcher) Events() *eventbus.Bus[Event] { return d.events }

// Run handles operations in arrival order until ch closes or ctx ends.
// Handler errors are logged; they do not stop the loop.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan ops.Operation) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case op, ok := <-ch:
			if !ok {
				return nil
			}
			if err := d.Handle(op); err != nil {
				logger.Warn("%s: %v", op.Method(), err)
			}
		}
	}
}

// Handle applies one operation.
func (d *Dispatcher) Handle(op ops.Operation) error {
	viewID, feedback, err := d.apply(op)
	d.events.Publish(Event{Method: op.Method(), ViewID: viewID, Op: op})
	if err != nil {
		return err
	}
	if feedback != nil {
		return feedback()
	}
	return nil
}

// apply mutates state under the lock and returns any reply to send once the
// lock is released.
func (d *Dispatcher) apply(op ops.Operation) (string, func() error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch o := op.(type) {
	case ops.Update:
		v := d.viewLocked(o.ViewID)
		if err := v.cache.Apply(o.Update); err != nil {
			return o.ViewID, nil, fmt.Errorf("view %s: %w", o.ViewID, err)
		}
		v.loaded = true
		return o.ViewID, nil, nil

	case ops.ScrollTo:
		v := d.viewLocked(o.ViewID)
		v.scrollLine, v.scrollCol = o.Line, o.Col
		return o.ViewID, nil, nil

	case ops.DefStyle:
		d.styles[o.ID] = o
		return "", nil, nil

	case ops.AvailablePlugins:
		d.viewLocked(o.ViewID).plugins = slices.Clone(o.Plugins)
		return o.ViewID, nil, nil

	case ops.PluginStarted:
		setPluginRunning(d.viewLocked(o.ViewID), o.Plugin, true)
		return o.ViewID, nil, nil

	case ops.PluginStopped:
		setPluginRunning(d.viewLocked(o.ViewID), o.Plugin, false)
		if o.Code != 0 {
			logger.Warn("plugin %s stopped with code %d", o.Plugin, o.Code)
		}
		return o.ViewID, nil, nil

	case ops.UpdateCmds:
		d.viewLocked(o.ViewID).cmds[o.Plugin] = slices.Clone(o.Cmds)
		return o.ViewID, nil, nil

	case ops.ConfigChanged:
		v := d.viewLocked(o.ViewID)
		maps.Copy(v.config, o.Changes)
		return o.ViewID, nil, nil

	case ops.ThemeChanged:
		d.current = o.Name
		return "", nil, nil

	case ops.Alert:
		d.alert = o.Msg
		logger.Info("alert: %s", o.Msg)
		return "", nil, nil

	case ops.FindStatus:
		d.viewLocked(o.ViewID).find = slices.Clone(o.Queries)
		return o.ViewID, nil, nil

	case ops.ReplaceStatus:
		d.viewLocked(o.ViewID).replace = o.Status
		return o.ViewID, nil, nil

	case ops.LanguageChanged:
		d.viewLocked(o.ViewID).language = o.LanguageID
		return o.ViewID, nil, nil

	case ops.AvailableThemes:
		d.themes = slices.Clone(o.Themes)
		theme := d.theme
		return "", func() error { return d.send(methodSetTheme, setThemeParams{ThemeName: theme}) }, nil

	case ops.AvailableLanguages:
		d.languages = slices.Clone(o.Languages)
		if d.focused == "" {
			logger.Debug("no focused view; set_language deferred")
			return "", nil, nil
		}
		params := setLanguageParams{ViewID: d.focused, LanguageID: d.language}
		return "", func() error { return d.send(methodSetLanguage, params) }, nil

	case ops.MeasureWidth:
		id, reqs := o.ID, o.Requests
		return "", func() error {
			err := d.sender.Respond(id, measure.Widths(reqs))
			if err == nil {
				return nil
			}
			// The engine still waits on this id; a dead connection fails this too.
			_ = d.sender.RespondError(id, protocol.NewInternalError(err.Error()))
			return fmt.Errorf("answering measure_width %d: %w", id, err)
		}, nil

	case ops.Unrecognized:
		logger.Debug("ignoring unrecognized operation %q", o.Name)
		return "", nil, nil

	default:
		return "", nil, fmt.Errorf("unhandled operation %T", op)
	}
}

func (d *Dispatcher) viewLocked(id string) *view {
	v, ok := d.views[id]
	if !ok {
		v = newView(id)
		d.views[id] = v
	}
	return v
}

func setPluginRunning(v *view, name string, running bool) {
	for i := range v.plugins {
		if v.plugins[i].Name == name {
			v.plugins[i].Running = running
			return
		}
	}
	v.plugins = append(v.plugins, ops.Plugin{Name: name, Running: running})
}

type setThemeParams struct {
	ThemeName string `json:"theme_name"`
}

type setLanguageParams struct {
	ViewID     string `json:"view_id"`
	LanguageID string `json:"language_id"`
}

func (d *Dispatcher) send(method string, params any) error {
	if err := d.sender.SendNotification(method, params); err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}
	return nil
}

// Focus makes viewID the target of language feedback. If the engine has
// already announced its languages, set_language is sent now.
func (d *Dispatcher) Focus(viewID string) error {
	d.mu.Lock()
	d.focused = viewID
	d.viewLocked(viewID)
	known := len(d.languages) > 0
	lang := d.language
	d.mu.Unlock()

	if !known {
		return nil
	}
	return d.send(methodSetLanguage, setLanguageParams{ViewID: viewID, LanguageID: lang})
}

// Forget drops a closed view. Focus moves to nothing if it was focused.
func (d *Dispatcher) Forget(viewID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.views, viewID)
	if d.focused == viewID {
		d.focused = ""
	}
}

// SetDefaults replaces the theme and language sent as feedback. Changed
// values are pushed to the engine when it has already announced its lists.
func (d *Dispatcher) SetDefaults(theme, language string) error {
	d.mu.Lock()
	var pending []func() error
	if theme != "" && theme != d.theme {
		d.theme = theme
		if len(d.themes) > 0 {
			pending = append(pending, func() error { return d.send(methodSetTheme, setThemeParams{ThemeName: theme}) })
		}
	}
	if language != "" && language != d.language {
		d.language = language
		if len(d.languages) > 0 && d.focused != "" {
			params := setLanguageParams{ViewID: d.focused, LanguageID: language}
			pending = append(pending, func() error { return d.send(methodSetLanguage, params) })
		}
	}
	d.mu.Unlock()

	for _, fn := range pending {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// Defaults returns the theme and language used for feedback.
func (d *Dispatcher) Defaults() (theme, language string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.theme, d.language
}

// Snapshot copies the editor state.
func (d *Dispatcher) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := State{
		Theme:     d.current,
		Themes:    slices.Clone(d.themes),
		Languages: slices.Clone(d.languages),
		Styles:    maps.Clone(d.styles),
		Focused:   d.focused,
		Alert:     d.alert,
		Views:     make(map[string]ViewState, len(d.views)),
	}
	for id, v := range d.views {
		cmds := make(map[string]int, len(v.cmds))
		for plugin, c := range v.cmds {
			cmds[plugin] = len(c)
		}
		s.Views[id] = ViewState{
			ID:         id,
			Lines:      v.cache.Lines(),
			Text:       v.cache.Text(),
			Pristine:   v.cache.Pristine(),
			Loaded:     v.loaded,
			ScrollLine: v.scrollLine,
			ScrollCol:  v.scrollCol,
			Language:   v.language,
			Plugins:    slices.Clone(v.plugins),
			Commands:   cmds,
			Config:     maps.Clone(v.config),
			Find:       slices.Clone(v.find),
			Replace:    v.replace,
		}
	}
	return s
}
