// ABOUTME: Embedded editing core speaking the line-delimited JSON protocol over a stream pair
// ABOUTME: Holds view buffers, answers new_view, applies edits, and emits update/theme/language notifications

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/mauromedda/print-go/internal/log"
	"github.com/mauromedda/print-go/internal/protocol"
	"github.com/mauromedda/print-go/internal/transport"
)

var logger = log.Named("core")

// DefaultThemes is announced after client_started.
var DefaultThemes = []string{
	"InspiredGitHub",
	"Solarized (dark)",
	"Solarized (light)",
	"base16-eighties.dark",
	"base16-mocha.dark",
	"base16-ocean.dark",
	"base16-ocean.light",
}

// DefaultLanguages is announced after client_started.
var DefaultLanguages = []string{"Plain Text", "Markdown", "Go", "Rust", "YAML", "JSON", "TOML"}

var extLanguages = map[string]string{
	".md":       "Markdown",
	".markdown": "Markdown",
	".go":       "Go",
	".rs":       "Rust",
	".yaml":     "YAML",
	".yml":      "YAML",
	".json":     "JSON",
	".toml":     "TOML",
}

// Engine is a small in-process editing core. Each Run is an independent
// session with its own views.
type Engine struct {
	Themes    []string
	Languages []string
}

// New returns an engine announcing the default themes and languages.
func New() *Engine {
	return &Engine{
		Themes:    slices.Clone(DefaultThemes),
		Languages: slices.Clone(DefaultLanguages),
	}
}

// Run serves one client until in ends, the exit sentinel arrives, or ctx is
// cancelled. The caller closes out.
func (e *Engine) Run(ctx context.Context, in io.Reader, out io.WriteCloser) error {
	s := &session{
		engine: e,
		w:      transport.NewLineWriter(out),
		views:  make(map[string]*buffer),
	}
	r := transport.NewLineReader(in)

	stop := context.AfterFunc(ctx, func() { _ = r.Close() })
	defer stop()

	for {
		line, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading client stream: %w", err)
		}
		if strings.TrimSpace(string(line)) == "" {
			continue
		}
		msg, err := protocol.Decode(line)
		if err != nil {
			logger.Warn("dropping line: %v", err)
			continue
		}
		if err := s.handle(msg); err != nil {
			return err
		}
	}
}

type session struct {
	engine *Engine

	mu      sync.Mutex
	w       *transport.LineWriter
	views   map[string]*buffer
	nextVID int
	nextReq uint64
}

func (s *session) handle(msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.Notification:
		return s.handleNotification(m)
	case *protocol.Request:
		return s.handleRequest(m)
	case *protocol.Response:
		logger.Debug("client answered request %d", m.ID)
	}
	return nil
}

func (s *session) handleNotification(n *protocol.Notification) error {
	switch n.Method {
	case "client_started":
		if err := s.notify("available_themes", map[string][]string{"themes": s.engine.Themes}); err != nil {
			return err
		}
		return s.notify("available_languages", map[string][]string{"languages": s.engine.Languages})

	case "set_theme":
		var p struct {
			ThemeName string `json:"theme_name"`
		}
		if err := decodeParams(n, &p); err != nil {
			return s.alert(err.Error())
		}
		if !slices.Contains(s.engine.Themes, p.ThemeName) {
			return s.alert(fmt.Sprintf("unknown theme: %s", p.ThemeName))
		}
		return s.notify("theme_changed", map[string]any{
			"name":  p.ThemeName,
			"theme": themeSettings(p.ThemeName),
		})

	case "set_language":
		var p struct {
			ViewID     string `json:"view_id"`
			LanguageID string `json:"language_id"`
		}
		if err := decodeParams(n, &p); err != nil {
			return s.alert(err.Error())
		}
		b, ok := s.views[p.ViewID]
		if !ok {
			return s.alert(fmt.Sprintf("unknown view: %s", p.ViewID))
		}
		if !slices.Contains(s.engine.Languages, p.LanguageID) {
			return s.alert(fmt.Sprintf("unknown language: %s", p.LanguageID))
		}
		b.language = p.LanguageID
		return s.notify("language_changed", map[string]string{"view_id": p.ViewID, "language_id": p.LanguageID})

	case "edit":
		var p struct {
			Method string          `json:"method"`
			ViewID string          `json:"view_id"`
			Params json.RawMessage `json:"params"`
		}
		if err := decodeParams(n, &p); err != nil {
			return s.alert(err.Error())
		}
		b, ok := s.views[p.ViewID]
		if !ok {
			return s.alert(fmt.Sprintf("unknown view: %s", p.ViewID))
		}
		if err := b.edit(p.Method, p.Params); err != nil {
			return s.alert(err.Error())
		}
		return s.sendUpdate(p.ViewID, b)

	case "save":
		var p struct {
			ViewID   string `json:"view_id"`
			FilePath string `json:"file_path"`
		}
		if err := decodeParams(n, &p); err != nil {
			return s.alert(err.Error())
		}
		b, ok := s.views[p.ViewID]
		if !ok {
			return s.alert(fmt.Sprintf("unknown view: %s", p.ViewID))
		}
		if err := os.WriteFile(p.FilePath, []byte(b.text()), 0o644); err != nil {
			return s.alert(fmt.Sprintf("saving %s: %v", p.FilePath, err))
		}
		b.path = p.FilePath
		b.pristine = true
		return s.sendUpdate(p.ViewID, b)

	case "close_view":
		var p struct {
			ViewID string `json:"view_id"`
		}
		if err := decodeParams(n, &p); err != nil {
			return s.alert(err.Error())
		}
		delete(s.views, p.ViewID)
		return nil

	default:
		logger.Debug("ignoring notification %q", n.Method)
		return nil
	}
}

func (s *session) handleRequest(req *protocol.Request) error {
	if req.Method != "new_view" {
		return s.reply(protocol.EncodeErrorResponse(req.ID, protocol.NewMethodNotFoundError(req.Method)))
	}

	var p struct {
		FilePath string `json:"file_path"`
	}
	if err := decodeParams(&protocol.Notification{Method: req.Method, Params: req.Params}, &p); err != nil {
		return s.reply(protocol.EncodeErrorResponse(req.ID, protocol.NewInvalidParamsError(err.Error())))
	}

	b, err := loadBuffer(p.FilePath)
	if err != nil {
		return s.reply(protocol.EncodeErrorResponse(req.ID, protocol.NewInternalError(err.Error())))
	}
	s.nextVID++
	viewID := fmt.Sprintf("view-id-%d", s.nextVID)
	s.views[viewID] = b

	if err := s.reply(protocol.EncodeResponse(req.ID, viewID)); err != nil {
		return err
	}
	if err := s.notify("language_changed", map[string]string{"view_id": viewID, "language_id": b.language}); err != nil {
		return err
	}
	if err := s.sendUpdate(viewID, b); err != nil {
		return err
	}
	if err := s.notify("scroll_to", map[string]any{"view_id": viewID, "line": 0, "col": 0}); err != nil {
		return err
	}
	id := s.nextReq
	s.nextReq++
	return s.reply(protocol.EncodeRequest(id, "measure_width", []map[string]any{
		{"id": 0, "strings": []string{" ", "W", "\t"}},
	}))
}

func (s *session) sendUpdate(viewID string, b *buffer) error {
	body := b.diff()
	return s.notify("update", map[string]any{"view_id": viewID, "update": body})
}

func (s *session) alert(msg string) error {
	logger.Debug("alert: %s", msg)
	return s.notify("alert", map[string]string{"msg": msg})
}

func (s *session) notify(method string, params any) error {
	return s.reply(protocol.EncodeNotification(method, params))
}

func (s *session) reply(line []byte, err error) error {
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("writing: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flushing: %w", err)
	}
	return nil
}

func decodeParams(n *protocol.Notification, v any) error {
	if len(n.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(n.Params, v); err != nil {
		return fmt.Errorf("bad %s params: %w", n.Method, err)
	}
	return nil
}

func themeSettings(name string) map[string]any {
	dark := strings.Contains(name, "dark")
	fg, bg := "#323232", "#ffffff"
	if dark {
		fg, bg = "#d3d0c8", "#2d2d2d"
	}
	return map[string]any{"foreground": fg, "background": bg}
}

func languageFor(path string) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "Plain Text"
}
