// ABOUTME: Tests for the operation dispatcher: state mutation, feedback notifications, measure_width
// ABOUTME: A recording Sender stands in for the RPC client

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mauromedda/print-go/internal/ops"
	"github.com/mauromedda/print-go/internal/protocol"
)

type sent struct {
	method string
	params any
}

type recordingSender struct {
	mu          sync.Mutex
	notes       []sent
	responses   map[uint64]any
	errs        map[uint64]*protocol.Error
	failSend    error
	failRespond error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{responses: map[uint64]any{}, errs: map[uint64]*protocol.Error{}}
}

func (s *recordingSender) SendNotification(method string, params any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSend != nil {
		return s.failSend
	}
	s.notes = append(s.notes, sent{method, params})
	return nil
}

func (s *recordingSender) Respond(id uint64, result any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRespond != nil {
		return s.failRespond
	}
	s.responses[id] = result
	return nil
}

func (s *recordingSender) RespondError(id uint64, e *protocol.Error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[id] = e
	return nil
}

func (s *recordingSender) notifications() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.notes...)
}

func TestAvailableThemesSendsDefaultTheme(t *testing.T) {
	s := newRecordingSender()
	d := New(s, Options{})

	if err := d.Handle(ops.AvailableThemes{Themes: []string{"dark", "light"}}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got := s.notifications()
	if len(got) != 1 || got[0].method != "set_theme" {
		t.Fatalf("sent = %+v; want one set_theme", got)
	}
	if p := got[0].params.(setThemeParams); p.ThemeName != DefaultTheme {
		t.Errorf("theme_name = %q; want %q", p.ThemeName, DefaultTheme)
	}
	if snap := d.Snapshot(); len(snap.Themes) != 2 {
		t.Errorf("Themes = %v", snap.Themes)
	}
}

func TestAvailableLanguagesDeferredUntilFocus(t *testing.T) {
	s := newRecordingSender()
	d := New(s, Options{Language: "Go"})

	if err := d.Handle(ops.AvailableLanguages{Languages: []string{"Go", "Markdown"}}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := s.notifications(); len(got) != 0 {
		t.Fatalf("sent %+v before any view was focused", got)
	}

	if err := d.Focus("view-id-1"); err != nil {
		t.Fatalf("Focus: %v", err)
	}
	got := s.notifications()
	if len(got) != 1 || got[0].method != "set_language" {
		t.Fatalf("sent = %+v; want one set_language", got)
	}
	p := got[0].params.(setLanguageParams)
	if p.ViewID != "view-id-1" || p.LanguageID != "Go" {
		t.Errorf("params = %+v", p)
	}
}

func TestAvailableLanguagesWithFocusedView(t *testing.T) {
	s := newRecordingSender()
	d := New(s, Options{})

	if err := d.Focus("view-id-2"); err != nil {
		t.Fatalf("Focus: %v", err)
	}
	if err := d.Handle(ops.AvailableLanguages{Languages: []string{"Markdown"}}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got := s.notifications()
	if len(got) != 1 {
		t.Fatalf("sent = %+v", got)
	}
	if p := got[0].params.(setLanguageParams); p.ViewID != "view-id-2" || p.LanguageID != DefaultLanguage {
		t.Errorf("params = %+v", p)
	}
}

func TestUpdateAndScroll(t *testing.T) {
	d := New(newRecordingSender(), Options{})

	update := ops.Update{ViewID: "v1", Update: ops.UpdateBody{
		Pristine: true,
		Ops: []ops.UpdateOp{{Op: "ins", N: 2, Lines: []ops.Line{
			{Text: "# Title\n", Ln: 1},
			{Text: "body", Ln: 2},
		}}},
	}}
	for _, op := range []ops.Operation{
		update,
		ops.ScrollTo{ViewID: "v1", Line: 1, Col: 2},
		ops.LanguageChanged{ViewID: "v1", LanguageID: "Markdown"},
	} {
		if err := d.Handle(op); err != nil {
			t.Fatalf("Handle(%s): %v", op.Method(), err)
		}
	}

	v, ok := d.Snapshot().Views["v1"]
	if !ok {
		t.Fatal("view v1 missing")
	}
	if v.Text != "# Title\nbody" || !v.Loaded || !v.Pristine {
		t.Errorf("view = %+v", v)
	}
	if v.ScrollLine != 1 || v.ScrollCol != 2 {
		t.Errorf("scroll = %d:%d; want 1:2", v.ScrollLine, v.ScrollCol)
	}
	if v.Language != "Markdown" {
		t.Errorf("Language = %q", v.Language)
	}
}

func TestBadUpdateReturnsError(t *testing.T) {
	d := New(newRecordingSender(), Options{})
	err := d.Handle(ops.Update{ViewID: "v1", Update: ops.UpdateBody{Ops: []ops.UpdateOp{{Op: "copy", N: 3}}}})
	if err == nil {
		t.Fatal("expected error for copy past end")
	}
	if v := d.Snapshot().Views["v1"]; v.Loaded {
		t.Error("view should not be marked loaded")
	}
}

func TestRecordsMiscOperations(t *testing.T) {
	d := New(newRecordingSender(), Options{})
	weight := 700
	for _, op := range []ops.Operation{
		ops.DefStyle{ID: 2, Weight: &weight},
		ops.ThemeChanged{Name: "InspiredGitHub"},
		ops.Alert{Msg: "saved"},
		ops.AvailablePlugins{ViewID: "v", Plugins: []ops.Plugin{{Name: "syntect"}}},
		ops.PluginStarted{ViewID: "v", Plugin: "syntect"},
		ops.PluginStopped{ViewID: "v", Plugin: "lint", Code: 1},
		ops.UpdateCmds{ViewID: "v", Plugin: "syntect", Cmds: []json.RawMessage{json.RawMessage(`{}`)}},
		ops.ConfigChanged{ViewID: "v", Changes: map[string]json.RawMessage{"tab_size": json.RawMessage(`4`)}},
		ops.FindStatus{ViewID: "v", Queries: []ops.FindQuery{{ID: 1, Matches: 3}}},
		ops.ReplaceStatus{ViewID: "v", Status: ops.ReplaceState{Chars: "x"}},
		ops.Unrecognized{Name: "foo_bar"},
	} {
		if err := d.Handle(op); err != nil {
			t.Fatalf("Handle(%s): %v", op.Method(), err)
		}
	}

	snap := d.Snapshot()
	if snap.Theme != "InspiredGitHub" || snap.Alert != "saved" {
		t.Errorf("theme = %q, alert = %q", snap.Theme, snap.Alert)
	}
	if st, ok := snap.Styles[2]; !ok || *st.Weight != 700 {
		t.Errorf("style 2 = %+v", st)
	}
	v := snap.Views["v"]
	if len(v.Plugins) != 2 || !v.Plugins[0].Running || v.Plugins[1].Running {
		t.Errorf("plugins = %+v", v.Plugins)
	}
	if v.Commands["syntect"] != 1 {
		t.Errorf("commands = %v", v.Commands)
	}
	if string(v.Config["tab_size"]) != "4" {
		t.Errorf("config = %v", v.Config)
	}
	if len(v.Find) != 1 || v.Find[0].Matches != 3 || v.Replace.Chars != "x" {
		t.Errorf("find = %+v, replace = %+v", v.Find, v.Replace)
	}
}

func TestMeasureWidthAnswered(t *testing.T) {
	s := newRecordingSender()
	d := New(s, Options{})

	err := d.Handle(ops.MeasureWidth{ID: 9, Requests: []ops.MeasureRequest{{ID: 0, Strings: []string{"ab", "你"}}}})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	widths, ok := s.responses[9].([][]float64)
	if !ok || len(widths) != 1 || widths[0][0] != 2 || widths[0][1] != 2 {
		t.Errorf("response = %#v", s.responses[9])
	}
}

func TestMeasureWidthRespondFailure(t *testing.T) {
	s := newRecordingSender()
	s.failRespond = errors.New("encode failed")
	d := New(s, Options{})

	if err := d.Handle(ops.MeasureWidth{ID: 3}); err == nil {
		t.Fatal("expected error")
	}
	if e := s.errs[3]; e == nil || e.Code != protocol.CodeInternal {
		t.Errorf("error response = %+v", e)
	}
}

func TestFeedbackSendFailure(t *testing.T) {
	s := newRecordingSender()
	s.failSend = errors.New("rpc client closed")
	d := New(s, Options{})

	if err := d.Handle(ops.AvailableThemes{Themes: []string{"a"}}); err == nil {
		t.Fatal("expected send error")
	}
	// State is still recorded.
	if len(d.Snapshot().Themes) != 1 {
		t.Error("themes not recorded")
	}
}

func TestSetDefaults(t *testing.T) {
	s := newRecordingSender()
	d := New(s, Options{})

	// Nothing announced yet: defaults change silently.
	if err := d.SetDefaults("dark", "Go"); err != nil {
		t.Fatalf("SetDefaults: %v", err)
	}
	if got := s.notifications(); len(got) != 0 {
		t.Fatalf("sent = %+v", got)
	}
	if th, lang := d.Defaults(); th != "dark" || lang != "Go" {
		t.Errorf("Defaults() = %q, %q", th, lang)
	}

	_ = d.Handle(ops.AvailableThemes{Themes: []string{"dark", "light"}})
	_ = d.Handle(ops.AvailableLanguages{Languages: []string{"Go", "Rust"}})
	_ = d.Focus("v")
	before := len(s.notifications())

	if err := d.SetDefaults("light", "Rust"); err != nil {
		t.Fatalf("SetDefaults: %v", err)
	}
	got := s.notifications()[before:]
	if len(got) != 2 || got[0].method != "set_theme" || got[1].method != "set_language" {
		t.Fatalf("sent = %+v", got)
	}

	// Unchanged values send nothing.
	if err := d.SetDefaults("light", "Rust"); err != nil {
		t.Fatalf("SetDefaults: %v", err)
	}
	if len(s.notifications()) != before+2 {
		t.Error("unchanged defaults were resent")
	}
}

func TestForget(t *testing.T) {
	d := New(newRecordingSender(), Options{})
	_ = d.Focus("v")
	d.Forget("v")
	snap := d.Snapshot()
	if snap.Focused != "" || len(snap.Views) != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestRunPreservesOrderAndPublishes(t *testing.T) {
	d := New(newRecordingSender(), Options{})
	events, unsub := d.Events().SubscribeChan(8)
	defer unsub()

	ch := make(chan ops.Operation, 3)
	ch <- ops.Alert{Msg: "1"}
	ch <- ops.Update{ViewID: "v", Update: ops.UpdateBody{Ops: []ops.UpdateOp{{Op: "bogus"}}}}
	ch <- ops.Alert{Msg: "2"}
	close(ch)

	if err := d.Run(context.Background(), ch); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"alert", "update", "alert"}
	for i, m := range want {
		select {
		case ev := <-events:
			if ev.Method != m {
				t.Errorf("event %d = %s; want %s", i, ev.Method, m)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing event %d", i)
		}
	}
	if d.Snapshot().Alert != "2" {
		t.Errorf("Alert = %q; want 2", d.Snapshot().Alert)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	d := New(newRecordingSender(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx, make(chan ops.Operation)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v; want context.Canceled", err)
	}
}
