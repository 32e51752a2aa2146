// ABOUTME: Typed operations decoded from engine notifications and requests
// ABOUTME: Closed set of payloads following the xi frontend protocol field layout

package ops

import "encoding/json"

// Inbound notification method names.
const (
	MethodUpdate             = "update"
	MethodScrollTo           = "scroll_to"
	MethodDefStyle           = "def_style"
	MethodAvailablePlugins   = "available_plugins"
	MethodUpdateCmds         = "update_cmds"
	MethodPluginStarted      = "plugin_started"
	MethodPluginStopped      = "plugin_stopped"
	MethodConfigChanged      = "config_changed"
	MethodThemeChanged       = "theme_changed"
	MethodAlert              = "alert"
	MethodAvailableThemes    = "available_themes"
	MethodFindStatus         = "find_status"
	MethodReplaceStatus      = "replace_status"
	MethodAvailableLanguages = "available_languages"
	MethodLanguageChanged    = "language_changed"
)

// Inbound request method names.
const (
	MethodMeasureWidth = "measure_width"
)

// Operation is one unsolicited engine message in typed form. It is built once
// by the reader goroutine and consumed once by the dispatcher.
type Operation interface {
	Method() string
}

// Update carries line cache ops for one view.
type Update struct {
	ViewID string     `json:"view_id"`
	Update UpdateBody `json:"update"`
}

// UpdateBody is the "update" member of an update notification.
type UpdateBody struct {
	Ops         []UpdateOp        `json:"ops"`
	Pristine    bool              `json:"pristine"`
	Annotations []json.RawMessage `json:"annotations,omitempty"`
}

// UpdateOp is one of copy, skip, invalidate, ins, update.
type UpdateOp struct {
	Op    string `json:"op"`
	N     int    `json:"n"`
	Lines []Line `json:"lines,omitempty"`
	Ln    int    `json:"ln,omitempty"`
}

// Line is a rendered line as sent by the engine.
type Line struct {
	Text   string `json:"text"`
	Ln     int    `json:"ln,omitempty"`
	Cursor []int  `json:"cursor,omitempty"`
	Styles []int  `json:"styles,omitempty"`
}

// ScrollTo asks the view to make a position visible.
type ScrollTo struct {
	ViewID string `json:"view_id"`
	Line   int    `json:"line"`
	Col    int    `json:"col"`
}

// DefStyle defines a style id referenced by Line.Styles.
type DefStyle struct {
	ID        int     `json:"id"`
	FgColor   *uint32 `json:"fg_color,omitempty"`
	BgColor   *uint32 `json:"bg_color,omitempty"`
	Weight    *int    `json:"weight,omitempty"`
	Italic    *bool   `json:"italic,omitempty"`
	Underline *bool   `json:"underline,omitempty"`
}

// Plugin describes a plugin known to the engine for a view.
type Plugin struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
}

// AvailablePlugins lists plugins for a view.
type AvailablePlugins struct {
	ViewID  string   `json:"view_id"`
	Plugins []Plugin `json:"plugins"`
}

// UpdateCmds lists commands a plugin contributes to a view.
type UpdateCmds struct {
	ViewID string            `json:"view_id"`
	Plugin string            `json:"plugin"`
	Cmds   []json.RawMessage `json:"cmds"`
}

// PluginStarted reports a plugin start.
type PluginStarted struct {
	ViewID string `json:"view_id"`
	Plugin string `json:"plugin"`
}

// PluginStopped reports a plugin exit with its code.
type PluginStopped struct {
	ViewID string `json:"view_id"`
	Plugin string `json:"plugin"`
	Code   int    `json:"code"`
}

// ConfigChanged carries changed config keys for a view.
type ConfigChanged struct {
	ViewID  string                     `json:"view_id"`
	Changes map[string]json.RawMessage `json:"changes"`
}

// ThemeChanged reports the active theme and its settings.
type ThemeChanged struct {
	Name  string          `json:"name"`
	Theme json.RawMessage `json:"theme,omitempty"`
}

// Alert is a user-facing message from the engine.
type Alert struct {
	Msg string `json:"msg"`
}

// AvailableThemes lists theme names. Accepts {"themes":[...]} or a bare array.
type AvailableThemes struct {
	Themes []string `json:"themes"`
}

// UnmarshalJSON accepts both payload forms.
func (a *AvailableThemes) UnmarshalJSON(data []byte) error {
	type plain AvailableThemes
	return unmarshalListOrObject(data, &a.Themes, (*plain)(a))
}

// FindQuery is the status of one find query.
type FindQuery struct {
	ID            int    `json:"id"`
	Chars         string `json:"chars,omitempty"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	IsRegex       bool   `json:"is_regex,omitempty"`
	WholeWords    bool   `json:"whole_words,omitempty"`
	Matches       int    `json:"matches"`
	Lines         []int  `json:"lines,omitempty"`
}

// FindStatus reports the find queries of a view.
type FindStatus struct {
	ViewID  string      `json:"view_id"`
	Queries []FindQuery `json:"queries"`
}

// ReplaceState is the current replace setting.
type ReplaceState struct {
	Chars        string `json:"chars"`
	PreserveCase bool   `json:"preserve_case,omitempty"`
}

// ReplaceStatus reports the replace state of a view.
type ReplaceStatus struct {
	ViewID string       `json:"view_id"`
	Status ReplaceState `json:"status"`
}

// AvailableLanguages lists language ids. Accepts {"languages":[...]} or a bare array.
type AvailableLanguages struct {
	Languages []string `json:"languages"`
}

// UnmarshalJSON accepts both payload forms.
func (a *AvailableLanguages) UnmarshalJSON(data []byte) error {
	type plain AvailableLanguages
	return unmarshalListOrObject(data, &a.Languages, (*plain)(a))
}

// LanguageChanged reports the language of a view.
type LanguageChanged struct {
	ViewID     string `json:"view_id"`
	LanguageID string `json:"language_id"`
}

// MeasureRequest asks for the widths of strings rendered in one style.
type MeasureRequest struct {
	ID      int      `json:"id"`
	Strings []string `json:"strings"`
}

// MeasureWidth is an inbound request; ID is the engine's request id that the
// reply must carry.
type MeasureWidth struct {
	ID       uint64           `json:"id"`
	Requests []MeasureRequest `json:"requests"`
}

// Unrecognized stands for a notification whose method is not in the set above.
type Unrecognized struct {
	Name   string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (Update) Method() string             { return MethodUpdate }
func (ScrollTo) Method() string           { return MethodScrollTo }
func (DefStyle) Method() string           { return MethodDefStyle }
func (AvailablePlugins) Method() string   { return MethodAvailablePlugins }
func (UpdateCmds) Method() string         { return MethodUpdateCmds }
func (PluginStarted) Method() string      { return MethodPluginStarted }
func (PluginStopped) Method() string      { return MethodPluginStopped }
func (ConfigChanged) Method() string      { return MethodConfigChanged }
func (ThemeChanged) Method() string       { return MethodThemeChanged }
func (Alert) Method() string              { return MethodAlert }
func (AvailableThemes) Method() string    { return MethodAvailableThemes }
func (FindStatus) Method() string         { return MethodFindStatus }
func (ReplaceStatus) Method() string      { return MethodReplaceStatus }
func (AvailableLanguages) Method() string { return MethodAvailableLanguages }
func (LanguageChanged) Method() string    { return MethodLanguageChanged }
func (MeasureWidth) Method() string       { return MethodMeasureWidth }
func (u Unrecognized) Method() string     { return u.Name }
