// ABOUTME: Keybindings manager with O(1) key-to-action lookup for the interactive view
// ABOUTME: Merges settings overrides over defaults, detects conflicts, renders the help table

package keybindings

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Action is something a key can trigger in the interactive view.
type Action string

const (
	ActionScrollUp   Action = "scrollUp"
	ActionScrollDown Action = "scrollDown"
	ActionPageUp     Action = "pageUp"
	ActionPageDown   Action = "pageDown"
	ActionTop        Action = "top"
	ActionBottom     Action = "bottom"
	ActionCommand    Action = "command"
	ActionHelp       Action = "help"
	ActionQuit       Action = "quit"
)

// order is the display order of actions in the help table.
var order = []Action{
	ActionScrollUp, ActionScrollDown, ActionPageUp, ActionPageDown,
	ActionTop, ActionBottom, ActionCommand, ActionHelp, ActionQuit,
}

var descriptions = map[Action]string{
	ActionScrollUp:   "scroll up one line",
	ActionScrollDown: "scroll down one line",
	ActionPageUp:     "scroll up one page",
	ActionPageDown:   "scroll down one page",
	ActionTop:        "go to the first line",
	ActionBottom:     "go to the last line",
	ActionCommand:    "open the command line",
	ActionHelp:       "toggle help",
	ActionQuit:       "quit",
}

// Defaults returns the built-in bindings. Key names follow bubbletea's
// KeyMsg.String() ("up", "pgdown", "ctrl+c", "G").
func Defaults() map[Action][]string {
	return map[Action][]string{
		ActionScrollUp:   {"up", "k"},
		ActionScrollDown: {"down", "j"},
		ActionPageUp:     {"pgup", "b"},
		ActionPageDown:   {"pgdown", " "},
		ActionTop:        {"home", "g"},
		ActionBottom:     {"end", "G"},
		ActionCommand:    {":"},
		ActionHelp:       {"?"},
		ActionQuit:       {"q"},
	}
}

// ConflictInfo describes a binding conflict where multiple actions share a key.
type ConflictInfo struct {
	Key     string
	Actions []Action
}

// Manager provides O(1) key-to-action lookup from merged keybindings.
type Manager struct {
	bindings map[Action][]string
	lookup   map[string]Action // "pgdown" → ActionPageDown
}

// New merges overrides (action name → keys) over the defaults. An override
// replaces every key of its action. Unknown action names are an error.
func New(overrides map[string][]string) (*Manager, error) {
	bindings := Defaults()
	for name, keys := range overrides {
		a := Action(name)
		if _, ok := descriptions[a]; !ok {
			return nil, fmt.Errorf("unknown key action %q", name)
		}
		bindings[a] = slices.Clone(keys)
	}
	m := &Manager{bindings: bindings}
	m.buildLookup()
	return m, nil
}

// Default returns a Manager with the built-in bindings.
func Default() *Manager {
	m := &Manager{bindings: Defaults()}
	m.buildLookup()
	return m
}

// ActionFor returns the action bound to key, or "" if unbound.
func (m *Manager) ActionFor(key string) Action {
	return m.lookup[key]
}

// Keys returns the keys bound to a.
func (m *Manager) Keys(a Action) []string {
	return slices.Clone(m.bindings[a])
}

// Conflicts detects keys bound to multiple actions, sorted by key.
func (m *Manager) Conflicts() []ConflictInfo {
	keyActions := make(map[string][]Action)
	for _, action := range order {
		for _, k := range m.bindings[action] {
			keyActions[k] = append(keyActions[k], action)
		}
	}

	var conflicts []ConflictInfo
	for _, k := range slices.Sorted(maps.Keys(keyActions)) {
		if actions := keyActions[k]; len(actions) > 1 {
			conflicts = append(conflicts, ConflictInfo{Key: k, Actions: actions})
		}
	}
	return conflicts
}

// Markdown renders the bindings as a markdown table for the help screen.
func (m *Manager) Markdown() string {
	var b strings.Builder
	b.WriteString("| Key | Action |\n|---|---|\n")
	for _, action := range order {
		keys := m.bindings[action]
		if len(keys) == 0 {
			continue
		}
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = "`" + displayName(k) + "`"
		}
		fmt.Fprintf(&b, "| %s | %s |\n", strings.Join(names, " "), descriptions[action])
	}
	return b.String()
}

// buildLookup maps every key to its action. When keys conflict the action
// listed first in order wins.
func (m *Manager) buildLookup() {
	m.lookup = make(map[string]Action, len(m.bindings)*2)
	for _, action := range slices.Backward(order) {
		for _, k := range m.bindings[action] {
			m.lookup[k] = action
		}
	}
}

func displayName(key string) string {
	if key == " " {
		return "space"
	}
	return key
}
