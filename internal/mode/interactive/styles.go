// ABOUTME: Lipgloss styles for the interactive view: header, body, footer, command line
// ABOUTME: Body colors follow the theme settings carried by theme_changed

package interactive

import (
	"encoding/json"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the pre-built lipgloss styles for one theme.
type Styles struct {
	Header lipgloss.Style
	Body   lipgloss.Style
	Gutter lipgloss.Style
	Footer lipgloss.Style
	Prompt lipgloss.Style
	Error  lipgloss.Style
	Muted  lipgloss.Style
}

// themeColors is the subset of engine theme settings the view uses.
type themeColors struct {
	Foreground string `json:"foreground"`
	Background string `json:"background"`
	Gutter     string `json:"gutter_foreground"`
}

// DefaultStyles returns the styles used before the engine reports a theme.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")),
		Body:   lipgloss.NewStyle(),
		Gutter: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Footer: lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		Prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Muted:  lipgloss.NewStyle().Faint(true),
	}
}

// stylesForTheme derives body colors from raw theme settings. Settings that
// do not decode, or carry no colors, leave the defaults in place.
func stylesForTheme(raw json.RawMessage) Styles {
	s := DefaultStyles()
	if len(raw) == 0 {
		return s
	}
	var c themeColors
	if err := json.Unmarshal(raw, &c); err != nil {
		logger.Debug("theme settings: %v", err)
		return s
	}
	if c.Foreground != "" {
		s.Body = s.Body.Foreground(lipgloss.Color(c.Foreground))
	}
	if c.Background != "" {
		s.Body = s.Body.Background(lipgloss.Color(c.Background))
	}
	if c.Gutter != "" {
		s.Gutter = s.Gutter.Foreground(lipgloss.Color(c.Gutter))
	}
	return s
}
