// ABOUTME: Typed helpers for outbound engine methods (client_started, set_theme, new_view, edit...)
// ABOUTME: Thin wrappers that shape params and delegate to SendNotification, Call, or the exit sentinel

package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mauromedda/print-go/internal/transport"
)

// Outbound method names.
const (
	MethodClientStarted = "client_started"
	MethodSetTheme      = "set_theme"
	MethodSetLanguage   = "set_language"
	MethodNewView       = "new_view"
	MethodCloseView     = "close_view"
	MethodEdit          = "edit"
	MethodSave          = "save"
)

// ClientStartedParams is sent once at startup. Nil directories encode as null.
type ClientStartedParams struct {
	ConfigDir       *string `json:"config_dir"`
	ClientExtrasDir *string `json:"client_extras_dir"`
}

// SetThemeParams selects a theme by name.
type SetThemeParams struct {
	ThemeName string `json:"theme_name"`
}

// SetLanguageParams selects the language of a view.
type SetLanguageParams struct {
	ViewID     string `json:"view_id"`
	LanguageID string `json:"language_id"`
}

// EditParams wraps a per-view edit command.
type EditParams struct {
	Method string `json:"method"`
	ViewID string `json:"view_id"`
	Params any    `json:"params"`
}

// ClientStarted announces the client to the engine.
func (c *Client) ClientStarted(configDir, clientExtrasDir *string) error {
	return c.SendNotification(MethodClientStarted, ClientStartedParams{
		ConfigDir:       configDir,
		ClientExtrasDir: clientExtrasDir,
	})
}

// SetTheme asks the engine to switch themes.
func (c *Client) SetTheme(name string) error {
	return c.SendNotification(MethodSetTheme, SetThemeParams{ThemeName: name})
}

// SetLanguage asks the engine to change the language of a view.
func (c *Client) SetLanguage(viewID, languageID string) error {
	return c.SendNotification(MethodSetLanguage, SetLanguageParams{ViewID: viewID, LanguageID: languageID})
}

// NewView opens a view, optionally backed by a file, and returns its id.
func (c *Client) NewView(ctx context.Context, filePath string) (string, error) {
	params := map[string]string{}
	if filePath != "" {
		params["file_path"] = filePath
	}
	raw, err := c.Call(ctx, MethodNewView, params)
	if err != nil {
		return "", err
	}
	var viewID string
	if err := json.Unmarshal(raw, &viewID); err != nil {
		return "", fmt.Errorf("parsing new_view result: %w", err)
	}
	return viewID, nil
}

// CloseView releases a view in the engine.
func (c *Client) CloseView(viewID string) error {
	return c.SendNotification(MethodCloseView, map[string]string{"view_id": viewID})
}

// Edit sends an edit command for a view.
func (c *Client) Edit(viewID, method string, params any) error {
	if params == nil {
		params = map[string]any{}
	}
	return c.SendNotification(MethodEdit, EditParams{Method: method, ViewID: viewID, Params: params})
}

// Insert types chars at the cursor of a view.
func (c *Client) Insert(viewID, chars string) error {
	return c.Edit(viewID, "insert", map[string]string{"chars": chars})
}

// Save writes a view to filePath.
func (c *Client) Save(viewID, filePath string) error {
	return c.SendNotification(MethodSave, map[string]string{"view_id": viewID, "file_path": filePath})
}

// Exit sends the exit sentinel. The engine ends its loop and closes its
// stream, which ends the reader goroutine with StateClosed.
func (c *Client) Exit() error {
	c.closing.Store(true)
	return c.write("exit", []byte(transport.ExitSentinel+"\n"))
}
