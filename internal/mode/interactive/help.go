// ABOUTME: Help screen text rendered through glamour for the interactive view
// ABOUTME: Caches the rendering per width; falls back to the raw markdown on error

package interactive

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/mauromedda/print-go/internal/keybindings"
)

// helpText builds the help screen markdown around the key table.
func helpText(keys *keybindings.Manager) string {
	return "# print-go\n\n## Keys\n\n" + keys.Markdown() + `
## Commands

- ` + "`:theme <query>`" + ` switch theme; the query is matched fuzzily
- ` + "`:lang <query>`" + ` switch the language of the current file
- ` + "`:open <path>`" + ` open another file
- ` + "`:help`" + ` show this help
- ` + "`:q`" + ` quit
`
}

// helpRenderer renders the help text with glamour.
type helpRenderer struct {
	md    string
	cache map[int]string
}

func newHelpRenderer(md string) *helpRenderer {
	return &helpRenderer{md: md, cache: make(map[int]string)}
}

// Render returns the help screen wrapped at width columns.
func (r *helpRenderer) Render(width int) string {
	if width <= 0 {
		width = 80
	}
	if cached, ok := r.cache[width]; ok {
		return cached
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return r.md
	}
	rendered, err := renderer.Render(r.md)
	if err != nil {
		return r.md
	}
	rendered = strings.TrimRight(rendered, "\n ")

	r.cache[width] = rendered
	return rendered
}
