// ABOUTME: Bubble Tea model for the interactive view: header, scrolling body, footer, ':' prompt
// ABOUTME: Refreshes from dispatcher snapshots; connection loss stays visible in the footer

package interactive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mauromedda/print-go/internal/dispatch"
	"github.com/mauromedda/print-go/internal/keybindings"
	"github.com/mauromedda/print-go/internal/measure"
	"github.com/mauromedda/print-go/internal/ops"
	"github.com/mauromedda/print-go/internal/rpc"
)

// lostMessage is shown in the footer once the engine is gone.
const lostMessage = "lost connection to core engine"

const tabWidth = 4

// Backend is what the model drives. session adapts the running client,
// dispatcher and workspace manager to it.
type Backend interface {
	Snapshot() dispatch.State
	ConnState() (rpc.ConnState, error)
	RelativePath() string
	SetTheme(name string) error
	SetLanguage(viewID, languageID string) error
	Open(ctx context.Context, path string) (string, error)
}

// eventMsg carries one dispatcher event into the program.
type eventMsg dispatch.Event

// connMsg carries a connection state change into the program.
type connMsg rpc.ConnEvent

// openedMsg reports the outcome of an open command.
type openedMsg struct {
	path   string
	viewID string
	err    error
}

// sentMsg reports the outcome of a theme or language request.
type sentMsg struct {
	what string
	err  error
}

// Model is the top-level interactive model.
type Model struct {
	ctx     context.Context
	backend Backend
	initial string

	state   dispatch.State
	conn    rpc.ConnState
	connErr error
	path    string
	styles  Styles
	keys    *keybindings.Manager
	help    *helpRenderer

	width  int
	height int
	offset int

	prompting bool
	input     string
	showHelp  bool
	status    string
	statusErr bool
}

// NewModel builds a model over backend. initial, when set, is opened by Init.
func NewModel(ctx context.Context, backend Backend, initial string) Model {
	conn, connErr := backend.ConnState()
	keys := keybindings.Default()
	return Model{
		ctx:     ctx,
		backend: backend,
		initial: initial,
		state:   backend.Snapshot(),
		conn:    conn,
		connErr: connErr,
		path:    backend.RelativePath(),
		styles:  DefaultStyles(),
		keys:    keys,
		help:    newHelpRenderer(helpText(keys)),
	}
}

// WithKeys returns a model using keys for normal-mode input.
func (m Model) WithKeys(keys *keybindings.Manager) Model {
	m.keys = keys
	m.help = newHelpRenderer(helpText(keys))
	return m
}

// Init opens the initial file, if any.
func (m Model) Init() tea.Cmd {
	if m.initial == "" {
		return nil
	}
	return m.openCmd(m.initial)
}

// Update handles keys, window size, dispatcher events and command results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clampOffset()
		return m, nil

	case eventMsg:
		return m.handleEvent(dispatch.Event(msg)), nil

	case connMsg:
		m.conn, m.connErr = msg.State, msg.Err
		return m, nil

	case openedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("open %s: %w", msg.path, msg.err))
			return m, nil
		}
		m.refresh()
		m.offset = 0
		m.setStatus("opened " + m.path)
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("%s: %w", msg.what, msg.err))
			return m, nil
		}
		m.setStatus(msg.what)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.prompting {
			return m.updatePrompt(msg)
		}
		if m.showHelp {
			switch a := m.keys.ActionFor(msg.String()); {
			case a == keybindings.ActionHelp, a == keybindings.ActionQuit, msg.Type == tea.KeyEsc:
				m.showHelp = false
			}
			return m, nil
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m Model) handleEvent(ev dispatch.Event) Model {
	m.refresh()
	switch op := ev.Op.(type) {
	case ops.ThemeChanged:
		m.styles = stylesForTheme(op.Theme)
	case ops.Alert:
		m.setStatus(op.Msg)
	case ops.ScrollTo:
		if op.ViewID == m.state.Focused {
			m.scrollInto(op.Line)
		}
	}
	m.clampOffset()
	return m
}

func (m *Model) refresh() {
	m.state = m.backend.Snapshot()
	m.path = m.backend.RelativePath()
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.keys.ActionFor(msg.String()) {
	case keybindings.ActionQuit:
		return m, tea.Quit
	case keybindings.ActionCommand:
		m.prompting = true
		m.input = ""
	case keybindings.ActionHelp:
		m.showHelp = true
	case keybindings.ActionScrollUp:
		m.offset--
	case keybindings.ActionScrollDown:
		m.offset++
	case keybindings.ActionPageUp:
		m.offset -= m.bodyHeight()
	case keybindings.ActionPageDown:
		m.offset += m.bodyHeight()
	case keybindings.ActionTop:
		m.offset = 0
	case keybindings.ActionBottom:
		m.offset = len(m.lines())
	}
	m.clampOffset()
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompting = false
		m.input = ""
		return m, nil
	case tea.KeyEnter:
		line := m.input
		m.prompting = false
		m.input = ""
		return m.execute(line)
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

// execute runs one prompt line.
func (m Model) execute(line string) (tea.Model, tea.Cmd) {
	cmd, err := parseCommand(line)
	if err != nil {
		m.setError(err)
		return m, nil
	}

	switch cmd.name {
	case cmdQuit:
		return m, tea.Quit

	case cmdHelp:
		m.showHelp = true
		return m, nil

	case cmdOpen:
		return m, m.openCmd(cmd.arg)

	case cmdTheme:
		name, err := resolve(cmd.arg, m.state.Themes)
		if err != nil {
			m.setError(fmt.Errorf("theme: %w", err))
			return m, nil
		}
		backend := m.backend
		return m, func() tea.Msg {
			return sentMsg{what: "theme " + name, err: backend.SetTheme(name)}
		}

	case cmdLang:
		if m.state.Focused == "" {
			m.setError(fmt.Errorf("lang: no file is open"))
			return m, nil
		}
		name, err := resolve(cmd.arg, m.state.Languages)
		if err != nil {
			m.setError(fmt.Errorf("lang: %w", err))
			return m, nil
		}
		backend, viewID := m.backend, m.state.Focused
		return m, func() tea.Msg {
			return sentMsg{what: "language " + name, err: backend.SetLanguage(viewID, name)}
		}
	}
	return m, nil
}

func (m Model) openCmd(path string) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		viewID, err := backend.Open(ctx, path)
		return openedMsg{path: path, viewID: viewID, err: err}
	}
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(err error) {
	m.status, m.statusErr = err.Error(), true
}

func (m Model) lines() []string {
	v, ok := m.state.View()
	if !ok {
		return nil
	}
	return v.Lines
}

// bodyHeight is the number of rows between the header and the footer.
func (m Model) bodyHeight() int {
	return max(m.height-2, 1)
}

func (m *Model) clampOffset() {
	limit := max(len(m.lines())-m.bodyHeight(), 0)
	m.offset = min(max(m.offset, 0), limit)
}

// scrollInto moves the window just enough to show line.
func (m *Model) scrollInto(line int) {
	h := m.bodyHeight()
	switch {
	case line < m.offset:
		m.offset = line
	case line >= m.offset+h:
		m.offset = line - h + 1
	}
}

// View renders the header, the visible body rows and the footer.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteByte('\n')
	if m.showHelp {
		b.WriteString(m.help.Render(m.width))
	} else {
		b.WriteString(m.viewBody())
	}
	b.WriteByte('\n')
	b.WriteString(m.viewFooter())
	return b.String()
}

func (m Model) viewHeader() string {
	path := m.path
	if path == "" {
		path = "[no file]"
	}
	if v, ok := m.state.View(); ok && v.Loaded && !v.Pristine {
		path += " *"
	}

	theme := m.state.Theme
	if theme == "" {
		theme = "-"
	}
	lang := "-"
	if v, ok := m.state.View(); ok && v.Language != "" {
		lang = v.Language
	}
	right := fmt.Sprintf("%s | %s | %s", theme, lang, m.conn)

	gap := m.width - measure.Width(path) - measure.Width(right)
	var line string
	if gap >= 1 {
		line = path + strings.Repeat(" ", gap) + right
	} else {
		line = measure.Truncate(path+" "+right, m.width)
	}
	return m.styles.Header.Width(m.width).Render(line)
}

func (m Model) viewBody() string {
	lines := m.lines()
	h := m.bodyHeight()
	gutter := len(fmt.Sprint(len(lines)))
	textWidth := max(m.width-gutter-1, 1)

	rows := make([]string, 0, h)
	for i := m.offset; i < len(lines) && len(rows) < h; i++ {
		num := m.styles.Gutter.Render(fmt.Sprintf("%*d", gutter, i+1))
		text := strings.ReplaceAll(lines[i], "\t", strings.Repeat(" ", tabWidth))
		rows = append(rows, num+" "+m.styles.Body.Render(measure.Truncate(text, textWidth)))
	}
	for len(rows) < h {
		rows = append(rows, m.styles.Muted.Render("~"))
	}
	return strings.Join(rows, "\n")
}

func (m Model) viewFooter() string {
	switch {
	case m.conn == rpc.StateLost:
		msg := lostMessage
		if m.connErr != nil && !errors.Is(m.connErr, rpc.ErrEngineGone) {
			msg += ": " + m.connErr.Error()
		}
		return m.styles.Error.Render(measure.Truncate(msg, m.width))
	case m.prompting:
		line := m.styles.Prompt.Render(":") + measure.Truncate(m.input, m.width-1)
		if hint := m.promptHint(); hint != "" {
			room := m.width - 1 - measure.Width(m.input) - 2
			line += "  " + m.styles.Muted.Render(measure.Truncate(hint, room))
		}
		return line
	case m.status != "" && m.statusErr:
		return m.styles.Error.Render(measure.Truncate(m.status, m.width))
	case m.status != "":
		return m.styles.Footer.Render(measure.Truncate(m.status, m.width))
	default:
		return m.styles.Muted.Render(measure.Truncate(m.keyHint(), m.width))
	}
}

// promptHint lists the best matches for a partial theme or lang query.
func (m Model) promptHint() string {
	word, query, ok := strings.Cut(m.input, " ")
	if !ok {
		return ""
	}
	var names []string
	switch commandAliases[strings.ToLower(word)] {
	case cmdTheme:
		names = m.state.Themes
	case cmdLang:
		names = m.state.Languages
	default:
		return ""
	}
	found := candidates(strings.TrimSpace(query), names)
	if len(found) > 5 {
		found = found[:5]
	}
	return strings.Join(found, " ")
}

// keyHint names the first key of the help, command and quit actions.
func (m Model) keyHint() string {
	var parts []string
	for _, h := range []struct {
		action keybindings.Action
		label  string
	}{
		{keybindings.ActionHelp, "help"},
		{keybindings.ActionCommand, "command"},
		{keybindings.ActionQuit, "quit"},
	} {
		if keys := m.keys.Keys(h.action); len(keys) > 0 {
			parts = append(parts, keys[0]+" "+h.label)
		}
	}
	return strings.Join(parts, "  ")
}
