// ABOUTME: Command-line parsing for the interactive ':' prompt (theme, lang, open, help, q)
// ABOUTME: Theme and language queries resolve against the engine's names via sahilm/fuzzy

package interactive

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Command names accepted at the ':' prompt.
const (
	cmdTheme = "theme"
	cmdLang  = "lang"
	cmdOpen  = "open"
	cmdHelp  = "help"
	cmdQuit  = "q"
)

var commandAliases = map[string]string{
	"theme":    cmdTheme,
	"t":        cmdTheme,
	"lang":     cmdLang,
	"language": cmdLang,
	"l":        cmdLang,
	"open":     cmdOpen,
	"o":        cmdOpen,
	"e":        cmdOpen,
	"help":     cmdHelp,
	"h":        cmdHelp,
	"q":        cmdQuit,
	"quit":     cmdQuit,
}

// command is one parsed prompt line.
type command struct {
	name string
	arg  string
}

// parseCommand splits a prompt line into a known command and its argument.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, fmt.Errorf("empty command")
	}
	word, arg, _ := strings.Cut(line, " ")
	name, ok := commandAliases[strings.ToLower(word)]
	if !ok {
		return command{}, fmt.Errorf("unknown command: %s", word)
	}
	arg = strings.TrimSpace(arg)
	switch name {
	case cmdTheme, cmdLang, cmdOpen:
		if arg == "" {
			return command{}, fmt.Errorf("%s needs an argument", name)
		}
	}
	return command{name: name, arg: arg}, nil
}

// resolve picks the name that best matches query. A case-insensitive exact
// match wins; otherwise the highest fuzzy score does.
func resolve(query string, names []string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("nothing to choose from yet")
	}
	for _, n := range names {
		if strings.EqualFold(n, query) {
			return n, nil
		}
	}
	matches := fuzzy.Find(query, names)
	if len(matches) == 0 {
		return "", fmt.Errorf("no match for %q", query)
	}
	return matches[0].Str, nil
}

// candidates lists every name that matches query, best first.
func candidates(query string, names []string) []string {
	if query == "" {
		return names
	}
	matches := fuzzy.Find(query, names)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Str
	}
	return out
}
