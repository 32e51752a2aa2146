// ABOUTME: View buffer for the embedded core: text lines, a cursor, and the last state sent to the client
// ABOUTME: diff renders changes as copy/skip/ins ops against what the client already holds

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

type buffer struct {
	lines      []string
	cursorLine int
	cursorCol  int
	language   string
	path       string
	pristine   bool

	// sent mirrors the client's line cache.
	sent []wireLine
}

type wireLine struct {
	Text   string `json:"text"`
	Ln     int    `json:"ln"`
	Cursor []int  `json:"cursor,omitempty"`
}

type updateOp struct {
	Op    string     `json:"op"`
	N     int        `json:"n"`
	Ln    int        `json:"ln,omitempty"`
	Lines []wireLine `json:"lines,omitempty"`
}

type updateBody struct {
	Ops      []updateOp `json:"ops"`
	Pristine bool       `json:"pristine"`
}

// loadBuffer reads path. A missing file yields an empty buffer bound to path.
func loadBuffer(path string) (*buffer, error) {
	b := &buffer{lines: []string{""}, path: path, pristine: true, language: languageFor(path)}
	if path == "" {
		b.language = "Plain Text"
		return b, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	b.lines = strings.Split(string(data), "\n")
	return b, nil
}

func (b *buffer) text() string {
	return strings.Join(b.lines, "\n")
}

func (b *buffer) edit(method string, params json.RawMessage) error {
	switch method {
	case "insert":
		var p struct {
			Chars string `json:"chars"`
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &p); err != nil {
				return fmt.Errorf("bad insert params: %w", err)
			}
		}
		for i, part := range strings.Split(p.Chars, "\n") {
			if i > 0 {
				b.newline()
			}
			b.insert(part)
		}
	case "insert_newline":
		b.newline()
	case "delete_backward":
		b.deleteBackward()
	case "move_to_end_of_document":
		b.cursorLine = len(b.lines) - 1
		b.cursorCol = len(b.lines[b.cursorLine])
		return nil
	default:
		return fmt.Errorf("unsupported edit: %s", method)
	}
	b.pristine = false
	return nil
}

func (b *buffer) insert(s string) {
	line := b.lines[b.cursorLine]
	b.lines[b.cursorLine] = line[:b.cursorCol] + s + line[b.cursorCol:]
	b.cursorCol += len(s)
}

func (b *buffer) newline() {
	line := b.lines[b.cursorLine]
	head, tail := line[:b.cursorCol], line[b.cursorCol:]
	b.lines[b.cursorLine] = head
	b.lines = append(b.lines[:b.cursorLine+1], append([]string{tail}, b.lines[b.cursorLine+1:]...)...)
	b.cursorLine++
	b.cursorCol = 0
}

func (b *buffer) deleteBackward() {
	if b.cursorCol > 0 {
		line := b.lines[b.cursorLine]
		_, size := utf8.DecodeLastRuneInString(line[:b.cursorCol])
		b.lines[b.cursorLine] = line[:b.cursorCol-size] + line[b.cursorCol:]
		b.cursorCol -= size
		return
	}
	if b.cursorLine == 0 {
		return
	}
	prev := b.lines[b.cursorLine-1]
	b.lines[b.cursorLine-1] = prev + b.lines[b.cursorLine]
	b.lines = append(b.lines[:b.cursorLine], b.lines[b.cursorLine+1:]...)
	b.cursorLine--
	b.cursorCol = len(prev)
}

// render builds the client's view of every line: text with its newline,
// a 1-based line number, and the cursor on its line.
func (b *buffer) render() []wireLine {
	out := make([]wireLine, len(b.lines))
	for i, l := range b.lines {
		text := l
		if i < len(b.lines)-1 {
			text += "\n"
		}
		out[i] = wireLine{Text: text, Ln: i + 1}
		if i == b.cursorLine {
			out[i].Cursor = []int{b.cursorCol}
		}
	}
	return out
}

// diff returns the ops that turn the last sent state into the current one
// and records the current state as sent.
func (b *buffer) diff() updateBody {
	next := b.render()
	prev := b.sent
	b.sent = next

	prefix := 0
	for prefix < len(prev) && prefix < len(next) && sameLine(prev[prefix], next[prefix]) {
		prefix++
	}
	suffix := 0
	for suffix < len(prev)-prefix && suffix < len(next)-prefix &&
		sameLine(prev[len(prev)-1-suffix], next[len(next)-1-suffix]) {
		suffix++
	}

	var ops []updateOp
	if prefix > 0 {
		ops = append(ops, updateOp{Op: "copy", N: prefix, Ln: 1})
	}
	if removed := len(prev) - prefix - suffix; removed > 0 {
		ops = append(ops, updateOp{Op: "skip", N: removed})
	}
	if added := next[prefix : len(next)-suffix]; len(added) > 0 {
		ops = append(ops, updateOp{Op: "ins", N: len(added), Lines: added})
	}
	if suffix > 0 {
		ops = append(ops, updateOp{Op: "copy", N: suffix, Ln: len(next) - suffix + 1})
	}
	return updateBody{Ops: ops, Pristine: b.pristine}
}

// sameLine ignores Ln; copy ops renumber.
func sameLine(a, b wireLine) bool {
	if a.Text != b.Text || len(a.Cursor) != len(b.Cursor) {
		return false
	}
	for i := range a.Cursor {
		if a.Cursor[i] != b.Cursor[i] {
			return false
		}
	}
	return true
}
