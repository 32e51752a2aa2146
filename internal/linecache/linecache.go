// ABOUTME: Per-view line cache rebuilt from update op streams (copy, skip, invalidate, ins, update)
// ABOUTME: Invalid lines are kept as nil placeholders so indices stay aligned with the engine

package linecache

import (
	"fmt"
	"strings"

	"github.com/mauromedda/print-go/internal/ops"
)

// Op names.
const (
	OpCopy       = "copy"
	OpSkip       = "skip"
	OpInvalidate = "invalidate"
	OpIns        = "ins"
	OpUpdate     = "update"
)

// Cache holds the lines of one view. A nil entry is an invalid line.
type Cache struct {
	lines    []*ops.Line
	pristine bool
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Apply rebuilds the cache from body. On error the cache is left unchanged.
func (c *Cache) Apply(body ops.UpdateBody) error {
	next := make([]*ops.Line, 0, len(c.lines))
	oldIx := 0

	take := func(op ops.UpdateOp) ([]*ops.Line, error) {
		if op.N < 0 || oldIx+op.N > len(c.lines) {
			return nil, fmt.Errorf("%s %d at line %d: past end of cache (%d lines)", op.Op, op.N, oldIx, len(c.lines))
		}
		chunk := c.lines[oldIx : oldIx+op.N]
		oldIx += op.N
		return chunk, nil
	}

	for _, op := range body.Ops {
		switch op.Op {
		case OpCopy:
			chunk, err := take(op)
			if err != nil {
				return err
			}
			for k, line := range chunk {
				if line == nil {
					next = append(next, nil)
					continue
				}
				cp := cloneLine(line)
				if op.Ln > 0 && cp.Ln > 0 {
					cp.Ln = op.Ln + k
				}
				next = append(next, cp)
			}
		case OpSkip:
			if _, err := take(op); err != nil {
				return err
			}
		case OpInvalidate:
			if op.N < 0 {
				return fmt.Errorf("invalidate %d: negative count", op.N)
			}
			for range op.N {
				next = append(next, nil)
			}
		case OpIns:
			for i := range op.Lines {
				next = append(next, cloneLine(&op.Lines[i]))
			}
		case OpUpdate:
			chunk, err := take(op)
			if err != nil {
				return err
			}
			if len(op.Lines) != len(chunk) {
				return fmt.Errorf("update %d: got %d lines", op.N, len(op.Lines))
			}
			for k, line := range chunk {
				fresh := op.Lines[k]
				if line != nil {
					fresh.Text = line.Text
				}
				next = append(next, cloneLine(&fresh))
			}
		default:
			return fmt.Errorf("unknown update op %q", op.Op)
		}
	}

	c.lines = next
	c.pristine = body.Pristine
	return nil
}

func cloneLine(l *ops.Line) *ops.Line {
	cp := *l
	cp.Cursor = append([]int(nil), l.Cursor...)
	cp.Styles = append([]int(nil), l.Styles...)
	return &cp
}

// Len returns the number of lines, valid or not.
func (c *Cache) Len() int { return len(c.lines) }

// Line returns line i and whether it is valid.
func (c *Cache) Line(i int) (ops.Line, bool) {
	if i < 0 || i >= len(c.lines) || c.lines[i] == nil {
		return ops.Line{}, false
	}
	return *c.lines[i], true
}

// Pristine reports whether the buffer matches what is on disk.
func (c *Cache) Pristine() bool { return c.pristine }

// Lines returns the text of every line without its trailing newline.
// Invalid lines are empty.
func (c *Cache) Lines() []string {
	out := make([]string, len(c.lines))
	for i, l := range c.lines {
		if l != nil {
			out[i] = strings.TrimSuffix(l.Text, "\n")
		}
	}
	return out
}

// Text concatenates the valid lines.
func (c *Cache) Text() string {
	var b strings.Builder
	for _, l := range c.lines {
		if l != nil {
			b.WriteString(l.Text)
		}
	}
	return b.String()
}

// Cursor returns the first line holding a cursor and its column, or false.
func (c *Cache) Cursor() (line, col int, ok bool) {
	for i, l := range c.lines {
		if l != nil && len(l.Cursor) > 0 {
			return i, l.Cursor[0], true
		}
	}
	return 0, 0, false
}

// Clone returns an independent copy.
func (c *Cache) Clone() *Cache {
	out := &Cache{lines: make([]*ops.Line, len(c.lines)), pristine: c.pristine}
	for i, l := range c.lines {
		if l != nil {
			out.lines[i] = cloneLine(l)
		}
	}
	return out
}
