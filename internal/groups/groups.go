// Package groups splits TEMP report text into its five-character code groups.
package groups

import (
	"strings"
)

// Groups is the ordered, immutable group sequence of one report part.
type Groups struct {
	items []string
}

// Normalise strips transmission artefacts from report text.
// Carriage returns are dropped, letters are upper-cased and the end-of-report
// "=" that is glued to the final group is removed.
func Normalise(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ToUpper(text)
	text = strings.TrimRight(strings.TrimSpace(text), "=")
	return text
}

// Tokenise splits text on arbitrary whitespace runs. Blank lines are ignored.
func Tokenise(text string) Groups {
	fields := strings.Fields(Normalise(text))
	items := make([]string, 0, len(fields))
	for _, f := range fields {
		// A lone "=" left on its own line ends the report.
		if f == "=" {
			break
		}
		items = append(items, f)
	}
	return Groups{items: items}
}

// Len returns the number of groups.
func (g Groups) Len() int {
	return len(g.items)
}

// At returns the group at index i.
func (g Groups) At(i int) (string, bool) {
	if i < 0 || i >= len(g.items) {
		return "", false
	}
	return g.items[i], true
}

// Index returns the position of the first group equal to token at or after
// from, or -1.
func (g Groups) Index(from int, token string) int {
	for i := max(from, 0); i < len(g.items); i++ {
		if g.items[i] == token {
			return i
		}
	}
	return -1
}

// IndexFunc returns the position of the first group at or after from that
// satisfies match, or -1.
func (g Groups) IndexFunc(from int, match func(string) bool) int {
	for i := max(from, 0); i < len(g.items); i++ {
		if match(g.items[i]) {
			return i
		}
	}
	return -1
}

// Slice returns a copy of all groups.
func (g Groups) Slice() []string {
	out := make([]string, len(g.items))
	copy(out, g.items)
	return out
}

// Cursor returns a cursor positioned at index pos.
func (g Groups) Cursor(pos int) Cursor {
	return Cursor{groups: g, pos: pos}
}

// Cursor is a read position over Groups. Cursors are values: advancing one
// returns a new cursor and leaves the receiver untouched.
type Cursor struct {
	groups Groups
	pos    int
}

// Pos returns the index of the next group.
func (c Cursor) Pos() int {
	return c.pos
}

// Done reports whether no groups remain.
func (c Cursor) Done() bool {
	return c.pos >= c.groups.Len()
}

// Remaining returns the number of groups left.
func (c Cursor) Remaining() int {
	return max(c.groups.Len()-c.pos, 0)
}

// Peek returns the next group without consuming it.
func (c Cursor) Peek() (string, bool) {
	return c.groups.At(c.pos)
}

// Take returns the next n groups and the advanced cursor. When fewer than n
// groups remain nothing is consumed and ok is false.
func (c Cursor) Take(n int) ([]string, Cursor, bool) {
	if n < 0 || c.Remaining() < n {
		return nil, c, false
	}
	out := c.groups.items[c.pos : c.pos+n : c.pos+n]
	return out, Cursor{groups: c.groups, pos: c.pos + n}, true
}

// Skip advances the cursor by n groups, clamped to the end.
func (c Cursor) Skip(n int) Cursor {
	return Cursor{groups: c.groups, pos: min(c.pos+n, c.groups.Len())}
}
