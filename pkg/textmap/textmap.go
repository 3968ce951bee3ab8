// Package textmap flattens an HTML subtree into its text content and maps
// between DOM boundary points and UTF-16 offsets into that text, the way a
// browser TreeWalker over text nodes counts characters.
package textmap

import (
	"unicode/utf16"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Segment is one text node and where its text starts in the flattened
// content. Start and Len are in UTF-16 code units.
type Segment struct {
	Node  *html.Node
	Start int
	Len   int
}

// End returns the offset just past the segment.
func (s Segment) End() int { return s.Start + s.Len }

// Map is the flattened text of a subtree.
type Map struct {
	Root     *html.Node
	Segments []Segment
	text     []uint16
}

// Skipped reports whether the text below n is never rendered as content.
func Skipped(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
		return true
	}
	return false
}

// Build walks root in document order and records every rendered text node.
func Build(root *html.Node) *Map {
	m := &Map{Root: root}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			u := utf16.Encode([]rune(n.Data))
			m.Segments = append(m.Segments, Segment{Node: n, Start: len(m.text), Len: len(u)})
			m.text = append(m.text, u...)
			return
		}
		if Skipped(n) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return m
}

// Len returns the text length in UTF-16 code units.
func (m *Map) Len() int { return len(m.text) }

// Text returns the whole flattened text.
func (m *Map) Text() string { return string(utf16.Decode(m.text)) }

// Slice returns the text in [start, end), clamped to the map.
func (m *Map) Slice(start, end int) string {
	start = max(0, min(start, len(m.text)))
	end = max(start, min(end, len(m.text)))
	return string(utf16.Decode(m.text[start:end]))
}

// Span returns the flattened range covered by el's descendants. ok is false
// when el is not inside the mapped root.
func (m *Map) Span(el *html.Node) (start, end int, ok bool) {
	if !contains(m.Root, el) {
		return 0, 0, false
	}
	start, end = -1, -1
	for _, s := range m.Segments {
		if contains(el, s.Node) {
			if start < 0 {
				start = s.Start
			}
			end = s.End()
		}
	}
	if start >= 0 {
		return start, end, true
	}
	// No text inside: the element sits at the position of the next text.
	pos := m.positionBefore(el)
	return pos, pos, true
}

// OffsetOf converts a DOM boundary point to a flattened offset. For a text
// container the offset counts UTF-16 units in that node; for an element it
// is a child index.
func (m *Map) OffsetOf(container *html.Node, offset int) (int, bool) {
	if container == nil || !contains(m.Root, container) {
		return 0, false
	}
	if container.Type == html.TextNode {
		for _, s := range m.Segments {
			if s.Node == container {
				if offset < 0 || offset > s.Len {
					return 0, false
				}
				return s.Start + offset, true
			}
		}
		// Text inside a skipped element.
		return 0, false
	}

	i := 0
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if i == offset {
			return m.positionBefore(c), true
		}
		i++
	}
	if offset != i {
		return 0, false
	}
	_, end, _ := m.Span(container)
	return end, true
}

// Locate returns the text node and local UTF-16 offset holding flattened
// offset off. At a boundary between two nodes the earlier node is returned
// when preferEnd is set, the later one otherwise.
func (m *Map) Locate(off int, preferEnd bool) (*html.Node, int, bool) {
	for i, s := range m.Segments {
		if off < s.Start || off > s.End() {
			continue
		}
		if off == s.End() && !preferEnd && i+1 < len(m.Segments) && m.Segments[i+1].Start == off {
			continue
		}
		return s.Node, off - s.Start, true
	}
	return nil, 0, false
}

// positionBefore returns the flattened offset at which n starts.
func (m *Map) positionBefore(n *html.Node) int {
	for _, s := range m.Segments {
		if s.Node == n || contains(n, s.Node) || follows(n, s.Node) {
			return s.Start
		}
	}
	return len(m.text)
}

// ============================================================================
// Tree helpers
// ============================================================================

func contains(anc, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == anc {
			return true
		}
	}
	return false
}

// follows reports whether b comes after a in document order (and is not
// inside it).
func follows(a, b *html.Node) bool {
	if contains(a, b) || contains(b, a) {
		return false
	}
	pa, pb := ancestry(a), ancestry(b)
	i := 0
	for i < len(pa) && i < len(pb) && pa[i] == pb[i] {
		i++
	}
	if i == 0 || i >= len(pa) || i >= len(pb) {
		return false
	}
	for c := pa[i]; c != nil; c = c.NextSibling {
		if c == pb[i] {
			return true
		}
	}
	return false
}

// ancestry lists n's ancestors from the top down, n included.
func ancestry(n *html.Node) []*html.Node {
	var out []*html.Node
	for ; n != nil; n = n.Parent {
		out = append(out, n)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ============================================================================
// UTF-16 helpers
// ============================================================================

// Len16 returns the UTF-16 length of s.
func Len16(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// ByteIndex converts a UTF-16 offset into s to a byte offset. Offsets that
// fall inside a surrogate pair round down to the rune start.
func ByteIndex(s string, off16 int) int {
	n := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if n+w > off16 {
			return i
		}
		n += w
	}
	return len(s)
}

// Truncate16 cuts s to at most max UTF-16 units without splitting a rune.
func Truncate16(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	return s[:ByteIndex(s, limit)]
}
