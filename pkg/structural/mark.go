package structural

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kittclouds/readmark/pkg/textmap"
)

// AttrAnnotationID is the attribute that ties a mark to its annotation.
const AttrAnnotationID = "data-annotation-id"

func isMark(n *html.Node) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.Mark && hasAttr(n, AttrAnnotationID)
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// AnnotationAt returns the id of the innermost annotation mark containing n,
// which is the one painted on top. The reader UI calls this with the click
// target.
func AnnotationAt(n *html.Node) (string, bool) {
	for ; n != nil; n = n.Parent {
		if isMark(n) {
			return attr(n, AttrAnnotationID), true
		}
	}
	return "", false
}

// Marks returns every annotation mark under root in document order. An
// empty id matches all annotations.
func Marks(root *html.Node, id string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isMark(n) && (id == "" || attr(n, AttrAnnotationID) == id) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// UnwrapAll removes every annotation mark under root, putting the marked
// text back and merging the split text nodes. Calling it on content with no
// marks is a no-op.
func UnwrapAll(root *html.Node) int {
	return unwrap(Marks(root, ""))
}

// Remove unwraps the marks of one annotation. It reports how many marks were
// removed.
func Remove(root *html.Node, id string) int {
	if id == "" {
		return 0
	}
	return unwrap(Marks(root, id))
}

func unwrap(marks []*html.Node) int {
	parents := make(map[*html.Node]struct{})
	for _, m := range marks {
		p := m.Parent
		if p == nil {
			continue
		}
		for c := m.FirstChild; c != nil; c = m.FirstChild {
			m.RemoveChild(c)
			p.InsertBefore(c, m)
		}
		p.RemoveChild(m)
		parents[p] = struct{}{}
	}
	for p := range parents {
		normalize(p)
	}
	return len(marks)
}

// normalize merges adjacent text children of p and drops empty ones.
func normalize(p *html.Node) {
	for c := p.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type != html.TextNode {
			c = next
			continue
		}
		if c.Data == "" {
			p.RemoveChild(c)
			c = next
			continue
		}
		for next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			after := next.NextSibling
			p.RemoveChild(next)
			next = after
		}
		c = next
	}
}

// wrapText wraps UTF-16 range [from, to) of text node t in mark, which must
// be a detached element. Text outside the range stays in sibling text nodes.
func wrapText(t *html.Node, from, to int, mark *html.Node) {
	data := t.Data
	fb, tb := textmap.ByteIndex(data, from), textmap.ByteIndex(data, to)
	p := t.Parent

	if fb > 0 {
		p.InsertBefore(&html.Node{Type: html.TextNode, Data: data[:fb]}, t)
	}
	p.InsertBefore(mark, t)
	if tb < len(data) {
		t.Data = data[tb:]
	} else {
		p.RemoveChild(t)
	}
	mark.AppendChild(&html.Node{Type: html.TextNode, Data: data[fb:tb]})
}
