// Package capture turns a user selection into the raw tuple the locator
// encoders consume. Capture never fails loudly: a selection that cannot be
// used (collapsed, image-only, empty) simply yields ok=false.
package capture

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/kittclouds/readmark/pkg/geometry"
	"github.com/kittclouds/readmark/pkg/textmap"
)

// Range is a live DOM range over an x/net/html tree. Offsets follow DOM
// rules: UTF-16 units for text containers, child indexes for elements.
type Range struct {
	StartContainer *html.Node
	StartOffset    int
	EndContainer   *html.Node
	EndOffset      int
}

// Collapsed reports whether the range is a caret.
func (r Range) Collapsed() bool {
	return r.StartContainer == r.EndContainer && r.StartOffset == r.EndOffset
}

// TextSelection is a capture over HTML content.
type TextSelection struct {
	Root  *html.Node
	Text  string
	Range Range
	// Start and End are UTF-16 offsets into Root's flattened text.
	Start int
	End   int
}

// FromRange captures a DOM range under root.
func FromRange(root *html.Node, r Range) (TextSelection, bool) {
	if r.StartContainer == nil || r.EndContainer == nil || r.Collapsed() {
		return TextSelection{}, false
	}
	m := textmap.Build(root)
	start, ok := m.OffsetOf(r.StartContainer, r.StartOffset)
	if !ok {
		return TextSelection{}, false
	}
	end, ok := m.OffsetOf(r.EndContainer, r.EndOffset)
	if !ok {
		return TextSelection{}, false
	}
	return fromOffsets(m, start, end)
}

// FromTextOffsets captures the flattened UTF-16 range [start, end) under
// root. This is the form a JS TreeWalker hands over the bridge.
func FromTextOffsets(root *html.Node, start, end int) (TextSelection, bool) {
	m := textmap.Build(root)
	if start < 0 || end > m.Len() {
		return TextSelection{}, false
	}
	return fromOffsets(m, start, end)
}

func fromOffsets(m *textmap.Map, start, end int) (TextSelection, bool) {
	if end < start {
		start, end = end, start
	}
	text := m.Slice(start, end)
	// Images and other replaced content contribute no text.
	if strings.TrimSpace(text) == "" {
		return TextSelection{}, false
	}

	sn, so, ok := m.Locate(start, false)
	if !ok {
		return TextSelection{}, false
	}
	en, eo, ok := m.Locate(end, true)
	if !ok {
		return TextSelection{}, false
	}
	return TextSelection{
		Root:  m.Root,
		Text:  text,
		Range: Range{StartContainer: sn, StartOffset: so, EndContainer: en, EndOffset: eo},
		Start: start,
		End:   end,
	}, true
}

// PageSelection is a capture over a fixed-layout page.
type PageSelection struct {
	Text string
	// Page is 1-based.
	Page int
	// ClientRects are the selection's rects in viewport coordinates.
	ClientRects []geometry.Rect
	// Bounds is the page canvas rect in the same coordinates.
	Bounds geometry.Rect
	// Rotation is the clockwise rotation the page is displayed with.
	Rotation geometry.Rotation
}

// FromPage validates a fixed-layout selection. Rects with no area are
// dropped; a selection left without text or rects is not a selection.
func FromPage(page int, text string, clientRects []geometry.Rect, bounds geometry.Rect, rot geometry.Rotation) (PageSelection, bool) {
	if page < 1 || strings.TrimSpace(text) == "" {
		return PageSelection{}, false
	}
	rects := make([]geometry.Rect, 0, len(clientRects))
	for _, r := range clientRects {
		if r.Width > 0 && r.Height > 0 {
			rects = append(rects, r)
		}
	}
	if len(rects) == 0 {
		return PageSelection{}, false
	}
	return PageSelection{Text: text, Page: page, ClientRects: rects, Bounds: bounds, Rotation: rot}, true
}

// ReflowSelection is a capture over reflowable content: the renderer's own
// range token and the selected text.
type ReflowSelection struct {
	Token string
	Text  string
}

// FromReflow wraps a renderer token. An empty token means the renderer had
// nothing addressable selected.
func FromReflow(token, text string) (ReflowSelection, bool) {
	if token == "" || strings.TrimSpace(text) == "" {
		return ReflowSelection{}, false
	}
	return ReflowSelection{Token: token, Text: text}, true
}
