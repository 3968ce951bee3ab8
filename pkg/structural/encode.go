// Package structural addresses text inside arbitrary HTML by element path
// plus UTF-16 offset, backed by a verbatim snippet, and paints annotations
// as <mark> elements wrapped around the matched text.
package structural

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/kittclouds/readmark/pkg/capture"
	"github.com/kittclouds/readmark/pkg/locator"
	"github.com/kittclouds/readmark/pkg/textmap"
)

// DefaultSnippetLen is the snippet length cap in UTF-16 units.
const DefaultSnippetLen = 256

// Encode turns a captured selection into a structural locator. When both
// ends of the selection fall in the same element (annotation marks are
// looked through) the locator has a single anchor; otherwise it records a
// start and an end anchor. snippetLen caps the stored snippet.
func Encode(sel capture.TextSelection, snippetLen int) (locator.Locator, error) {
	if snippetLen <= 0 {
		snippetLen = DefaultSnippetLen
	}
	root := sel.Root
	m := textmap.Build(root)

	startAnchor := anchorOf(root, sel.Range.StartContainer)
	endAnchor := anchorOf(root, sel.Range.EndContainer)
	if startAnchor == nil || endAnchor == nil {
		return locator.Locator{}, fmt.Errorf("structural: selection is outside the content root")
	}

	snippet := textmap.Truncate16(m.Slice(sel.Start, sel.End), snippetLen)

	if startAnchor == endAnchor {
		path, err := Path(root, startAnchor)
		if err != nil {
			return locator.Locator{}, err
		}
		base, _, _ := m.Span(startAnchor)
		return locator.NewStructural(locator.StructuralLocator{
			AnchorPath: path,
			Offset:     sel.Start - base,
			Length:     sel.End - sel.Start,
			Snippet:    snippet,
		}), nil
	}

	startPath, err := Path(root, startAnchor)
	if err != nil {
		return locator.Locator{}, err
	}
	endPath, err := Path(root, endAnchor)
	if err != nil {
		return locator.Locator{}, err
	}
	startBase, _, _ := m.Span(startAnchor)
	endBase, _, _ := m.Span(endAnchor)
	return locator.NewStructural(locator.StructuralLocator{
		StartPath:   startPath,
		StartOffset: sel.Start - startBase,
		EndPath:     endPath,
		EndOffset:   sel.End - endBase,
		Snippet:     snippet,
	}), nil
}

// anchorOf returns the nearest element at or above n that is content, not
// an annotation mark.
func anchorOf(root, n *html.Node) *html.Node {
	var anchor *html.Node
	for p := n; p != nil; p = p.Parent {
		if anchor == nil && p.Type == html.ElementNode && !isMark(p) {
			anchor = p
		}
		if p == root {
			if anchor == nil {
				return root
			}
			return anchor
		}
	}
	return nil
}
