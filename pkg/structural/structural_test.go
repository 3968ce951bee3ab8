package structural

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/capture"
	"github.com/kittclouds/readmark/pkg/locator"
	"github.com/kittclouds/readmark/pkg/style"
	"github.com/kittclouds/readmark/pkg/textmap"
)

func parseFragment(t *testing.T, src string) *html.Node {
	t.Helper()
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(src), root)
	require.NoError(t, err)
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root
}

func render(t *testing.T, root *html.Node) string {
	t.Helper()
	out, err := InnerHTML(root)
	require.NoError(t, err)
	return out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func single(id string, createdAt int64, path string, offset, length int, snippet string) annotation.Annotation {
	return annotation.Annotation{
		ID:        id,
		SourceID:  "web-1",
		Kind:      annotation.KindHighlight,
		CreatedAt: createdAt,
		Locator: locator.NewStructural(locator.StructuralLocator{
			AnchorPath: path, Offset: offset, Length: length, Snippet: snippet,
		}),
	}
}

// ============================================================================
// Paths
// ============================================================================

func TestPathRoundTrip(t *testing.T) {
	root := parseFragment(t, `<div><p>a</p><p>b<span>c</span></p></div><section id="main"><p>x</p><p>y</p></section>`)
	div := root.FirstChild
	span := div.LastChild.LastChild
	second := root.LastChild.LastChild

	tests := []struct {
		el   *html.Node
		want string
	}{
		{root, "/"},
		{div, "/div[1]"},
		{span, "/div[1]/p[2]/span[1]"},
		{root.LastChild, "//*[@id='main']"},
		{second, "//*[@id='main']/p[2]"},
	}
	for _, tt := range tests {
		got, err := Path(root, tt.el)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)

		el, err := ResolvePath(root, got)
		require.NoError(t, err)
		assert.Same(t, tt.el, el, got)
	}
}

func TestResolvePathErrors(t *testing.T) {
	root := parseFragment(t, `<p>a</p>`)

	_, err := ResolvePath(root, "/p[2]")
	assert.ErrorIs(t, err, locator.ErrUnresolvable)
	_, err = ResolvePath(root, "//*[@id='gone']/p[1]")
	assert.ErrorIs(t, err, locator.ErrUnresolvable)
	_, err = ResolvePath(root, "/p[zero]")
	assert.ErrorIs(t, err, locator.ErrMalformed)
	_, err = ResolvePath(root, "p[1]")
	assert.ErrorIs(t, err, locator.ErrMalformed)
	_, err = ResolvePath(root, "//*[@id='open")
	assert.ErrorIs(t, err, locator.ErrMalformed)

	el, err := ResolvePath(root, "/P")
	require.NoError(t, err)
	assert.Equal(t, "p", el.Data)
}

func TestPathIgnoresMarks(t *testing.T) {
	root := parseFragment(t, `<p>one</p><mark data-annotation-id="x">two</mark><mark>kept</mark><p>three</p>`)
	got, err := Path(root, root.LastChild)
	require.NoError(t, err)
	assert.Equal(t, "/p[2]", got)

	got, err = Path(root, root.LastChild.PrevSibling)
	require.NoError(t, err)
	assert.Equal(t, "/mark[1]", got)
}

// ============================================================================
// Encoding
// ============================================================================

func TestEncodeSingleAnchor(t *testing.T) {
	root := parseFragment(t, `<p>intro</p><p>hello world</p>`)
	text := root.LastChild.FirstChild
	sel, ok := capture.FromRange(root, capture.Range{StartContainer: text, StartOffset: 6, EndContainer: text, EndOffset: 11})
	require.True(t, ok)

	loc, err := Encode(sel, 0)
	require.NoError(t, err)
	assert.Equal(t, locator.StructuralLocator{AnchorPath: "/p[2]", Offset: 6, Length: 5, Snippet: "world"}, *loc.Structural)
	assert.NoError(t, loc.Validate())
}

func TestEncodeDualAnchor(t *testing.T) {
	root := parseFragment(t, `<p>alpha beta</p><p>gamma delta</p>`)
	sel, ok := capture.FromRange(root, capture.Range{
		StartContainer: root.FirstChild.FirstChild, StartOffset: 6,
		EndContainer: root.LastChild.FirstChild, EndOffset: 5,
	})
	require.True(t, ok)

	loc, err := Encode(sel, 0)
	require.NoError(t, err)
	s := loc.Structural
	require.True(t, s.Dual())
	assert.Equal(t, locator.StructuralLocator{
		StartPath: "/p[1]", StartOffset: 6, EndPath: "/p[2]", EndOffset: 5, Snippet: "betagamma",
	}, *s)
}

func TestEncodeTruncatesSnippet(t *testing.T) {
	root := parseFragment(t, `<p>abcdefghij</p>`)
	sel, ok := capture.FromTextOffsets(root, 2, 9)
	require.True(t, ok)

	loc, err := Encode(sel, 4)
	require.NoError(t, err)
	assert.Equal(t, "cdef", loc.Structural.Snippet)
	assert.Equal(t, 7, loc.Structural.Length)
}

func TestEncodeLooksThroughMarks(t *testing.T) {
	root := parseFragment(t, `<section id="s"><p>hello <mark data-annotation-id="old">world</mark></p></section>`)
	p := root.FirstChild.FirstChild
	mark := p.LastChild
	sel, ok := capture.FromRange(root, capture.Range{
		StartContainer: p.FirstChild, StartOffset: 3,
		EndContainer: mark.FirstChild, EndOffset: 2,
	})
	require.True(t, ok)

	loc, err := Encode(sel, 0)
	require.NoError(t, err)
	assert.Equal(t, locator.StructuralLocator{AnchorPath: "//*[@id='s']/p[1]", Offset: 3, Length: 5, Snippet: "lo wo"}, *loc.Structural)
}

// ============================================================================
// Resolution and painting
// ============================================================================

func TestApplyIsIdempotent(t *testing.T) {
	root := parseFragment(t, `<p>hello world</p>`)
	ap := NewApplier(style.Default())
	list := []annotation.Annotation{single("a1", 1, "/p[1]", 6, 5, "world")}

	rep := ap.Apply(root, list)
	assert.Equal(t, []string{"a1"}, rep.Applied)
	first := render(t, root)
	assert.Equal(t, `<p>hello <mark class="kb-highlight kb-highlight-highlight" data-annotation-id="a1" style="background-color: #ffd54f">world</mark></p>`, first)

	for range 3 {
		ap.Apply(root, list)
	}
	assert.Equal(t, first, render(t, root))
	assert.Len(t, Marks(root, ""), 1)
}

func TestApplyNewestOnTop(t *testing.T) {
	root := parseFragment(t, `<p>abcdefgh</p>`)
	older := single("t1", 100, "/p[1]", 1, 4, "bcde")
	newer := single("t2", 200, "/p[1]", 3, 4, "defg")

	rep := NewApplier(style.Default()).Apply(root, []annotation.Annotation{older, newer})
	assert.Equal(t, []string{"t2", "t1"}, rep.Applied)

	markOld := Marks(root, "t1")
	markNew := Marks(root, "t2")
	require.Len(t, markOld, 1)
	require.Len(t, markNew, 2)
	assert.Equal(t, "bc", textOf(markOld[0]))
	assert.Equal(t, "de", textOf(markNew[0]))
	assert.Same(t, markOld[0], markNew[0].Parent)
	assert.Equal(t, "fg", textOf(markNew[1]))
	assert.Same(t, markOld[0], markNew[1].PrevSibling)

	id, ok := AnnotationAt(markNew[0].FirstChild)
	require.True(t, ok)
	assert.Equal(t, "t2", id)

	// Text content is untouched by painting.
	assert.Equal(t, "abcdefgh", textmap.Build(root).Text())
}

func TestApplyNewestOnTopWhenStartingEarlier(t *testing.T) {
	root := parseFragment(t, `<p>abcdefgh</p>`)
	older := single("t1", 100, "/p[1]", 3, 4, "defg")
	newer := single("t2", 200, "/p[1]", 1, 4, "bcde")

	rep := NewApplier(style.Default()).Apply(root, []annotation.Annotation{newer, older})
	require.Len(t, rep.Applied, 2)

	markOld := Marks(root, "t1")
	markNew := Marks(root, "t2")
	require.Len(t, markOld, 1)
	require.Len(t, markNew, 2)
	assert.Equal(t, "bc", textOf(markNew[0]))
	assert.Equal(t, "de", textOf(markNew[1]))
	assert.Same(t, markOld[0], markNew[1].Parent)
	assert.Equal(t, "fg", textOf(markOld[0]))

	// The overlap belongs to the newer annotation, the rest of t1 to t1.
	id, _ := AnnotationAt(markNew[1].FirstChild)
	assert.Equal(t, "t2", id)
	id, _ = AnnotationAt(markOld[0].LastChild)
	assert.Equal(t, "t1", id)
	assert.Equal(t, "abcdefgh", textmap.Build(root).Text())
}

func TestApplyKeepsContainedOlderAnnotation(t *testing.T) {
	root := parseFragment(t, `<p>abcdefgh</p>`)
	inner := single("t1", 100, "/p[1]", 2, 2, "cd")
	outer := single("t2", 200, "/p[1]", 1, 5, "bcdef")

	ap := NewApplier(style.Default())
	rep := ap.Apply(root, []annotation.Annotation{inner, outer})
	assert.ElementsMatch(t, []string{"t1", "t2"}, rep.Applied)
	assert.Empty(t, rep.Failed)

	markInner := Marks(root, "t1")
	require.Len(t, markInner, 1)
	require.NotNil(t, markInner[0].FirstChild)
	nested := markInner[0].FirstChild
	id, ok := AnnotationAt(nested.FirstChild)
	require.True(t, ok)
	assert.Equal(t, "t2", id)
	assert.Equal(t, "cd", textOf(nested))
	assert.Len(t, Marks(root, "t2"), 3)

	// Removing the newer annotation uncovers the older one.
	assert.Equal(t, 3, ap.Remove(root, "t2"))
	assert.Equal(t, `<p>ab<mark class="kb-highlight kb-highlight-highlight" data-annotation-id="t1" style="background-color: #ffd54f">cd</mark>efgh</p>`, render(t, root))

	// Re-applying restores the same tree.
	ap.Apply(root, []annotation.Annotation{inner, outer})
	first := render(t, root)
	ap.Apply(root, []annotation.Annotation{outer, inner})
	assert.Equal(t, first, render(t, root))
}

func TestApplyReportsBlankRange(t *testing.T) {
	root := parseFragment(t, "<p>a</p> <p>b</p>")
	blank := annotation.Annotation{
		ID: "w1", CreatedAt: 1,
		Locator: locator.NewStructural(locator.StructuralLocator{AnchorPath: "/", Offset: 1, Length: 1, Snippet: " "}),
	}
	rep := NewApplier(style.Default()).Apply(root, []annotation.Annotation{blank})
	assert.Empty(t, rep.Applied)
	require.Len(t, rep.Failed, 1)
	assert.ErrorIs(t, rep.Failed[0].Err, locator.ErrUnresolvable)
	assert.Empty(t, Marks(root, ""))
}

func TestApplyDualAnchor(t *testing.T) {
	root := parseFragment(t, `<p>alpha beta</p><p>gamma delta</p>`)
	a := annotation.Annotation{
		ID: "d1", CreatedAt: 1, Kind: annotation.KindUnderline,
		Locator: locator.NewStructural(locator.StructuralLocator{
			StartPath: "/p[1]", StartOffset: 6, EndPath: "/p[2]", EndOffset: 5, Snippet: "betagamma",
		}),
	}
	rep := NewApplier(style.Default()).Apply(root, []annotation.Annotation{a})
	require.Equal(t, []string{"d1"}, rep.Applied)

	marks := Marks(root, "d1")
	require.Len(t, marks, 2)
	assert.Equal(t, "beta", textOf(marks[0]))
	assert.Equal(t, "gamma", textOf(marks[1]))
	assert.Equal(t, "kb-highlight kb-highlight-underline", attr(marks[0], "class"))
}

func TestSnippetFallbackAfterRestructure(t *testing.T) {
	before := parseFragment(t, `<div><p>intro</p><p>the quick brown fox</p></div>`)
	text := before.FirstChild.LastChild.FirstChild
	sel, ok := capture.FromRange(before, capture.Range{StartContainer: text, StartOffset: 4, EndContainer: text, EndOffset: 15})
	require.True(t, ok)
	loc, err := Encode(sel, 0)
	require.NoError(t, err)
	require.Equal(t, "/div[1]/p[2]", loc.Structural.AnchorPath)

	after := parseFragment(t, `<article><div><p>new intro</p></div><div><p>lead</p><p>the quick brown fox</p></div></article>`)
	match, err := Resolve(textmap.Build(after), *loc.Structural)
	require.NoError(t, err)
	assert.Equal(t, BySnippet, match.By)

	a := annotation.Annotation{ID: "w1", CreatedAt: 1, Locator: loc}
	rep := NewApplier(style.Default()).Apply(after, []annotation.Annotation{a})
	require.Equal(t, []string{"w1"}, rep.Applied)
	marks := Marks(after, "w1")
	require.Len(t, marks, 1)
	assert.Equal(t, "quick brown", textOf(marks[0]))
}

func TestPathNotTrustedWithoutSnippet(t *testing.T) {
	root := parseFragment(t, `<p>hello there world</p><p>world peace</p>`)
	match, err := Resolve(textmap.Build(root), locator.StructuralLocator{
		AnchorPath: "/p[1]", Offset: 6, Length: 5, Snippet: "world",
	})
	require.NoError(t, err)
	assert.Equal(t, BySnippet, match.By)
	assert.Equal(t, 12, match.Start)
	assert.Equal(t, 17, match.End)
}

func TestCollapsedWhitespaceFallback(t *testing.T) {
	root := parseFragment(t, "<p>the quick\n   brown fox</p>")
	a := single("c1", 1, "/p[7]", 0, 11, "quick brown")

	rep := NewApplier(style.Default()).Apply(root, []annotation.Annotation{a})
	require.Equal(t, []string{"c1"}, rep.Applied)
	marks := Marks(root, "c1")
	require.Len(t, marks, 1)
	assert.Equal(t, "quick\n   brown", textOf(marks[0]))
}

func TestScriptTextNeverMatches(t *testing.T) {
	root := parseFragment(t, `<script>var secret = 1;</script><p>no secret here</p>`)
	rep := NewApplier(style.Default()).Apply(root, []annotation.Annotation{single("s1", 1, "/p[9]", 0, 6, "secret")})
	require.Equal(t, []string{"s1"}, rep.Applied)

	marks := Marks(root, "s1")
	require.Len(t, marks, 1)
	assert.Equal(t, "p", marks[0].Parent.Data)
	assert.Equal(t, "var secret = 1;", root.FirstChild.FirstChild.Data)
}

func TestFailuresAreIsolated(t *testing.T) {
	root := parseFragment(t, `<p>hello world</p>`)
	good := single("good", 1, "/p[1]", 0, 5, "hello")
	gone := single("gone", 2, "/p[1]", 0, 7, "missing")
	broken := single("broken", 3, "/p[1]", 0, 0, "")

	rep := NewApplier(style.Default()).Apply(root, []annotation.Annotation{good, gone, broken})
	assert.Equal(t, []string{"good"}, rep.Applied)
	require.Len(t, rep.Failed, 2)
	assert.Equal(t, "broken", rep.Failed[0].ID)
	assert.ErrorIs(t, rep.Failed[0].Err, locator.ErrMalformed)
	assert.Equal(t, "gone", rep.Failed[1].ID)
	assert.ErrorIs(t, rep.Failed[1].Err, locator.ErrUnresolvable)
	assert.Len(t, Marks(root, ""), 1)
}

func TestIgnoresOtherLocatorTypes(t *testing.T) {
	root := parseFragment(t, `<p>x</p>`)
	rep := NewApplier(style.Default()).Apply(root, []annotation.Annotation{
		{ID: "cfi", Locator: locator.NewCfi("epubcfi(/6/2)")},
	})
	assert.Empty(t, rep.Applied)
	assert.Empty(t, rep.Failed)
}

func TestRemove(t *testing.T) {
	root := parseFragment(t, `<p>one two three</p>`)
	ap := NewApplier(style.Default())
	ap.Apply(root, []annotation.Annotation{
		single("a", 1, "/p[1]", 0, 3, "one"),
		single("b", 2, "/p[1]", 8, 5, "three"),
	})
	require.Len(t, Marks(root, ""), 2)

	assert.Equal(t, 1, ap.Remove(root, "a"))
	assert.Equal(t, 0, ap.Remove(root, "a"))
	assert.Len(t, Marks(root, ""), 1)

	assert.Equal(t, 1, UnwrapAll(root))
	assert.Equal(t, `<p>one two three</p>`, render(t, root))
	assert.Equal(t, 1, countChildren(root.FirstChild))

	_, ok := AnnotationAt(root.FirstChild.FirstChild)
	assert.False(t, ok)
}

func countChildren(n *html.Node) int {
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		i++
	}
	return i
}

func TestParseDocumentRoot(t *testing.T) {
	_, root, err := ParseDocument(strings.NewReader(`<html><head><title>t</title></head><body><p>hello world</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "body", root.Data)

	rep := NewApplier(style.Default()).Apply(root, []annotation.Annotation{single("a1", 1, "/p[1]", 0, 5, "hello")})
	assert.Equal(t, []string{"a1"}, rep.Applied)
	assert.Equal(t, `<p><mark class="kb-highlight kb-highlight-highlight" data-annotation-id="a1" style="background-color: #ffd54f">hello</mark> world</p>`, render(t, root))
}
