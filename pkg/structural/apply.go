package structural

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kittclouds/readmark/internal/logx"
	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/locator"
	"github.com/kittclouds/readmark/pkg/style"
	"github.com/kittclouds/readmark/pkg/textmap"
)

// MatchedBy says which strategy located an annotation.
type MatchedBy string

const (
	ByPath      MatchedBy = "path"
	BySnippet   MatchedBy = "snippet"
	ByCollapsed MatchedBy = "collapsed"
)

// Match is a resolved flattened text range.
type Match struct {
	Start int
	End   int
	By    MatchedBy
}

// Resolve locates s in the content mapped by m. Paths are tried first and
// only trusted when the addressed text starts with the snippet; otherwise
// the first occurrence of the snippet in document order is used, then the
// first whitespace-insensitive occurrence.
func Resolve(m *textmap.Map, s locator.StructuralLocator) (Match, error) {
	if start, end, ok := resolvePaths(m, s); ok {
		return Match{Start: start, End: end, By: ByPath}, nil
	}
	if start, end, ok := m.Index(s.Snippet); ok {
		return Match{Start: start, End: end, By: BySnippet}, nil
	}
	if start, end, ok := m.IndexCollapsed(s.Snippet); ok {
		return Match{Start: start, End: end, By: ByCollapsed}, nil
	}
	return Match{}, fmt.Errorf("%w: snippet %q not found", locator.ErrUnresolvable, textmap.Truncate16(s.Snippet, 40))
}

func resolvePaths(m *textmap.Map, s locator.StructuralLocator) (int, int, bool) {
	var start, end int
	if s.Dual() {
		a, err := ResolvePath(m.Root, s.StartPath)
		if err != nil {
			return 0, 0, false
		}
		b, err := ResolvePath(m.Root, s.EndPath)
		if err != nil {
			return 0, 0, false
		}
		aStart, aEnd, _ := m.Span(a)
		bStart, bEnd, _ := m.Span(b)
		start, end = aStart+s.StartOffset, bStart+s.EndOffset
		if start > aEnd || end > bEnd || end <= start {
			return 0, 0, false
		}
	} else {
		el, err := ResolvePath(m.Root, s.AnchorPath)
		if err != nil {
			return 0, 0, false
		}
		elStart, elEnd, _ := m.Span(el)
		start, end = elStart+s.Offset, elStart+s.Offset+s.Length
		if end > elEnd {
			return 0, 0, false
		}
	}
	if !strings.HasPrefix(m.Slice(start, end), s.Snippet) {
		return 0, 0, false
	}
	return start, end, true
}

// Applier paints structural annotations into an HTML tree.
type Applier struct {
	style style.Style
}

// NewApplier returns an applier painting with st.
func NewApplier(st style.Style) *Applier {
	return &Applier{style: st}
}

// Apply removes every existing mark under root and then paints all
// structural annotations in list. Locators are resolved newest first against
// the unmarked content; painting then runs oldest first, and a newer range
// that covers text already inside an older mark is wrapped inside that mark.
// Where ranges overlap the newer mark is therefore always the later node in
// paint order, and every applied annotation keeps at least one mark.
// Annotations that fail to resolve are skipped and reported; they never stop
// the others.
func (ap *Applier) Apply(root *html.Node, list []annotation.Annotation) annotation.Report {
	UnwrapAll(root)

	type resolved struct {
		a     annotation.Annotation
		match Match
	}
	var (
		rep     annotation.Report
		pending []resolved
	)
	m := textmap.Build(root)
	for _, a := range annotation.NewestFirst(annotation.OfType(list, locator.TypeStructural)) {
		match, err := resolve(m, a)
		if err != nil {
			rep.Fail(a, err)
			continue
		}
		pending = append(pending, resolved{a: a, match: match})
	}

	failed := make(map[string]bool)
	for i := len(pending) - 1; i >= 0; i-- {
		r := pending[i]
		if ap.wrap(textmap.Build(root), r.match.Start, r.match.End, r.a) == 0 {
			rep.Fail(r.a, fmt.Errorf("%w: no text to mark", locator.ErrUnresolvable))
			failed[r.a.ID] = true
			continue
		}
		logx.Logger().Debug("structural annotation applied",
			slog.String("annotation_id", r.a.ID),
			slog.String("matched_by", string(r.match.By)),
		)
	}
	for _, r := range pending {
		if !failed[r.a.ID] {
			rep.Ok(r.a.ID)
		}
	}
	return rep
}

// Remove takes one annotation's marks out of root.
func (ap *Applier) Remove(root *html.Node, id string) int {
	return Remove(root, id)
}

func resolve(m *textmap.Map, a annotation.Annotation) (Match, error) {
	if err := a.Locator.Validate(); err != nil {
		return Match{}, err
	}
	return Resolve(m, *a.Locator.Structural)
}

// wrap marks every non-blank text node overlapping [start, end), including
// text already inside other marks, and returns the number of marks made.
func (ap *Applier) wrap(m *textmap.Map, start, end int, a annotation.Annotation) int {
	n := 0
	for _, seg := range m.Segments {
		if seg.End() <= start || seg.Start >= end {
			continue
		}
		if strings.TrimSpace(seg.Node.Data) == "" {
			continue
		}
		from := max(start, seg.Start) - seg.Start
		to := min(end, seg.End()) - seg.Start
		wrapText(seg.Node, from, to, ap.newMark(a))
		n++
	}
	return n
}

func (ap *Applier) newMark(a annotation.Annotation) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "mark",
		DataAtom: atom.Mark,
		Attr: []html.Attribute{
			{Key: "class", Val: ap.style.Classes(a.Kind)},
			{Key: AttrAnnotationID, Val: a.ID},
			{Key: "style", Val: ap.style.CSS(a)},
		},
	}
}
