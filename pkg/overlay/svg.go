package overlay

import (
	"fmt"
	"html"
	"strings"

	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/pagerect"
)

// SVG renders the layer as a standalone SVG sized to the displayed page.
// Every primitive carries data-annotation-id so the host can route clicks.
func (l *Layer) SVG() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.viewport.DisplaySize()
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="%s-layer" width="%g" height="%g" viewBox="0 0 %g %g">`,
		html.EscapeString(l.style.MarkClass), size.Width, size.Height, size.Width, size.Height)
	for _, m := range l.marks {
		l.writeMark(&b, m)
	}
	b.WriteString(`</svg>`)
	return b.String()
}

func (l *Layer) writeMark(b *strings.Builder, m pagerect.Mark) {
	r := m.Rect
	id := html.EscapeString(m.AnnotationID)
	color := html.EscapeString(m.Color)
	switch m.Kind {
	case annotation.KindUnderline, annotation.KindStrikethrough:
		y := r.Bottom()
		if m.Kind == annotation.KindStrikethrough {
			y = r.Y + r.Height/2
		}
		// Transparent hit area plus the visible stroke.
		fmt.Fprintf(b, `<g data-annotation-id="%s"><rect x="%g" y="%g" width="%g" height="%g" fill="none" pointer-events="all"/><line x1="%g" y1="%g" x2="%g" y2="%g" stroke="%s" stroke-width="%g"/></g>`,
			id, r.X, r.Y, r.Width, r.Height, r.X, y, r.Right(), y, color, l.viewport.Scaled(l.style.LineThickness))
	default:
		fmt.Fprintf(b, `<rect data-annotation-id="%s" x="%g" y="%g" width="%g" height="%g" fill="%s" fill-opacity="%g"/>`,
			id, r.X, r.Y, r.Width, r.Height, color, l.style.HighlightOpacity)
	}
}

