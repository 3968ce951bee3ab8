// Package overlay paints resolved annotation geometry for fixed-layout
// pages and schedules re-resolution when the view changes.
//
// A Layer holds the marks of one page. Render replaces them wholesale, so
// calling it again with the same inputs yields the same layer.
package overlay

import (
	"log/slog"
	"sync"

	"github.com/kittclouds/readmark/internal/logx"
	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/geometry"
	"github.com/kittclouds/readmark/pkg/pagerect"
	"github.com/kittclouds/readmark/pkg/style"
)

// Layer is the overlay of one rendered page.
type Layer struct {
	mu       sync.RWMutex
	resolver *pagerect.Resolver
	style    style.Style
	viewport pagerect.Viewport
	marks    []pagerect.Mark
	onClick  func(id string)
}

// NewLayer returns an empty layer.
func NewLayer(st style.Style) *Layer {
	return &Layer{resolver: pagerect.NewResolver(st), style: st}
}

// SetEpsilon sets the tolerance used when validating stored rects.
func (l *Layer) SetEpsilon(eps float64) {
	l.mu.Lock()
	l.resolver.Epsilon = eps
	l.mu.Unlock()
}

// OnClick sets the handler called by Click with the hit annotation id.
func (l *Layer) OnClick(fn func(id string)) {
	l.mu.Lock()
	l.onClick = fn
	l.mu.Unlock()
}

// Render resolves list against vp and replaces the layer's marks.
func (l *Layer) Render(vp pagerect.Viewport, list []annotation.Annotation) pagerect.Result {
	l.mu.RLock()
	resolver := *l.resolver
	l.mu.RUnlock()
	res := resolver.Resolve(vp, list)

	l.mu.Lock()
	l.viewport = vp
	l.marks = res.Marks
	l.mu.Unlock()

	logx.Logger().Debug("page overlay rendered",
		slog.Int("page", vp.Page),
		slog.Int("marks", len(res.Marks)),
		slog.Int("failed", len(res.Report.Failed)),
	)
	return res
}

// Viewport returns the viewport of the last Render.
func (l *Layer) Viewport() pagerect.Viewport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viewport
}

// Marks returns a copy of the current marks in paint order.
func (l *Layer) Marks() []pagerect.Mark {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]pagerect.Mark(nil), l.marks...)
}

// Remove drops every mark of annotation id and reports how many went.
func (l *Layer) Remove(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := make([]pagerect.Mark, 0, len(l.marks))
	for _, m := range l.marks {
		if m.AnnotationID != id {
			kept = append(kept, m)
		}
	}
	n := len(l.marks) - len(kept)
	l.marks = kept
	return n
}

// HitTest returns the topmost annotation under the page pixel (x, y).
func (l *Layer) HitTest(x, y float64) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.marks) - 1; i >= 0; i-- {
		if l.marks[i].Rect.Contains(x, y) {
			return l.marks[i].AnnotationID, true
		}
	}
	return "", false
}

// Click hit-tests (x, y) and reports the annotation to the click handler.
func (l *Layer) Click(x, y float64) (string, bool) {
	id, ok := l.HitTest(x, y)
	if !ok {
		return "", false
	}
	l.mu.RLock()
	fn := l.onClick
	l.mu.RUnlock()
	if fn != nil {
		fn(id)
	}
	return id, true
}

// Pages keeps one layer per rendered page.
type Pages struct {
	mu      sync.Mutex
	style   style.Style
	epsilon float64
	layers  map[int]*Layer
}

// NewPages returns an empty page set.
func NewPages(st style.Style) *Pages {
	return &Pages{style: st, epsilon: geometry.DefaultEpsilon, layers: make(map[int]*Layer)}
}

// SetEpsilon sets the rect validation tolerance of current and future layers.
func (p *Pages) SetEpsilon(eps float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.epsilon = eps
	for _, l := range p.layers {
		l.SetEpsilon(eps)
	}
}

// Layer returns the layer of page, creating it on first use.
func (p *Pages) Layer(page int) *Layer {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.layers[page]
	if !ok {
		l = NewLayer(p.style)
		l.SetEpsilon(p.epsilon)
		p.layers[page] = l
	}
	return l
}

// Render is the per-page "rendered" hook: it repaints the page's layer.
func (p *Pages) Render(vp pagerect.Viewport, list []annotation.Annotation) pagerect.Result {
	return p.Layer(vp.Page).Render(vp, list)
}

// Remove drops an annotation from every layer.
func (p *Pages) Remove(id string) int {
	p.mu.Lock()
	layers := make([]*Layer, 0, len(p.layers))
	for _, l := range p.layers {
		layers = append(layers, l)
	}
	p.mu.Unlock()

	n := 0
	for _, l := range layers {
		n += l.Remove(id)
	}
	return n
}

// Evict forgets a page that scrolled out of view.
func (p *Pages) Evict(page int) {
	p.mu.Lock()
	delete(p.layers, page)
	p.mu.Unlock()
}
