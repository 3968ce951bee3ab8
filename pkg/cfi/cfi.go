// Package cfi handles annotations in reflowable content, where the reflow
// renderer owns addressing. Locators carry the renderer's range token
// verbatim; painting hands the token back to the renderer.
package cfi

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kittclouds/readmark/internal/logx"
	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/capture"
	"github.com/kittclouds/readmark/pkg/locator"
	"github.com/kittclouds/readmark/pkg/style"
)

// Handle identifies a mark painted by the renderer.
type Handle string

// MarkSpec describes the mark to paint.
type MarkSpec struct {
	AnnotationID string
	Kind         annotation.Kind
	Color        string
	Class        string
	// OnClick must be wired to the painted mark; it reports the id upwards.
	OnClick func()
}

// Target is where a token navigates to.
type Target struct {
	Section string `json:"section"`
	// Position is renderer specific, for example a fraction of the section.
	Position float64 `json:"position"`
}

// Renderer is the reflow engine's addressing API.
type Renderer interface {
	// Mark paints a styled mark over the range token.
	Mark(token string, spec MarkSpec) (Handle, error)
	// Unmark removes a mark returned by Mark.
	Unmark(h Handle) error
	// Resolve turns a token into a navigable target.
	Resolve(token string) (Target, error)
}

// SectionLocator is implemented by renderers that can tell which section a
// token lives in. Applying then skips annotations of other sections.
type SectionLocator interface {
	SectionOf(token string) (string, error)
}

// Encode stores the renderer token of a selection unchanged.
func Encode(sel capture.ReflowSelection) locator.Locator {
	return locator.NewCfi(sel.Token)
}

// Navigate resolves an annotation's token to a target, for table of
// contents and bookmark jumps.
func Navigate(r Renderer, loc locator.Locator) (Target, error) {
	if err := loc.Validate(); err != nil {
		return Target{}, err
	}
	if loc.Type != locator.TypeCfi {
		return Target{}, fmt.Errorf("%w: want cfi, got %q", locator.ErrMalformed, loc.Type)
	}
	t, err := r.Resolve(loc.Cfi.Range)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %w", locator.ErrUnresolvable, err)
	}
	return t, nil
}

type painted struct {
	handle Handle
	spec   MarkSpec
	token  string
}

// Applier keeps the renderer's marks in step with an annotation list. It
// remembers what it painted so repeated applies only add, restyle or remove
// the difference.
type Applier struct {
	mu       sync.Mutex
	renderer Renderer
	style    style.Style
	painted  map[string]painted
	onClick  func(id string)
}

// NewApplier returns an applier painting through r.
func NewApplier(r Renderer, st style.Style) *Applier {
	return &Applier{renderer: r, style: st, painted: make(map[string]painted)}
}

// OnClick sets the handler invoked with the annotation id when a mark is
// clicked.
func (ap *Applier) OnClick(fn func(id string)) {
	ap.mu.Lock()
	ap.onClick = fn
	ap.mu.Unlock()
}

// Apply paints every cfi annotation of section (all of them when section is
// empty or the renderer cannot place tokens). Tokens the renderer rejects
// are logged and skipped; the rest of the list is still painted.
func (ap *Applier) Apply(section string, list []annotation.Annotation) annotation.Report {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	var rep annotation.Report
	want := make(map[string]annotation.Annotation)
	for _, a := range annotation.PaintOrder(annotation.OfType(list, locator.TypeCfi)) {
		if err := a.Locator.Validate(); err != nil {
			rep.Fail(a, err)
			continue
		}
		if !ap.inSection(section, a) {
			continue
		}
		want[a.ID] = a
	}

	// Drop marks that are gone or changed.
	for id, p := range ap.painted {
		a, ok := want[id]
		if ok && p.token == a.Locator.Cfi.Range && p.spec.Kind == kindOf(a) && p.spec.Color == ap.style.Color(a) {
			continue
		}
		ap.unmark(id, p)
	}

	for _, a := range annotation.PaintOrder(mapValues(want)) {
		if _, ok := ap.painted[a.ID]; ok {
			rep.Ok(a.ID)
			continue
		}
		spec := ap.spec(a)
		h, err := ap.renderer.Mark(a.Locator.Cfi.Range, spec)
		if err != nil {
			rep.Fail(a, fmt.Errorf("%w: %w", locator.ErrUnresolvable, err))
			continue
		}
		ap.painted[a.ID] = painted{handle: h, spec: spec, token: a.Locator.Cfi.Range}
		rep.Ok(a.ID)
	}
	return rep
}

// Remove unpaints one annotation.
func (ap *Applier) Remove(id string) bool {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	p, ok := ap.painted[id]
	if ok {
		ap.unmark(id, p)
	}
	return ok
}

// Forget drops all bookkeeping without calling Unmark. Use it after the
// renderer discarded its own marks, for example on a section re-render.
func (ap *Applier) Forget() {
	ap.mu.Lock()
	clear(ap.painted)
	ap.mu.Unlock()
}

// Painted returns the number of live marks.
func (ap *Applier) Painted() int {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return len(ap.painted)
}

func (ap *Applier) unmark(id string, p painted) {
	if err := ap.renderer.Unmark(p.handle); err != nil {
		logx.Logger().Warn("unmark failed", slog.String("annotation_id", id), slog.Any("err", err))
	}
	delete(ap.painted, id)
}

func (ap *Applier) inSection(section string, a annotation.Annotation) bool {
	sl, ok := ap.renderer.(SectionLocator)
	if section == "" || !ok {
		return true
	}
	got, err := sl.SectionOf(a.Locator.Cfi.Range)
	if err != nil {
		// Let Mark report the failure.
		return true
	}
	return got == section
}

func (ap *Applier) spec(a annotation.Annotation) MarkSpec {
	kind := kindOf(a)
	id := a.ID
	return MarkSpec{
		AnnotationID: id,
		Kind:         kind,
		Color:        ap.style.Color(a),
		Class:        ap.style.Classes(kind),
		OnClick: func() {
			ap.mu.Lock()
			fn := ap.onClick
			ap.mu.Unlock()
			if fn != nil {
				fn(id)
			}
		},
	}
}

func kindOf(a annotation.Annotation) annotation.Kind {
	if a.Kind == "" {
		return annotation.KindHighlight
	}
	return a.Kind
}

func mapValues(m map[string]annotation.Annotation) []annotation.Annotation {
	out := make([]annotation.Annotation, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	return out
}
