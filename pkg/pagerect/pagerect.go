// Package pagerect encodes selections on fixed-layout pages as fractional
// rectangles and projects them back onto the page at whatever scale and
// rotation it is currently rendered with.
package pagerect

import (
	"fmt"
	"log/slog"

	"github.com/kittclouds/readmark/internal/logx"
	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/capture"
	"github.com/kittclouds/readmark/pkg/geometry"
	"github.com/kittclouds/readmark/pkg/locator"
	"github.com/kittclouds/readmark/pkg/style"
)

// EncodeOptions tunes Encode.
type EncodeOptions struct {
	// MergeLines joins the per-inline-box rects of each visual line before
	// normalizing.
	MergeLines bool
	// MergeGap is the widest horizontal gap, in pixels, bridged when merging.
	MergeGap float64
}

// Encode converts a page selection into a locator. Rects are normalized
// against the page bounds and then mapped out of the display rotation, so
// the stored rects are always in unscaled, unrotated page space.
func Encode(sel capture.PageSelection, opts EncodeOptions) (locator.Locator, error) {
	rects := sel.ClientRects
	if opts.MergeLines {
		rects = geometry.MergeLines(rects, opts.MergeGap)
	}
	frs, err := geometry.Normalize(rects, sel.Bounds)
	if err != nil {
		return locator.Locator{}, fmt.Errorf("page %d: %w", sel.Page, err)
	}
	for i := range frs {
		frs[i] = sel.Rotation.FromDisplay(frs[i])
	}
	return locator.NewPageRect(sel.Page, frs), nil
}

// Viewport is a page as currently rendered.
type Viewport struct {
	// Page is 1-based.
	Page int `json:"page"`
	// Size is the unrotated page size in pixels at the current scale.
	Size geometry.Size `json:"size"`
	// Rotation is the clockwise display rotation.
	Rotation geometry.Rotation `json:"rotation"`
	// Scale is the render scale Size was computed with. Zero means 1.
	Scale float64 `json:"scale,omitempty"`
}

// NewViewport builds a viewport from the renderer's unscaled page size and
// current scale.
func NewViewport(page int, unscaled geometry.Size, scale float64, rot geometry.Rotation) Viewport {
	return Viewport{Page: page, Size: unscaled.Scaled(scale), Rotation: rot, Scale: scale}
}

// Scaled converts a length given in pixels at scale 1 to this viewport.
func (vp Viewport) Scaled(px float64) float64 {
	if vp.Scale <= 0 {
		return px
	}
	return px * vp.Scale
}

// DisplaySize is the on-screen size of the page.
func (vp Viewport) DisplaySize() geometry.Size {
	return vp.Rotation.DisplaySize(vp.Size)
}

// Mark is one overlay primitive: a pixel rect relative to the displayed
// page's top-left corner.
type Mark struct {
	AnnotationID string          `json:"annotationId"`
	Kind         annotation.Kind `json:"kind"`
	Color        string          `json:"color"`
	Rect         geometry.Rect   `json:"rect"`
	CreatedAt    int64           `json:"createdAt"`
}

// Result is the output of one resolve pass.
type Result struct {
	// Marks are in paint order: oldest annotation first.
	Marks  []Mark
	Report annotation.Report
	// RejectedRects counts individual rects dropped by validation.
	RejectedRects int
}

// Resolver projects page+rect annotations onto a rendered page.
type Resolver struct {
	Style   style.Style
	Epsilon float64
}

// NewResolver returns a resolver with the given style and the default
// validation tolerance.
func NewResolver(st style.Style) *Resolver {
	return &Resolver{Style: st, Epsilon: geometry.DefaultEpsilon}
}

// Resolve selects the annotations on vp.Page and turns every valid rect into
// a mark. Invalid rects are dropped one by one; an annotation with no valid
// rect left is reported as failed. Nothing here returns an error.
func (r *Resolver) Resolve(vp Viewport, list []annotation.Annotation) Result {
	var res Result
	for _, a := range annotation.PaintOrder(annotation.OfType(list, locator.TypePageRect)) {
		if a.Locator.PageNumber() != vp.Page {
			continue
		}
		if err := a.Locator.Validate(); err != nil {
			res.Report.Fail(a, err)
			continue
		}

		color := r.Style.Color(a)
		kind := a.Kind
		if kind == "" {
			kind = annotation.KindHighlight
		}
		n := 0
		for i, fr := range a.Locator.PageRect.Rects {
			if err := geometry.Validate(fr, r.Epsilon); err != nil {
				res.RejectedRects++
				logx.Logger().Warn("rect rejected",
					slog.String("annotation_id", a.ID),
					slog.Int("rect", i),
					slog.Any("err", err),
				)
				continue
			}
			res.Marks = append(res.Marks, Mark{
				AnnotationID: a.ID,
				Kind:         kind,
				Color:        color,
				Rect:         vp.Rotation.Project(fr, vp.Size),
				CreatedAt:    a.CreatedAt,
			})
			n++
		}
		if n == 0 {
			res.Report.Fail(a, fmt.Errorf("%w: no valid rects", locator.ErrMalformed))
			continue
		}
		res.Report.Ok(a.ID)
	}
	return res
}
