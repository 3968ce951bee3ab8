package pagerect

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/capture"
	"github.com/kittclouds/readmark/pkg/geometry"
	"github.com/kittclouds/readmark/pkg/locator"
	"github.com/kittclouds/readmark/pkg/style"
)

var approx = cmpopts.EquateApprox(0, 1e-6)

func encodeAt(t *testing.T, page int, rects []geometry.Rect, bounds geometry.Rect, rot geometry.Rotation) locator.Locator {
	t.Helper()
	sel, ok := capture.FromPage(page, "hello world", rects, bounds, rot)
	require.True(t, ok)
	loc, err := Encode(sel, EncodeOptions{})
	require.NoError(t, err)
	return loc
}

func TestScenarioRescale(t *testing.T) {
	loc := encodeAt(t, 3,
		[]geometry.Rect{{X: 100, Y: 200, Width: 120, Height: 20}},
		geometry.Rect{Width: 800, Height: 1000}, 0)

	require.Equal(t, 3, loc.PageNumber())
	want := []geometry.FractionalRect{{X: 0.125, Y: 0.2, Width: 0.15, Height: 0.02}}
	if diff := cmp.Diff(want, loc.PageRect.Rects, approx); diff != "" {
		t.Fatalf("encoded (-want +got):\n%s", diff)
	}

	a := annotation.Annotation{ID: "h1", Locator: loc}
	res := NewResolver(style.Default()).Resolve(Viewport{Page: 3, Size: geometry.Size{Width: 1600, Height: 2000}}, []annotation.Annotation{a})
	require.Len(t, res.Marks, 1)
	if diff := cmp.Diff(geometry.Rect{X: 200, Y: 400, Width: 240, Height: 40}, res.Marks[0].Rect, approx); diff != "" {
		t.Fatalf("resolved (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"h1"}, res.Report.Applied)
}

func TestRoundTripAtFixedScale(t *testing.T) {
	unscaled := geometry.Size{Width: 612, Height: 792}
	vp := NewViewport(2, unscaled, 1.5, 0)
	bounds := geometry.Rect{X: 40, Y: 300, Width: vp.Size.Width, Height: vp.Size.Height}
	input := []geometry.Rect{
		{X: 112, Y: 380, Width: 300, Height: 18},
		{X: 112, Y: 400, Width: 120, Height: 18},
	}
	loc := encodeAt(t, 2, input, bounds, 0)

	res := NewResolver(style.Default()).Resolve(vp, []annotation.Annotation{{ID: "a", Locator: loc}})
	require.Len(t, res.Marks, 2)
	for i, m := range res.Marks {
		got := m.Rect
		got.X += bounds.X
		got.Y += bounds.Y
		if diff := cmp.Diff(input[i], got, approx); diff != "" {
			t.Errorf("rect %d (-want +got):\n%s", i, diff)
		}
	}
}

func TestScaleInvariance(t *testing.T) {
	unscaled := geometry.Size{Width: 500, Height: 700}
	rectAt := func(scale float64) geometry.Rect {
		return geometry.Rect{X: 50 * scale, Y: 70 * scale, Width: 100 * scale, Height: 14 * scale}
	}
	boundsAt := func(scale float64) geometry.Rect {
		s := unscaled.Scaled(scale)
		return geometry.Rect{Width: s.Width, Height: s.Height}
	}

	loc1 := encodeAt(t, 1, []geometry.Rect{rectAt(1)}, boundsAt(1), 0)
	loc2 := encodeAt(t, 1, []geometry.Rect{rectAt(2.5)}, boundsAt(2.5), 0)
	if diff := cmp.Diff(loc1.PageRect.Rects, loc2.PageRect.Rects, approx); diff != "" {
		t.Fatalf("stored rects differ by scale (-s1 +s2):\n%s", diff)
	}

	r := NewResolver(style.Default())
	small := r.Resolve(NewViewport(1, unscaled, 1, 0), []annotation.Annotation{{ID: "a", Locator: loc1}}).Marks[0].Rect
	big := r.Resolve(NewViewport(1, unscaled, 3, 0), []annotation.Annotation{{ID: "a", Locator: loc1}}).Marks[0].Rect
	assert.InDelta(t, small.Width*3, big.Width, 1e-6)
	assert.InDelta(t, small.Height*3, big.Height, 1e-6)
}

func TestRotatedPageRoundTrip(t *testing.T) {
	unscaled := geometry.Size{Width: 600, Height: 800}
	vp := NewViewport(1, unscaled, 1, 90)
	disp := vp.DisplaySize()
	require.Equal(t, geometry.Size{Width: 800, Height: 600}, disp)

	input := geometry.Rect{X: 500, Y: 100, Width: 20, Height: 200}
	loc := encodeAt(t, 1, []geometry.Rect{input}, geometry.Rect{Width: disp.Width, Height: disp.Height}, 90)

	// Stored in unrotated page space.
	fr := loc.PageRect.Rects[0]
	want := geometry.FractionalRect{X: 100.0 / 600, Y: 280.0 / 800, Width: 200.0 / 600, Height: 20.0 / 800}
	if diff := cmp.Diff(want, fr, approx); diff != "" {
		t.Fatalf("stored (-want +got):\n%s", diff)
	}

	res := NewResolver(style.Default()).Resolve(vp, []annotation.Annotation{{ID: "a", Locator: loc}})
	require.Len(t, res.Marks, 1)
	if diff := cmp.Diff(input, res.Marks[0].Rect, approx); diff != "" {
		t.Fatalf("resolved (-want +got):\n%s", diff)
	}
}

func TestGracefulDegradation(t *testing.T) {
	good := annotation.Annotation{ID: "good", CreatedAt: 1, Locator: locator.NewPageRect(4, []geometry.FractionalRect{{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.02}})}
	empty := annotation.Annotation{ID: "empty", CreatedAt: 2, Locator: locator.NewPageRect(4, []geometry.FractionalRect{})}
	partial := annotation.Annotation{ID: "partial", CreatedAt: 3, Locator: locator.NewPageRect(4, []geometry.FractionalRect{
		{X: 0.5, Y: 0.5, Width: 0.9, Height: 0.1},
		{X: 0.2, Y: 0.3, Width: 0.1, Height: 0.02},
	})}
	broken := annotation.Annotation{ID: "broken", CreatedAt: 4, Locator: locator.NewPageRect(4, []geometry.FractionalRect{{X: 0.1, Y: 0.1}})}
	otherPage := annotation.Annotation{ID: "other", CreatedAt: 5, Locator: locator.NewPageRect(5, []geometry.FractionalRect{{X: 0.1, Y: 0.1, Width: 0.1, Height: 0.1}})}

	var res Result
	require.NotPanics(t, func() {
		res = NewResolver(style.Default()).Resolve(Viewport{Page: 4, Size: geometry.Size{Width: 100, Height: 100}},
			[]annotation.Annotation{good, empty, partial, broken, otherPage})
	})

	assert.Equal(t, []string{"good", "partial"}, res.Report.Applied)
	assert.Equal(t, []string{"empty", "broken"}, res.Report.FailedIDs())
	assert.ErrorIs(t, res.Report.Failed[0].Err, locator.ErrMalformed)
	assert.Equal(t, 2, res.RejectedRects)
	assert.Len(t, res.Marks, 2)
}

func TestPaintOrderAndKinds(t *testing.T) {
	rect := []geometry.FractionalRect{{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.1}}
	newer := annotation.Annotation{ID: "n", CreatedAt: 20, Kind: annotation.KindUnderline, Color: "blue", Locator: locator.NewPageRect(1, rect)}
	older := annotation.Annotation{ID: "o", CreatedAt: 10, Locator: locator.NewPageRect(1, rect)}

	res := NewResolver(style.Default()).Resolve(Viewport{Page: 1, Size: geometry.Size{Width: 10, Height: 10}}, []annotation.Annotation{newer, older})
	require.Len(t, res.Marks, 2)
	assert.Equal(t, "o", res.Marks[0].AnnotationID)
	assert.Equal(t, annotation.KindHighlight, res.Marks[0].Kind)
	assert.Equal(t, "#ffd54f", res.Marks[0].Color)
	assert.Equal(t, "n", res.Marks[1].AnnotationID)
	assert.Equal(t, "#81d4fa", res.Marks[1].Color)
}

func TestEncodeMergesLines(t *testing.T) {
	sel, ok := capture.FromPage(1, "two words", []geometry.Rect{
		{X: 10, Y: 10, Width: 40, Height: 10},
		{X: 50, Y: 10, Width: 40, Height: 10},
	}, geometry.Rect{Width: 100, Height: 100}, 0)
	require.True(t, ok)

	loc, err := Encode(sel, EncodeOptions{MergeLines: true, MergeGap: 1})
	require.NoError(t, err)
	require.Len(t, loc.PageRect.Rects, 1)
	assert.InDelta(t, 0.8, loc.PageRect.Rects[0].Width, 1e-9)
}

func TestEncodeRejectsOffPageSelection(t *testing.T) {
	sel, ok := capture.FromPage(1, "x", []geometry.Rect{{X: 500, Y: 10, Width: 5, Height: 5}}, geometry.Rect{Width: 100, Height: 100}, 0)
	require.True(t, ok)
	_, err := Encode(sel, EncodeOptions{})
	assert.ErrorIs(t, err, geometry.ErrNoValidRects)
}

func TestViewportScaled(t *testing.T) {
	assert.Equal(t, 2.0, Viewport{}.Scaled(2))
	assert.Equal(t, 3.0, NewViewport(1, geometry.Size{Width: 10, Height: 10}, 1.5, 0).Scaled(2))
}
