// Package geometry converts selection rectangles between pixel space and
// scale-independent fractional page space.
//
// Pixel rectangles use the screen convention (origin top-left, y grows
// downwards). Fractional rectangles express every field as a fraction of the
// reference frame's width or height, so a rect captured at one zoom level
// re-projects correctly at any other.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// DefaultEpsilon is the tolerance used when validating fractional rects that
// were rounded on their way through JSON.
const DefaultEpsilon = 0.0001

var (
	// ErrDegenerateRect marks a rect with non-positive size, or one whose
	// origin lies outside its reference frame.
	ErrDegenerateRect = errors.New("degenerate rect")
	// ErrDegenerateBounds marks a reference frame with non-positive size.
	ErrDegenerateBounds = errors.New("degenerate bounds")
	// ErrNoValidRects is returned when every rect of a selection was rejected.
	ErrNoValidRects = errors.New("no valid rects")
)

// Rect is an axis-aligned rectangle in pixel space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Contains reports whether the point lies inside r (edges inclusive).
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.Right() && y >= r.Y && y <= r.Bottom()
}

// FractionalRect is a rectangle whose fields are fractions of a page's
// width (X, Width) and height (Y, Height).
type FractionalRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scaled multiplies both dimensions by s.
func (s Size) Scaled(f float64) Size {
	return Size{Width: s.Width * f, Height: s.Height * f}
}

// NormalizeRect converts a pixel rect into a fraction of bounds. Both
// arguments must be in the same coordinate space (for example viewport
// client coordinates); bounds is the page or container rect.
func NormalizeRect(r, bounds Rect) (FractionalRect, error) {
	if !(bounds.Width > 0) || !(bounds.Height > 0) {
		return FractionalRect{}, fmt.Errorf("%w: %vx%v", ErrDegenerateBounds, bounds.Width, bounds.Height)
	}

	fr := FractionalRect{
		X:      (r.X - bounds.X) / bounds.Width,
		Y:      (r.Y - bounds.Y) / bounds.Height,
		Width:  r.Width / bounds.Width,
		Height: r.Height / bounds.Height,
	}
	if !finite(fr) {
		return FractionalRect{}, fmt.Errorf("%w: non-finite value", ErrDegenerateRect)
	}
	if fr.Width <= 0 || fr.Height <= 0 {
		return FractionalRect{}, fmt.Errorf("%w: size %vx%v", ErrDegenerateRect, fr.Width, fr.Height)
	}
	if fr.X < 0 || fr.X > 1 || fr.Y < 0 || fr.Y > 1 {
		return FractionalRect{}, fmt.Errorf("%w: origin (%v,%v) outside page", ErrDegenerateRect, fr.X, fr.Y)
	}

	// Selections that run into the margin are clipped to the page.
	fr.Width = math.Min(fr.Width, 1-fr.X)
	fr.Height = math.Min(fr.Height, 1-fr.Y)
	if fr.Width <= 0 || fr.Height <= 0 {
		return FractionalRect{}, fmt.Errorf("%w: empty after clipping", ErrDegenerateRect)
	}
	return fr, nil
}

// Normalize converts every rect of a selection. Rects that fail
// NormalizeRect are dropped; an error is returned only when none survive.
func Normalize(rects []Rect, bounds Rect) ([]FractionalRect, error) {
	out := make([]FractionalRect, 0, len(rects))
	var lastErr error
	for _, r := range rects {
		fr, err := NormalizeRect(r, bounds)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, fr)
	}
	if len(out) == 0 {
		if lastErr == nil {
			return nil, ErrNoValidRects
		}
		return nil, fmt.Errorf("%w: %w", ErrNoValidRects, lastErr)
	}
	return out, nil
}

// DenormalizeRect projects a fractional rect onto a frame of the given pixel
// size. The result is relative to the frame's top-left corner.
func DenormalizeRect(fr FractionalRect, size Size) Rect {
	return Rect{
		X:      fr.X * size.Width,
		Y:      fr.Y * size.Height,
		Width:  fr.Width * size.Width,
		Height: fr.Height * size.Height,
	}
}

// Denormalize projects every rect onto size.
func Denormalize(frs []FractionalRect, size Size) []Rect {
	out := make([]Rect, len(frs))
	for i, fr := range frs {
		out[i] = DenormalizeRect(fr, size)
	}
	return out
}

// Validate checks a persisted fractional rect before it is trusted: all
// fields finite, origin non-negative, positive size, and the far edges within
// the page up to eps.
func Validate(fr FractionalRect, eps float64) error {
	switch {
	case !finite(fr):
		return fmt.Errorf("%w: non-finite value", ErrDegenerateRect)
	case fr.X < 0 || fr.Y < 0:
		return fmt.Errorf("%w: negative origin (%v,%v)", ErrDegenerateRect, fr.X, fr.Y)
	case fr.Width <= 0 || fr.Height <= 0:
		return fmt.Errorf("%w: size %vx%v", ErrDegenerateRect, fr.Width, fr.Height)
	case fr.X+fr.Width > 1+eps || fr.Y+fr.Height > 1+eps:
		return fmt.Errorf("%w: extends past page edge", ErrDegenerateRect)
	}
	return nil
}

func finite(fr FractionalRect) bool {
	for _, v := range [...]float64{fr.X, fr.Y, fr.Width, fr.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
