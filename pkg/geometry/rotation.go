package geometry

import (
	"fmt"
	"math"

	"seehuhn.de/go/geom/matrix"
)

// Rotation is a clockwise page rotation in degrees, one of 0, 90, 180 or
// 270.
type Rotation int

// ParseRotation normalizes deg into [0, 360) and rejects values that are not
// a multiple of 90.
func ParseRotation(deg int) (Rotation, error) {
	d := ((deg % 360) + 360) % 360
	if d%90 != 0 {
		return 0, fmt.Errorf("geometry: rotation %d is not a multiple of 90", deg)
	}
	return Rotation(d), nil
}

// toDisplay maps unrotated unit-square coordinates (y down) to the unit
// square as the rotated page is displayed.
func (r Rotation) toDisplay() matrix.Matrix {
	switch r {
	case 90:
		return matrix.Matrix{0, 1, -1, 0, 1, 0}
	case 180:
		return matrix.Matrix{-1, 0, 0, -1, 1, 1}
	case 270:
		return matrix.Matrix{0, -1, 1, 0, 0, 1}
	default:
		return matrix.Identity
	}
}

// fromDisplay is the inverse of toDisplay.
func (r Rotation) fromDisplay() matrix.Matrix {
	switch r {
	case 90:
		return Rotation(270).toDisplay()
	case 270:
		return Rotation(90).toDisplay()
	default:
		return r.toDisplay()
	}
}

// Swaps reports whether the displayed page has width and height exchanged.
func (r Rotation) Swaps() bool { return r == 90 || r == 270 }

// DisplaySize returns the on-screen size of a page of the given unrotated
// size.
func (r Rotation) DisplaySize(page Size) Size {
	if r.Swaps() {
		return Size{Width: page.Height, Height: page.Width}
	}
	return page
}

// ToDisplay maps a rect in unrotated page fractions to fractions of the
// displayed (rotated) page.
func (r Rotation) ToDisplay(fr FractionalRect) FractionalRect {
	return transformFrac(r.toDisplay(), fr)
}

// FromDisplay maps a rect in displayed-page fractions back to unrotated page
// fractions.
func (r Rotation) FromDisplay(fr FractionalRect) FractionalRect {
	return transformFrac(r.fromDisplay(), fr)
}

// Project maps a persisted fractional rect to pixels on a page displayed
// with rotation r, given the unrotated page size at the current scale.
func (r Rotation) Project(fr FractionalRect, page Size) Rect {
	disp := r.DisplaySize(page)
	m := r.toDisplay().Mul(matrix.Scale(disp.Width, disp.Height))
	return transformRect(m, fr.X, fr.Y, fr.X+fr.Width, fr.Y+fr.Height)
}

func apply(m matrix.Matrix, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func transformRect(m matrix.Matrix, x0, y0, x1, y1 float64) Rect {
	ax, ay := apply(m, x0, y0)
	bx, by := apply(m, x1, y1)
	minX, maxX := math.Min(ax, bx), math.Max(ax, bx)
	minY, maxY := math.Min(ay, by), math.Max(ay, by)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func transformFrac(m matrix.Matrix, fr FractionalRect) FractionalRect {
	r := transformRect(m, fr.X, fr.Y, fr.X+fr.Width, fr.Y+fr.Height)
	return FractionalRect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}
