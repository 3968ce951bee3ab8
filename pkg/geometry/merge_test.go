package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeLines(t *testing.T) {
	rects := []Rect{
		{X: 40, Y: 10, Width: 30, Height: 12},
		{X: 10, Y: 10, Width: 30, Height: 12},
		{X: 10, Y: 30, Width: 50, Height: 12},
		{X: 71, Y: 11, Width: 10, Height: 11},
	}
	got := MergeLines(rects, 2)
	assert.Equal(t, []Rect{
		{X: 10, Y: 10, Width: 71, Height: 12},
		{X: 10, Y: 30, Width: 50, Height: 12},
	}, got)
}

func TestMergeLinesKeepsGaps(t *testing.T) {
	rects := []Rect{
		{X: 10, Y: 10, Width: 10, Height: 10},
		{X: 50, Y: 10, Width: 10, Height: 10},
	}
	assert.Len(t, MergeLines(rects, 5), 2)
	assert.Len(t, MergeLines(rects[:1], 5), 1)
}

func TestMergeLinesIsOrderIndependent(t *testing.T) {
	// a and b share a line, b and c would too, but a and c do not.
	a := Rect{X: 100, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 50, Y: 4, Width: 10, Height: 10}
	c := Rect{X: 0, Y: 8, Width: 10, Height: 10}
	want := []Rect{b, a, c}

	assert.Equal(t, want, MergeLines([]Rect{a, b, c}, 5))
	assert.Equal(t, want, MergeLines([]Rect{c, b, a}, 5))
	assert.Equal(t, want, MergeLines([]Rect{b, c, a}, 5))
}
