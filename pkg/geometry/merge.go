package geometry

import (
	"math"
	"sort"
)

// MergeLines joins rects that sit on the same text line and touch or
// overlap horizontally. Browsers report one client rect per inline box, so a
// single selected line often arrives as several fragments. Rects are taken
// top to bottom; a rect belongs to the current line when its vertical centre
// is within half the smaller height of the line's first rect. Each line is
// then merged left to right, bridging gaps up to gap pixels.
func MergeLines(rects []Rect, gap float64) []Rect {
	if len(rects) < 2 {
		return append([]Rect(nil), rects...)
	}

	sorted := append([]Rect(nil), rects...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var out []Rect
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sameLine(sorted[start], sorted[end]) {
			end++
		}
		out = append(out, mergeLine(sorted[start:end], gap)...)
		start = end
	}
	return out
}

// mergeLine merges the rects of one line, which it reorders in place.
func mergeLine(line []Rect, gap float64) []Rect {
	sort.Slice(line, func(i, j int) bool {
		if line[i].X != line[j].X {
			return line[i].X < line[j].X
		}
		return line[i].Y < line[j].Y
	})
	out := []Rect{line[0]}
	for _, r := range line[1:] {
		last := &out[len(out)-1]
		if r.X <= last.Right()+gap {
			*last = union(*last, r)
			continue
		}
		out = append(out, r)
	}
	return out
}

func sameLine(a, b Rect) bool {
	ca := a.Y + a.Height/2
	cb := b.Y + b.Height/2
	return math.Abs(ca-cb) < math.Min(a.Height, b.Height)/2
}

func union(a, b Rect) Rect {
	x0 := math.Min(a.X, b.X)
	y0 := math.Min(a.Y, b.Y)
	x1 := math.Max(a.Right(), b.Right())
	y1 := math.Max(a.Bottom(), b.Bottom())
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}
