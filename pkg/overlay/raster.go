//go:build !js

package overlay

import (
	"image"
	"io"
	"math"

	"github.com/gogpu/gg"

	"github.com/kittclouds/readmark/pkg/annotation"
)

// Rasterize paints the layer onto a transparent RGBA image the size of the
// displayed page, for hosts that composite a bitmap over the page canvas.
func (l *Layer) Rasterize() (image.Image, error) {
	dc, err := l.draw()
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// EncodePNG writes the rasterized layer as PNG.
func (l *Layer) EncodePNG(w io.Writer) error {
	dc, err := l.draw()
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

// draw paints every mark and closes the context, which flushes pending GPU
// work; the pixels stay readable afterwards.
func (l *Layer) draw() (*gg.Context, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.viewport.DisplaySize()
	w := max(1, int(math.Ceil(size.Width)))
	h := max(1, int(math.Ceil(size.Height)))
	dc := gg.NewContext(w, h)

	for _, m := range l.marks {
		c := gg.Hex(m.Color)
		r := m.Rect
		switch m.Kind {
		case annotation.KindUnderline, annotation.KindStrikethrough:
			y := r.Bottom()
			if m.Kind == annotation.KindStrikethrough {
				y = r.Y + r.Height/2
			}
			dc.SetRGBA(c.R, c.G, c.B, 1)
			dc.SetLineWidth(l.viewport.Scaled(l.style.LineThickness))
			dc.DrawLine(r.X, y, r.Right(), y)
			if err := dc.Stroke(); err != nil {
				_ = dc.Close()
				return nil, err
			}
		default:
			dc.SetRGBA(c.R, c.G, c.B, l.style.HighlightOpacity)
			dc.DrawRectangle(r.X, r.Y, r.Width, r.Height)
			if err := dc.Fill(); err != nil {
				_ = dc.Close()
				return nil, err
			}
		}
	}
	return dc, dc.Close()
}
