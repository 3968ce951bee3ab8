//go:build !js

package overlay

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/geometry"
	"github.com/kittclouds/readmark/pkg/style"
)

func TestRasterize(t *testing.T) {
	l := NewLayer(style.Default())
	l.Render(vp, []annotation.Annotation{
		pageAnn("h", 1, annotation.KindHighlight, geometry.FractionalRect{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.4}),
	})

	img, err := l.Rasterize()
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	_, _, _, inside := img.At(60, 30).RGBA()
	_, _, _, outside := img.At(190, 90).RGBA()
	assert.NotZero(t, inside)
	assert.Zero(t, outside)
}

func TestEncodePNG(t *testing.T) {
	l := NewLayer(style.Default())
	l.Render(vp, nil)

	var buf bytes.Buffer
	require.NoError(t, l.EncodePNG(&buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
}
