package gpu

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/arbor/internal/atlas"
)

func TestFlipRows(t *testing.T) {
	// 1x2 image, bottom row red, top row blue
	pixels := []byte{255, 0, 0, 255, 0, 0, 255, 255}
	img := flipRows(pixels, 1, 2)
	assert.Equal(t, []byte{0, 0, 255, 255}, img.Pix[0:4])
	assert.Equal(t, []byte{255, 0, 0, 255}, img.Pix[4:8])
}

func TestLayerQuad(t *testing.T) {
	l := atlas.Layer{Rect: image.Rect(8, 8, 24, 24)}
	q := layerQuad(l, 32, 32, 8)
	require.Len(t, q, 24)

	// first vertex is the top left corner of the padded cell
	assert.InDelta(t, -1, q[0], 1e-6)
	assert.InDelta(t, 1, q[1], 1e-6)
	assert.InDelta(t, -0.5, q[2], 1e-6)
	assert.InDelta(t, -0.5, q[3], 1e-6)

	// third vertex is the bottom right corner
	assert.InDelta(t, 1, q[8], 1e-6)
	assert.InDelta(t, -1, q[9], 1e-6)
	assert.InDelta(t, 1.5, q[10], 1e-6)
	assert.InDelta(t, 1.5, q[11], 1e-6)
}

func TestLayerQuadTiling(t *testing.T) {
	l := atlas.Layer{Rect: image.Rect(4, 0, 12, 64), Tiling: true, Repeat: 3}
	q := layerQuad(l, 64, 64, 4)

	assert.InDelta(t, -1, q[0], 1e-6)
	assert.InDelta(t, 1, q[1], 1e-6)
	assert.InDelta(t, 0, q[3], 1e-6)
	assert.InDelta(t, -1, q[9], 1e-6)
	assert.InDelta(t, 3, q[11], 1e-6)
	assert.InDelta(t, -0.5, q[2], 1e-6)
}
