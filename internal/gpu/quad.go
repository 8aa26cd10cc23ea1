package gpu

import (
	"image"

	"github.com/Faultbox/arbor/internal/atlas"
)

// flipRows converts bottom-up RGBA rows, as read from OpenGL, into an image.
func flipRows(pixels []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		copy(img.Pix[y*img.Stride:y*img.Stride+rowSize], pixels[src:src+rowSize])
	}
	return img
}

// layerQuad returns two triangles (position XY, texcoord UV) that cover the
// layer's padded cell. Texture coordinates run past [0,1] into the padding so
// clamp-to-edge sampling bleeds the border texels outward. Tiling columns
// repeat vertically instead.
func layerQuad(l atlas.Layer, width, height, padding int) []float32 {
	r := l.Rect
	padY := padding
	if l.Tiling {
		padY = 0
	}
	outer := image.Rect(r.Min.X-padding, r.Min.Y-padY, r.Max.X+padding, r.Max.Y+padY)

	u0 := -float32(padding) / float32(r.Dx())
	u1 := 1 + float32(padding)/float32(r.Dx())
	v0 := -float32(padY) / float32(r.Dy())
	v1 := 1 + float32(padY)/float32(r.Dy())
	if l.Tiling {
		v0, v1 = 0, float32(max(l.Repeat, 1))
	}

	x0, y0 := ndc(outer.Min, width, height)
	x1, y1 := ndc(outer.Max, width, height)
	return []float32{
		x0, y0, u0, v0,
		x1, y0, u1, v0,
		x1, y1, u1, v1,
		x0, y0, u0, v0,
		x1, y1, u1, v1,
		x0, y1, u0, v1,
	}
}

// ndc maps an image-space point (origin top left) to normalized device
// coordinates.
func ndc(p image.Point, width, height int) (float32, float32) {
	return 2*float32(p.X)/float32(width) - 1, 1 - 2*float32(p.Y)/float32(height)
}
