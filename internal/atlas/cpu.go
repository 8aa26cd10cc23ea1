package atlas

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/transform"
	xdraw "golang.org/x/image/draw"
)

// CPUCompositor composites atlases in memory. It keeps a software copy of
// the render state so callers can rely on the same discipline as with a GPU
// compositor.
type CPUCompositor struct {
	state RenderState
}

// NewCPUCompositor returns a compositor with the default render state.
func NewCPUCompositor() *CPUCompositor {
	return &CPUCompositor{state: RenderState{Fog: true}}
}

func (c *CPUCompositor) State() RenderState { return c.state }

func (c *CPUCompositor) Restore(s RenderState) { c.state = s }

// Composite scales every layer into its cell and bleeds the cell edges into
// the padding.
func (c *CPUCompositor) Composite(req Request) (*image.NRGBA, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("invalid atlas size %dx%d", req.Width, req.Height)
	}
	bounds := image.Rect(0, 0, req.Width, req.Height)
	c.state = RenderState{
		Framebuffer: 1,
		Viewport:    bounds,
		Fog:         false,
		SRGBWrite:   req.Channel == ChannelDiffuse,
	}

	dst := image.NewNRGBA(bounds)
	p := req.Padding
	for _, l := range req.Layers {
		if l.Rect.Empty() || !l.Rect.In(bounds) {
			return nil, fmt.Errorf("layer %v outside atlas %v", l.Rect, bounds)
		}
		var padded image.Rectangle
		if l.Tiling {
			padded = image.Rect(l.Rect.Min.X-p, l.Rect.Min.Y, l.Rect.Max.X+p, l.Rect.Max.Y)
		} else {
			padded = l.Rect.Inset(-p)
		}
		padded = padded.Intersect(bounds)

		if l.Source == nil {
			xdraw.Draw(dst, padded, &image.Uniform{C: l.Fill}, image.Point{}, xdraw.Src)
			continue
		}

		var cell image.Image
		var yPad int
		if l.Tiling {
			cell = tileColumn(l.Source, l.Rect.Dx(), l.Rect.Dy(), l.Repeat)
		} else {
			cell = transform.Resize(l.Source, l.Rect.Dx(), l.Rect.Dy(), transform.Linear)
			yPad = p
		}
		bled := clone.Pad(cell, p, yPad, clone.EdgeExtend)
		origin := bled.Bounds().Min.Add(padded.Min.Sub(l.Rect.Min.Sub(image.Pt(p, yPad))))
		xdraw.Draw(dst, padded, bled, origin, xdraw.Src)
	}
	return dst, nil
}

// tileColumn scales src to width w and repeats it vertically to fill h.
func tileColumn(src image.Image, w, h, repeat int) *image.NRGBA {
	repeat = max(repeat, 1)
	tileH := max((h+repeat-1)/repeat, 1)
	tile := image.NewNRGBA(image.Rect(0, 0, w, tileH))
	xdraw.CatmullRom.Scale(tile, tile.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	col := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < repeat; i++ {
		y := i * h / repeat
		r := image.Rect(0, y, w, min(y+tileH, h))
		xdraw.Draw(col, r, tile, image.Point{}, xdraw.Src)
	}
	return col
}
