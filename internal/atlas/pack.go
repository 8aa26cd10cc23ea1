package atlas

import (
	"image"
	"sort"

	"github.com/chewxy/math32"
)

const (
	shrinkFactor = 0.9
	minPackScale = 1e-3
)

// Pack lays out every entry. Tiling entries become full-height columns on
// the left, so their textures can wrap vertically; the rest are shelf-packed
// into the remaining space. Cell sizes start at the full atlas area and
// shrink until everything fits.
func (a *Atlas) Pack() error {
	if len(a.Entries) == 0 {
		return nil
	}
	a.assignWeights()

	var total float32
	for _, e := range a.Entries {
		total += e.Weight * e.Scale.X * e.Scale.Y
	}
	if total <= 0 {
		return ErrAtlasFull
	}

	for scale := float32(1); scale >= minPackScale; scale *= shrinkFactor {
		if a.tryPack(scale, total) {
			a.computeUVRects()
			return nil
		}
	}
	for _, e := range a.Entries {
		e.Rect = image.Rectangle{}
	}
	return ErrAtlasFull
}

func (a *Atlas) tryPack(scale, total float32) bool {
	area := float32(a.Width*a.Height) * scale
	p := a.Padding

	x := 0
	var shelf []*Entry
	for _, e := range a.Entries {
		if !e.Tiling {
			shelf = append(shelf, e)
			continue
		}
		share := e.Weight * e.Scale.X * e.Scale.Y / total
		w := max(int(share*area/float32(a.Height)), 1)
		if x+w+2*p > a.Width {
			return false
		}
		e.Rect = image.Rect(x+p, 0, x+p+w, a.Height)
		x += w + 2*p
	}

	sizes := make(map[*Entry]image.Point, len(shelf))
	for _, e := range shelf {
		share := e.Weight * e.Scale.X * e.Scale.Y / total
		side := math32.Sqrt(share * area)
		aspect := math32.Sqrt(float32(e.Native.X) / float32(e.Native.Y))
		sizes[e] = image.Pt(max(int(side*aspect), 1), max(int(side/aspect), 1))
	}
	sort.SliceStable(shelf, func(i, j int) bool {
		return sizes[shelf[i]].Y > sizes[shelf[j]].Y
	})

	left := x
	cx, cy, rowH := left, 0, 0
	for _, e := range shelf {
		sz := sizes[e]
		cw, ch := sz.X+2*p, sz.Y+2*p
		if cx+cw > a.Width {
			cx, cy, rowH = left, cy+rowH, 0
		}
		if cx+cw > a.Width || cy+ch > a.Height {
			return false
		}
		e.Rect = image.Rect(cx+p, cy+p, cx+p+sz.X, cy+p+sz.Y)
		cx += cw
		rowH = max(rowH, ch)
	}
	return true
}

func (a *Atlas) computeUVRects() {
	w, h := float32(a.Width), float32(a.Height)
	for _, e := range a.Entries {
		dx, dy := float32(e.Rect.Dx()), float32(e.Rect.Dy())
		if e.Tiling {
			tileH := dx * float32(e.Native.Y) / float32(e.Native.X)
			e.VerticalTiling = max(int(math32.Round(h/tileH)), 1)
			e.UVRect = UVRect{X: float32(e.Rect.Min.X) / w, Y: 0, W: dx / w, H: 1 / float32(e.VerticalTiling)}
			continue
		}
		e.VerticalTiling = 1
		e.UVRect = UVRect{
			X: float32(e.Rect.Min.X) / w,
			Y: 1 - float32(e.Rect.Max.Y)/h,
			W: dx / w,
			H: dy / h,
		}
	}
}
