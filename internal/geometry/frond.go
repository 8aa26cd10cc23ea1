package geometry

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/internal/tree"
	"github.com/Faultbox/arbor/pkg/math"
)

// frondTimes picks the longitudinal sample times of a frond spanning
// [lo, hi]. Branch samples are reused unless they are coarser than the
// height-based segment count, in which case the span is split evenly.
func frondTimes(samples []float32, lo, hi, length, quality float32) []float32 {
	segs := max(int(length*(hi-lo)*quality), 2)

	var ts []float32
	for _, t := range samples {
		if t > lo && t < hi {
			ts = append(ts, t)
		}
	}
	if len(ts)+1 < segs {
		ts = ts[:0]
		for i := 1; i < segs; i++ {
			ts = append(ts, lo+(hi-lo)*float32(i)/float32(segs))
		}
	}

	out := make([]float32, 0, len(ts)+2)
	out = append(out, lo)
	out = append(out, ts...)
	return append(out, hi)
}

// emitFrond emits FrondCount double-sided strips crossing the branch axis.
func (s *build) emitFrond(ni int, n *tree.Node, b *tree.BranchParams) {
	if !b.Mode.HasFrond() || n.Curve.Len() < 2 {
		return
	}
	mat, m, ok := s.material(b.FrondMaterial)
	if !ok {
		return
	}
	lo := math.Clamp32(b.FrondRange[0], 0, 1)
	hi := min(math.Clamp32(b.FrondRange[1], 0, 1), n.BreakOffset)
	if hi <= lo {
		return
	}

	ts := frondTimes(s.samples[ni], lo, hi, n.Length, s.q)
	count := max(b.FrondCount, 1)
	width := b.FrondWidth * n.Scale
	color := rgba(b.Color)

	for k := 0; k < count; k++ {
		sin, cos := math32.Sincos(math32.Pi * float32(k) / float32(count))
		front := len(s.data.Vertices)
		for _, t := range ts {
			rot := n.Curve.RotationAt(t)
			axis := rot.Up()
			side := rot.Right().Scale(cos).Add(rot.Forward().Scale(sin))
			normal := side.Cross(axis).Normalize()
			center := n.Curve.PositionAt(t)
			along := (t - lo) / (hi - lo)
			half := 0.5 * width * b.FrondShape.Eval(along, 1)

			for x := 0; x < 2; x++ {
				offset := side.Scale(half * float32(2*x-1))
				s.addVertex(mesh.Vertex{
					Position: center.Add(offset),
					Normal:   normal,
					UV0:      math.Vec2{X: float32(x), Y: along},
					UV1:      math.Vec2{X: float32(x), Y: t},
					Tangent:  tangent(side),
					Color:    color,
				})
			}
		}
		back := s.duplicateFlipped(front, len(s.data.Vertices))

		for i := 0; i < len(ts)-1; i++ {
			l0, r0 := 2*i, 2*i+1
			l1, r1 := l0+2, r0+2
			s.addTriangle(front+l0, front+r0, front+r1, mat, m.Cutout)
			s.addTriangle(front+l0, front+r1, front+l1, mat, m.Cutout)
			s.addTriangle(back+l0, back+r1, back+r0, mat, m.Cutout)
			s.addTriangle(back+l0, back+l1, back+r1, mat, m.Cutout)
		}
	}
}

// duplicateFlipped appends copies of vertices [from, to) with inverted
// normals for the back face of double-sided geometry, and returns the index
// of the first copy.
func (s *build) duplicateFlipped(from, to int) int {
	first := len(s.data.Vertices)
	for i := from; i < to; i++ {
		v := s.data.Vertices[i]
		v.Normal = v.Normal.Neg()
		v.Tangent[0], v.Tangent[1], v.Tangent[2] = -v.Tangent[0], -v.Tangent[1], -v.Tangent[2]
		s.data.Vertices = append(s.data.Vertices, v)
	}
	return first
}
