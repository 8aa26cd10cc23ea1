package geometry

import (
	"math/rand/v2"

	"github.com/chewxy/math32"

	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/internal/tree"
	"github.com/Faultbox/arbor/pkg/math"
)

const (
	minRadialSegments = 4
	maxRadialSegments = 32
)

// radialSegments returns the even ring resolution for radius r.
func radialSegments(r, quality float32) int {
	n := int(math32.Round(r*24*quality/2)) * 2
	return min(max(n, minRadialSegments), maxRadialSegments)
}

// welds reports whether node n gets a welded base. Only branches growing out
// of another branch are welded.
func (s *build) welds(n *tree.Node, b *tree.BranchParams) bool {
	if !s.opts.Flags.WeldParts || b.WeldLength <= 0 || b.WeldSpread <= 0 {
		return false
	}
	p := s.t.Node(n.Parent)
	return p != nil && p.Curve != nil
}

// ringRadius returns the radius at t together with the cap angle terms used
// to bend normals towards the tip.
func (s *build) ringRadius(n *tree.Node, b *tree.BranchParams, t float32, weld bool) (r, capSin, capCos float32) {
	r = s.t.RadiusAt(n, t)
	capCos = 1
	if weld && t < b.WeldLength {
		f := 1 - t/b.WeldLength
		r *= 1 + b.WeldSpread*f*f
	}
	if c := n.CapRange; c > 0 && t > 1-c {
		capSin = math.Clamp32((t-(1-c))/c, 0, 1)
		capCos = math32.Sqrt(1 - capSin*capSin)
		r *= capCos
	}
	return r, capSin, capCos
}

func (s *build) emitBranch(ni int, n *tree.Node, b *tree.BranchParams) {
	if !b.Mode.HasBranch() {
		return
	}
	ts := s.samples[ni]
	if len(ts) < 2 {
		return
	}
	mat, m, ok := s.material(b.Material)
	if !ok {
		return
	}

	baseR := s.t.RadiusAt(n, 0)
	segs := radialSegments(baseR, s.q)
	circumference := 2 * math32.Pi * max(baseR, 1e-4)
	weld := s.welds(n, b)
	color := rgba(b.Color)

	start := len(s.data.Vertices)
	for _, t := range ts {
		rot := n.Curve.RotationAt(t)
		axis, right, fwd := rot.Up(), rot.Right(), rot.Forward()
		center := n.Curve.PositionAt(t)
		r, capSin, capCos := s.ringRadius(n, b, t, weld)
		v := t * n.Length / circumference * m.UVTiling.Y

		for j := 0; j <= segs; j++ {
			u := float32(j) / float32(segs)
			a := u * 2 * math32.Pi
			sin, cos := math32.Sincos(a)
			dir := right.Scale(cos).Add(fwd.Scale(sin))
			s.addVertex(mesh.Vertex{
				Position: center.Add(dir.Scale(r)),
				Normal:   dir.Scale(capCos).Add(axis.Scale(capSin)).Normalize(),
				UV0:      math.Vec2{X: u, Y: v},
				UV1:      math.Vec2{X: u, Y: t},
				Tangent:  tangent(fwd.Scale(cos).Sub(right.Scale(sin))),
				Color:    color,
			})
		}
	}

	row := segs + 1
	for i := 0; i < len(ts)-1; i++ {
		a := start + i*row
		c := a + row
		for j := 0; j < segs; j++ {
			s.addTriangle(a+j, c+j, c+j+1, mat, m.Cutout)
			s.addTriangle(a+j, c+j+1, a+j+1, mat, m.Cutout)
		}
	}

	s.emitEndCap(n, b, ts[len(ts)-1], segs, weld)
}

// emitEndCap closes the tube with a fan. Broken branches use the break
// material and get a splintered center.
func (s *build) emitEndCap(n *tree.Node, b *tree.BranchParams, t float32, segs int, weld bool) {
	r, _, _ := s.ringRadius(n, b, t, weld)
	if r < 1e-4 {
		return
	}

	name := b.Material
	if n.Broken() && b.BreakMaterial != "" {
		name = b.BreakMaterial
	}
	mat, m, ok := s.material(name)
	if !ok {
		return
	}

	rot := n.Curve.RotationAt(t)
	axis, right, fwd := rot.Up(), rot.Right(), rot.Forward()
	center := n.Curve.PositionAt(t)
	color := rgba(b.Color)

	tip := center
	if n.Broken() {
		rng := rand.New(rand.NewPCG(n.Seed, 1))
		tip = center.Add(axis.Scale(r * (0.3 + 0.4*rng.Float32())))
	}
	hub := s.addVertex(mesh.Vertex{
		Position: tip,
		Normal:   axis,
		UV0:      math.Vec2{X: 0.5, Y: 0.5},
		UV1:      math.Vec2{X: 0.5, Y: t},
		Tangent:  tangent(right),
		Color:    color,
	})

	first := len(s.data.Vertices)
	for j := 0; j < segs; j++ {
		u := float32(j) / float32(segs)
		sin, cos := math32.Sincos(u * 2 * math32.Pi)
		dir := right.Scale(cos).Add(fwd.Scale(sin))
		s.addVertex(mesh.Vertex{
			Position: center.Add(dir.Scale(r)),
			Normal:   axis,
			UV0:      math.Vec2{X: 0.5 + 0.5*cos, Y: 0.5 + 0.5*sin},
			UV1:      math.Vec2{X: u, Y: t},
			Tangent:  tangent(right),
			Color:    color,
		})
	}
	if n.Broken() {
		s.faceNormals(hub, first, segs)
	}
	for j := 0; j < segs; j++ {
		next := first + (j+1)%segs
		s.addTriangle(hub, next, first+j, mat, m.Cutout)
	}
}

// faceNormals replaces the normals of a raised fan with the average of its
// face normals so the splintered tip shades as a cone.
func (s *build) faceNormals(hub, first, segs int) {
	vs := s.data.Vertices
	var hubN math.Vec3
	for j := 0; j < segs; j++ {
		a := vs[first+j].Position
		b := vs[first+(j+1)%segs].Position
		fn := b.Sub(vs[hub].Position).Cross(a.Sub(vs[hub].Position)).Normalize()
		hubN = hubN.Add(fn)
		vs[first+j].Normal = vs[first+j].Normal.Add(fn)
	}
	if hubN = hubN.Normalize(); hubN != (math.Vec3{}) {
		vs[hub].Normal = hubN
	}
	for j := 0; j < segs; j++ {
		vs[first+j].Normal = vs[first+j].Normal.Normalize()
	}
}
