package geometry

import (
	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/internal/tree"
	"github.com/Faultbox/arbor/pkg/math"
)

// corners of a unit quad in (x, y), counter-clockwise.
var corners = [4]math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}

func (s *build) emitLeaf(n *tree.Node, l *tree.LeafParams) {
	mat, m, ok := s.material(l.Material)
	if !ok {
		return
	}
	rot := n.Rotation
	right, up, fwd := rot.Right(), rot.Up(), rot.Forward()
	color := rgba(l.Color)

	switch l.Mode {
	case tree.LeafPlane:
		s.leafQuad(n.Position, right, up, n.Scale, color, mat, m.Cutout)
	case tree.LeafCross:
		s.leafQuad(n.Position, right, up, n.Scale, color, mat, m.Cutout)
		s.leafQuad(n.Position, fwd, up, n.Scale, color, mat, m.Cutout)
	case tree.LeafTriCross:
		s.leafQuad(n.Position, right, up, n.Scale, color, mat, m.Cutout)
		s.leafQuad(n.Position, fwd, up, n.Scale, color, mat, m.Cutout)
		s.leafQuad(n.Position, right, fwd, n.Scale, color, mat, m.Cutout)
	case tree.LeafBillboard:
		s.billboard(n.Position, up, n.Scale, color, mat, m.Cutout)
	case tree.LeafMesh:
		s.instance(n, l.Mesh, color, mat, m.Cutout)
	}
}

// leafQuad emits a double-sided quad spanned by u and v. The quad's base
// edge is centered on the attachment point.
func (s *build) leafQuad(base, u, v math.Vec3, size float32, color [4]float32, mat int, cutout bool) {
	normal := u.Cross(v).Normalize()
	front := len(s.data.Vertices)
	for _, c := range corners {
		s.addVertex(mesh.Vertex{
			Position: base.Add(u.Scale((c.X - 0.5) * size)).Add(v.Scale(c.Y * size)),
			Normal:   normal,
			UV0:      c,
			UV1:      c,
			Tangent:  tangent(u),
			Color:    color,
		})
	}
	back := s.duplicateFlipped(front, front+4)

	s.addTriangle(front, front+1, front+2, mat, cutout)
	s.addTriangle(front, front+2, front+3, mat, cutout)
	s.addTriangle(back, back+2, back+1, mat, cutout)
	s.addTriangle(back, back+3, back+2, mat, cutout)
}

// billboard emits a camera-facing quad: all four vertices sit at the center
// and UV1 holds the corner offsets the vertex shader expands.
func (s *build) billboard(center, up math.Vec3, size float32, color [4]float32, mat int, cutout bool) {
	first := len(s.data.Vertices)
	for _, c := range corners {
		s.addVertex(mesh.Vertex{
			Position: center,
			Normal:   up,
			UV0:      c,
			UV1:      math.Vec2{X: (c.X - 0.5) * size, Y: (c.Y - 0.5) * size},
			Tangent:  tangent(math.Right),
			Color:    color,
		})
	}
	s.addTriangle(first, first+1, first+2, mat, cutout)
	s.addTriangle(first, first+2, first+3, mat, cutout)
}

// instance places the user mesh at the node. Triangles that reference
// missing vertices are skipped. Meshes without normals are shaded with
// smoothed face normals.
func (s *build) instance(n *tree.Node, im *tree.InstanceMesh, color [4]float32, mat int, cutout bool) {
	if im == nil || len(im.Positions) == 0 {
		return
	}
	xf := math.TRS(n.Position, n.Rotation, n.Scale)
	hasNormals := len(im.Normals) == len(im.Positions)
	hasUVs := len(im.UVs) == len(im.Positions)

	vertex := func(i uint32) mesh.Vertex {
		v := mesh.Vertex{
			Position: xf.TransformPoint(im.Positions[i]),
			Tangent:  tangent(xf.TransformDirection(math.Right).Normalize()),
			Color:    color,
		}
		if hasNormals {
			v.Normal = xf.TransformNormal(im.Normals[i])
		}
		if hasUVs {
			v.UV0 = im.UVs[i]
			v.UV1 = im.UVs[i]
		}
		return v
	}

	if hasNormals {
		base := len(s.data.Vertices)
		for i := range im.Positions {
			s.addVertex(vertex(uint32(i)))
		}
		for i := 0; i+2 < len(im.Indices); i += 3 {
			a, b, c := im.Indices[i], im.Indices[i+1], im.Indices[i+2]
			if !validIndex(a, b, c, len(im.Positions)) {
				continue
			}
			s.addTriangle(base+int(a), base+int(b), base+int(c), mat, cutout)
		}
		return
	}

	var emitted []int
	for i := 0; i+2 < len(im.Indices); i += 3 {
		a, b, c := im.Indices[i], im.Indices[i+1], im.Indices[i+2]
		if !validIndex(a, b, c, len(im.Positions)) {
			continue
		}
		va, vb, vc := vertex(a), vertex(b), vertex(c)
		fn := vb.Position.Sub(va.Position).Cross(vc.Position.Sub(va.Position)).Normalize()
		if fn == (math.Vec3{}) {
			// degenerate
			continue
		}
		va.Normal, vb.Normal, vc.Normal = fn, fn, fn
		ia, ib, ic := s.addVertex(va), s.addVertex(vb), s.addVertex(vc)
		emitted = append(emitted, ia, ib, ic)
		s.addTriangle(ia, ib, ic, mat, cutout)
	}
	mesh.SmoothNormals(s.data.Vertices, emitted)
}

func validIndex(a, b, c uint32, n int) bool {
	return int(a) < n && int(b) < n && int(c) < n
}
