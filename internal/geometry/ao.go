package geometry

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/pkg/math"
)

// aoFalloff skips occluders farther than this many radii away.
const aoFalloff = 8

// collectOccluders builds the occlusion proxies: one sphere per branch
// sample and one per leaf.
func (s *build) collectOccluders() {
	for i := range s.t.Nodes {
		n := &s.t.Nodes[i]
		if !n.Visible {
			continue
		}
		g := s.t.Group(n.Group)
		if g == nil {
			continue
		}
		switch {
		case g.Branch != nil:
			for _, t := range s.samples[i] {
				r := s.t.RadiusAt(n, t)
				if r <= 0 {
					continue
				}
				s.data.Occluders = append(s.data.Occluders, mesh.Sphere{
					Center: n.Curve.PositionAt(t),
					Radius: r,
				})
			}
		case g.Leaf != nil && n.Scale > 0:
			s.data.Occluders = append(s.data.Occluders, mesh.Sphere{
				Center: n.Position,
				Radius: n.Scale * 0.5,
			})
		}
	}
}

// bakeAO stores the ambient occlusion term of each vertex in its colour
// alpha. Spheres behind the vertex's surface do not occlude it.
func (s *build) bakeAO() {
	density, strength := float32(1), float32(0.5)
	if root := s.t.Root(); root != nil {
		density, strength = root.AODensity, root.AOStrength
	}

	for i := range s.data.Vertices {
		v := &s.data.Vertices[i]
		occ := occlusion(v.Position, v.Normal, s.data.Occluders)
		v.Color[3] = math.Clamp32(1-strength*min(occ*density, 1), 0, 1)
	}
}

func occlusion(p, n math.Vec3, spheres []mesh.Sphere) float32 {
	var occ float32
	for _, sp := range spheres {
		d := sp.Center.Sub(p)
		dist2 := d.Dot(d)
		r2 := sp.Radius * sp.Radius
		if dist2 < 1e-8 || dist2 > aoFalloff*aoFalloff*r2 {
			continue
		}
		cos := n.Dot(d) / math32.Sqrt(dist2)
		if cos <= 0 {
			continue
		}
		occ += r2 / dist2 * cos
	}
	return occ
}
