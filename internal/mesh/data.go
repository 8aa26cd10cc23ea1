package mesh

import (
	"slices"

	"github.com/Faultbox/arbor/pkg/math"
)

// Clone returns a deep copy of the buffers. Materials are shared.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	return &Data{
		Vertices:  slices.Clone(d.Vertices),
		Triangles: slices.Clone(d.Triangles),
		Materials: slices.Clone(d.Materials),
		Occluders: slices.Clone(d.Occluders),
		Bounds:    d.Bounds,
	}
}

// Indices builds the index buffer with one submesh per material, in material
// order. Materials without triangles get no submesh.
func (d *Data) Indices() ([]uint32, []Submesh) {
	groups := make([][]uint32, len(d.Materials))
	for _, tri := range d.Triangles {
		if tri.Material < 0 || tri.Material >= len(groups) {
			continue
		}
		groups[tri.Material] = append(groups[tri.Material],
			uint32(tri.V[0]), uint32(tri.V[1]), uint32(tri.V[2]))
	}

	var (
		indices   []uint32
		submeshes []Submesh
	)
	for mat, idxs := range groups {
		if len(idxs) == 0 {
			continue
		}
		submeshes = append(submeshes, Submesh{
			Material:   mat,
			StartIndex: int32(len(indices)),
			IndexCount: int32(len(idxs)),
		})
		indices = append(indices, idxs...)
	}
	return indices, submeshes
}

// ComputeBounds returns the bounding box of the vertex positions. An empty
// vertex list yields a zero box.
func ComputeBounds(vertices []Vertex) Bounds {
	if len(vertices) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: vertices[0].Position, Max: vertices[0].Position}
	for i := 1; i < len(vertices); i++ {
		updateBounds(&b, vertices[i].Position)
	}
	return b
}

// Transform applies m to positions, normals and tangents. Tangent handedness
// is preserved.
func (d *Data) Transform(m math.Mat4) {
	if m.IsIdentity() {
		return
	}
	for i := range d.Vertices {
		v := &d.Vertices[i]
		v.Position = m.TransformPoint(v.Position)
		v.Normal = m.TransformNormal(v.Normal)
		t := m.TransformDirection(math.Vec3{X: v.Tangent[0], Y: v.Tangent[1], Z: v.Tangent[2]}).Normalize()
		v.Tangent = [4]float32{t.X, t.Y, t.Z, v.Tangent[3]}
	}
	for i := range d.Occluders {
		s := &d.Occluders[i]
		edge := m.TransformDirection(math.Vec3{X: s.Radius})
		s.Center = m.TransformPoint(s.Center)
		s.Radius = edge.Length()
	}
	d.Bounds = ComputeBounds(d.Vertices)
}

// SmoothNormals averages normals of vertices that share a position.
// Only the vertices listed in idxs are considered.
func SmoothNormals(vertices []Vertex, idxs []int) {
	const epsilon float32 = 0.001

	// Group vertices by quantized position for O(n) lookup
	posMap := make(map[[3]int32][]int)
	for _, i := range idxs {
		p := vertices[i].Position
		key := [3]int32{int32(p.X / epsilon), int32(p.Y / epsilon), int32(p.Z / epsilon)}
		posMap[key] = append(posMap[key], i)
	}

	for _, shared := range posMap {
		if len(shared) < 2 {
			continue
		}
		var sum math.Vec3
		for _, i := range shared {
			sum = sum.Add(vertices[i].Normal)
		}
		avg := sum.Normalize()
		if avg == (math.Vec3{}) {
			continue
		}
		for _, i := range shared {
			vertices[i].Normal = avg
		}
	}
}

func updateBounds(b *Bounds, p math.Vec3) {
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
}
