// Package mesh holds the vertex and triangle buffers produced by a tree build
// and the mesh object they are applied to.
package mesh

import (
	"github.com/Faultbox/arbor/internal/material"
	"github.com/Faultbox/arbor/pkg/math"
)

// Vertex is a tree mesh vertex.
type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	// UV0 is the surface detail channel; atlas packing remaps it.
	UV0 math.Vec2
	// UV1 carries the around/along parameters, or corner offsets for billboards.
	UV1     math.Vec2
	Tangent [4]float32
	// Color alpha holds the baked ambient occlusion term.
	Color [4]float32
	// Remapped is set once UV0 has been moved into an atlas rect.
	Remapped bool
}

// Triangle references three vertices and a material index.
type Triangle struct {
	V        [3]int
	Material int
	Cutout   bool
}

// Sphere is an occlusion proxy used to bake ambient occlusion.
type Sphere struct {
	Center math.Vec3
	Radius float32
}

// Submesh is a contiguous index range drawn with one material.
type Submesh struct {
	Material   int
	StartIndex int32
	IndexCount int32
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Center returns the box center.
func (b Bounds) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the box extents.
func (b Bounds) Size() math.Vec3 {
	return b.Max.Sub(b.Min)
}

// Data holds the buffers of one build pass.
type Data struct {
	Vertices  []Vertex
	Triangles []Triangle
	// Materials is indexed by Triangle.Material.
	Materials []*material.Material
	Occluders []Sphere
	Bounds    Bounds
}
