// Package geometry turns a grown tree into mesh buffers.
package geometry

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/Faultbox/arbor/internal/material"
	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/internal/tree"
	"github.com/Faultbox/arbor/pkg/math"
	"github.com/Faultbox/arbor/pkg/spline"
)

// MaxVertices is the vertex budget of a single build.
const MaxVertices = 65000

var (
	// ErrMeshTooLarge aborts a build whose vertex count exceeds MaxVertices.
	ErrMeshTooLarge = errors.New("geometry: mesh exceeds vertex budget")
	ErrNoTree       = errors.New("geometry: no tree")
)

// BuildFlags toggles the expensive build passes.
type BuildFlags struct {
	AmbientOcclusion  bool
	WeldParts         bool
	OptimizeMaterials bool
}

// Preview returns the flags for the cheap interactive build.
func Preview() BuildFlags {
	return BuildFlags{}
}

// Full returns the flags for a final build.
func Full() BuildFlags {
	return BuildFlags{AmbientOcclusion: true, WeldParts: true, OptimizeMaterials: true}
}

// Options configures a build.
type Options struct {
	// Quality in [0,1] trades fidelity for polygon count.
	Quality float32
	Seed    uint64
	// Transform is applied to the finished buffers. The zero matrix means
	// identity.
	Transform math.Mat4
	Flags     BuildFlags
	// Materials overrides the tree's material library when set.
	Materials material.Library
}

func (o Options) transform() math.Mat4 {
	if o.Transform == (math.Mat4{}) {
		return math.Identity()
	}
	return o.Transform
}

// Builder converts trees into mesh data.
type Builder struct{}

// build is the state of one Build call.
type build struct {
	t        *tree.Tree
	opts     Options
	q        float32
	lib      material.Library
	data     *mesh.Data
	matIndex map[string]int
	samples  map[int][]float32
}

// Build grows t from opts.Seed and the root seed, then emits the geometry of
// every visible node. The tree's nodes are regenerated; nothing else in t is
// modified. Builds abort with ErrMeshTooLarge once the vertex budget is
// exceeded, returning no data.
func (Builder) Build(t *tree.Tree, opts Options) (*mesh.Data, error) {
	if t == nil || t.Root() == nil {
		return nil, ErrNoTree
	}

	rng := rand.New(rand.NewPCG(opts.Seed, uint64(t.Root().Seed)))
	t.Grow(rng)

	s := &build{
		t:        t,
		opts:     opts,
		q:        math.Clamp32(opts.Quality, 0, 1),
		lib:      t.Materials,
		data:     &mesh.Data{},
		matIndex: make(map[string]int),
		samples:  make(map[int][]float32),
	}
	if opts.Materials != nil {
		s.lib = opts.Materials
	}

	s.sampleNodes()
	if opts.Flags.AmbientOcclusion {
		s.collectOccluders()
	}

	for i := range t.Nodes {
		s.emitNode(i)
		if n := len(s.data.Vertices); n > MaxVertices {
			return nil, fmt.Errorf("%w: %d vertices (max %d)", ErrMeshTooLarge, n, MaxVertices)
		}
	}

	if opts.Flags.AmbientOcclusion {
		s.bakeAO()
	}
	s.data.Bounds = mesh.ComputeBounds(s.data.Vertices)
	s.data.Transform(opts.transform())
	return s.data, nil
}

// sampleNodes runs the curve sampler for every branch node.
func (s *build) sampleNodes() {
	for i := range s.t.Nodes {
		n := &s.t.Nodes[i]
		g := s.t.Group(n.Group)
		if g == nil || g.Branch == nil || n.Curve.Len() == 0 {
			continue
		}
		ts := spline.AdaptiveSamples(n.Curve, spline.SampleParams{
			CapRange:    n.CapRange,
			BreakOffset: n.BreakOffset,
			Radius:      func(at float32) float32 { return s.t.RadiusAt(n, at) },
			RadiusScale: s.t.RadiusScale(n),
			Quality:     s.q,
		})
		if s.welds(n, g.Branch) {
			ts = insertSample(ts, g.Branch.WeldLength)
		}
		s.samples[i] = ts
	}
}

func (s *build) emitNode(i int) {
	n := &s.t.Nodes[i]
	if !n.Visible {
		return
	}
	g := s.t.Group(n.Group)
	if g == nil {
		return
	}
	switch g.Kind {
	case tree.KindBranch:
		if g.Branch == nil {
			return
		}
		s.emitBranch(i, n, g.Branch)
		s.emitFrond(i, n, g.Branch)
	case tree.KindLeaf:
		if g.Leaf == nil {
			return
		}
		s.emitLeaf(n, g.Leaf)
	}
}

// material resolves a material name to its index in the build's material
// list. Unknown names report false and the caller skips the geometry.
func (s *build) material(name string) (int, *material.Material, bool) {
	m := s.lib.Get(name)
	if m == nil {
		return 0, nil, false
	}
	if idx, ok := s.matIndex[name]; ok {
		return idx, m, true
	}
	idx := len(s.data.Materials)
	s.data.Materials = append(s.data.Materials, m)
	s.matIndex[name] = idx
	return idx, m, true
}

func (s *build) addVertex(v mesh.Vertex) int {
	s.data.Vertices = append(s.data.Vertices, v)
	return len(s.data.Vertices) - 1
}

func (s *build) addTriangle(a, b, c, mat int, cutout bool) {
	s.data.Triangles = append(s.data.Triangles, mesh.Triangle{
		V:        [3]int{a, b, c},
		Material: mat,
		Cutout:   cutout,
	})
}

// insertSample adds t to a sorted sample list unless it is already present
// or past the end.
func insertSample(ts []float32, t float32) []float32 {
	if len(ts) < 2 || t <= ts[0] || t >= ts[len(ts)-1] {
		return ts
	}
	for i, v := range ts {
		if v == t {
			return ts
		}
		if v > t {
			out := make([]float32, 0, len(ts)+1)
			out = append(out, ts[:i]...)
			out = append(out, t)
			return append(out, ts[i:]...)
		}
	}
	return ts
}

func tangent(d math.Vec3) [4]float32 {
	return [4]float32{d.X, d.Y, d.Z, -1}
}

func rgba(c [4]float32) [4]float32 {
	return [4]float32{c[0], c[1], c[2], 1}
}
