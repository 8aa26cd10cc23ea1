package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/arbor/internal/material"
	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/internal/tree"
	"github.com/Faultbox/arbor/pkg/math"
)

type fixture struct {
	tree   *tree.Tree
	trunk  int
	leaves int
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tr := tree.New("test", 3)

	bark := material.New("bark")
	bark.Tiling = true
	leaf := material.New("leaf")
	leaf.Cutout = true
	stump := material.New("stump")
	tr.Materials.Add(bark)
	tr.Materials.Add(leaf)
	tr.Materials.Add(stump)

	trunk, err := tr.AddGroup(tree.KindBranch, 0)
	require.NoError(t, err)
	tr.Groups[trunk].Branch.Material = "bark"
	tr.Groups[trunk].Branch.BreakMaterial = "stump"
	tr.Groups[trunk].Distribution.GrowAngle = 0

	leaves, err := tr.AddGroup(tree.KindLeaf, trunk)
	require.NoError(t, err)
	tr.Groups[leaves].Leaf.Material = "leaf"
	tr.Groups[leaves].Distribution.Frequency = 10

	return fixture{tree: tr, trunk: trunk, leaves: leaves}
}

func mustBuild(t *testing.T, tr *tree.Tree, opts Options) *mesh.Data {
	t.Helper()
	data, err := Builder{}.Build(tr, opts)
	require.NoError(t, err)
	require.NotNil(t, data)
	return data
}

func TestRadialSegments(t *testing.T) {
	tests := []struct {
		r, q float32
		want int
	}{
		{0.3, 1, 8},
		{0.5, 0.5, 6},
		{0.01, 1, 4},
		{0.3, 0, 4},
		{5, 1, 32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, radialSegments(tt.r, tt.q), "r=%v q=%v", tt.r, tt.q)
	}
}

func TestBuildDeterministic(t *testing.T) {
	f := newFixture(t)
	opts := Options{Quality: 0.6, Seed: 9, Flags: Full()}

	first := mustBuild(t, f.tree, opts)
	second := mustBuild(t, f.tree, opts)
	assert.Equal(t, first.Vertices, second.Vertices)
	assert.Equal(t, first.Triangles, second.Triangles)

	opts.Seed = 10
	other := mustBuild(t, f.tree, opts)
	assert.NotEqual(t, first.Vertices, other.Vertices)
}

func TestBuildBuffersConsistent(t *testing.T) {
	f := newFixture(t)
	f.tree.Groups[f.trunk].Branch.CapSmoothing = 0.3
	data := mustBuild(t, f.tree, Options{Quality: 1, Seed: 1, Flags: Full()})

	require.NotEmpty(t, data.Vertices)
	require.NotEmpty(t, data.Triangles)
	for i, tri := range data.Triangles {
		for _, v := range tri.V {
			require.Less(t, v, len(data.Vertices), "triangle %d", i)
		}
		require.Less(t, tri.Material, len(data.Materials))
		assert.Equal(t, data.Materials[tri.Material].Cutout, tri.Cutout)
	}
	for i, v := range data.Vertices {
		assert.InDelta(t, 1, v.Normal.Length(), 1e-3, "vertex %d normal", i)
		assert.False(t, v.Remapped)
	}

	var names []string
	for _, m := range data.Materials {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"bark", "leaf"}, names)
}

func TestPreviewAndFull(t *testing.T) {
	f := newFixture(t)

	preview := mustBuild(t, f.tree, Options{Quality: 1, Seed: 4, Flags: Preview()})
	assert.Empty(t, preview.Occluders)
	for _, v := range preview.Vertices {
		assert.Equal(t, float32(1), v.Color[3])
	}

	full := mustBuild(t, f.tree, Options{Quality: 1, Seed: 4, Flags: Full()})
	assert.NotEmpty(t, full.Occluders)
	occluded := 0
	for _, v := range full.Vertices {
		assert.GreaterOrEqual(t, v.Color[3], float32(0))
		assert.LessOrEqual(t, v.Color[3], float32(1))
		if v.Color[3] < 1 {
			occluded++
		}
	}
	assert.Positive(t, occluded)
}

func TestVertexBudget(t *testing.T) {
	f := newFixture(t)
	f.tree.Groups[f.leaves].Distribution.Frequency = 9000

	data, err := Builder{}.Build(f.tree, Options{Quality: 1, Seed: 1})
	assert.ErrorIs(t, err, ErrMeshTooLarge)
	assert.Nil(t, data)
}

func TestBuildNoTree(t *testing.T) {
	_, err := Builder{}.Build(nil, Options{})
	assert.ErrorIs(t, err, ErrNoTree)
}

func TestMissingMaterialDropsGeometry(t *testing.T) {
	f := newFixture(t)
	f.tree.Groups[f.leaves].Leaf.Material = "missing"

	data := mustBuild(t, f.tree, Options{Quality: 1, Seed: 2})
	for _, tri := range data.Triangles {
		assert.False(t, tri.Cutout)
	}
	require.Len(t, data.Materials, 1)
	assert.Equal(t, "bark", data.Materials[0].Name)
}

func TestLeafModes(t *testing.T) {
	tests := []struct {
		mode      tree.GeometryMode
		vertices  int
		triangles int
	}{
		{tree.LeafPlane, 8, 4},
		{tree.LeafCross, 16, 8},
		{tree.LeafTriCross, 24, 12},
		{tree.LeafBillboard, 4, 2},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			f := newFixture(t)
			f.tree.Groups[f.trunk].Branch.Material = ""
			f.tree.Groups[f.leaves].Distribution.Frequency = 1
			f.tree.Groups[f.leaves].Leaf.Mode = tt.mode

			data := mustBuild(t, f.tree, Options{Quality: 1, Seed: 5})
			assert.Len(t, data.Vertices, tt.vertices)
			assert.Len(t, data.Triangles, tt.triangles)
		})
	}
}

func TestBillboardCornersInUV1(t *testing.T) {
	f := newFixture(t)
	f.tree.Groups[f.trunk].Branch.Material = ""
	f.tree.Groups[f.leaves].Distribution.Frequency = 1
	f.tree.Groups[f.leaves].Leaf.Mode = tree.LeafBillboard
	f.tree.Groups[f.leaves].Leaf.Size = [2]float32{2, 2}

	data := mustBuild(t, f.tree, Options{Quality: 1, Seed: 5})
	require.Len(t, data.Vertices, 4)
	for _, v := range data.Vertices {
		assert.Equal(t, data.Vertices[0].Position, v.Position)
	}
	assert.Equal(t, math.Vec2{X: -1, Y: -1}, data.Vertices[0].UV1)
	assert.Equal(t, math.Vec2{X: 1, Y: 1}, data.Vertices[2].UV1)
}

func TestInstanceMesh(t *testing.T) {
	f := newFixture(t)
	f.tree.Groups[f.trunk].Branch.Material = ""
	l := f.tree.Groups[f.leaves].Leaf
	l.Mode = tree.LeafMesh
	l.Mesh = &tree.InstanceMesh{
		Positions: []math.Vec3{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}},
		Indices:   []uint32{0, 1, 2, 1, 3, 2, 0, 1, 9},
	}
	f.tree.Groups[f.leaves].Distribution.Frequency = 1

	data := mustBuild(t, f.tree, Options{Quality: 1, Seed: 5})
	assert.Len(t, data.Triangles, 2, "out of range triangle skipped")
	assert.Len(t, data.Vertices, 6)
	for _, v := range data.Vertices {
		assert.InDelta(t, 1, v.Normal.Length(), 1e-4)
	}
	// shared edge vertices are smoothed to the same normal
	assert.Equal(t, data.Vertices[1].Normal, data.Vertices[3].Normal)
}

func TestBrokenBranch(t *testing.T) {
	f := newFixture(t)
	b := f.tree.Groups[f.trunk].Branch
	b.BreakChance = 1
	b.BreakLocation = [2]float32{0.5, 0.5}
	f.tree.Groups[f.leaves].Leaf.Material = ""

	data := mustBuild(t, f.tree, Options{Quality: 1, Seed: 6})

	stump := -1
	for i, m := range data.Materials {
		if m.Name == "stump" {
			stump = i
		}
	}
	require.NotEqual(t, -1, stump, "break material used for the cap")
	for _, v := range data.Vertices {
		assert.LessOrEqual(t, v.UV1.Y, float32(0.5)+1e-5)
	}
}

func TestFrond(t *testing.T) {
	f := newFixture(t)
	fronds := material.New("fronds")
	fronds.Cutout = true
	f.tree.Materials.Add(fronds)
	b := f.tree.Groups[f.trunk].Branch
	b.Mode = tree.FrondOnly
	b.FrondMaterial = "fronds"
	b.FrondCount = 2
	f.tree.Groups[f.leaves].Leaf.Material = ""

	data := mustBuild(t, f.tree, Options{Quality: 1, Seed: 7})
	require.Len(t, data.Materials, 1)
	assert.Equal(t, "fronds", data.Materials[0].Name)
	// two strips, each with a front and back copy of its two-vertex rows
	assert.Zero(t, len(data.Vertices)%8)
	for _, tri := range data.Triangles {
		assert.True(t, tri.Cutout)
	}
}

func TestFrondTimes(t *testing.T) {
	ts := frondTimes([]float32{0, 1}, 0, 1, 10, 1)
	require.Len(t, ts, 11)
	assert.Equal(t, float32(0), ts[0])
	assert.Equal(t, float32(1), ts[10])
	assert.InDelta(t, 0.5, ts[5], 1e-6)

	dense := []float32{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	assert.Equal(t, []float32{0.2, 0.3, 0.4, 0.5}, frondTimes(dense, 0.2, 0.5, 1, 1))
}

func TestWeldFlaresBase(t *testing.T) {
	f := newFixture(t)
	limb, err := f.tree.AddGroup(tree.KindBranch, f.trunk)
	require.NoError(t, err)
	lb := f.tree.Groups[limb].Branch
	lb.WeldLength = 0.2
	lb.WeldSpread = 0.5

	_ = mustBuild(t, f.tree, Options{Quality: 1, Seed: 8, Flags: BuildFlags{WeldParts: true}})
	var n *tree.Node
	for i := range f.tree.Nodes {
		if f.tree.Nodes[i].Group == limb {
			n = &f.tree.Nodes[i]
			break
		}
	}
	require.NotNil(t, n)

	s := &build{t: f.tree, opts: Options{Flags: BuildFlags{WeldParts: true}}}
	require.True(t, s.welds(n, lb))
	welded, _, _ := s.ringRadius(n, lb, 0, true)
	plain, _, _ := s.ringRadius(n, lb, 0, false)
	assert.InDelta(t, plain*1.5, welded, 1e-5)

	trunk := &f.tree.Nodes[1]
	assert.False(t, s.welds(trunk, f.tree.Groups[f.trunk].Branch), "trunk grows from the root")
}

func TestTransform(t *testing.T) {
	f := newFixture(t)
	plain := mustBuild(t, f.tree, Options{Quality: 1, Seed: 3})
	moved := mustBuild(t, f.tree, Options{Quality: 1, Seed: 3, Transform: math.Translate(0, 10, 0)})

	assert.InDelta(t, plain.Bounds.Min.Y+10, moved.Bounds.Min.Y, 1e-3)
	assert.InDelta(t, plain.Bounds.Max.Y+10, moved.Bounds.Max.Y, 1e-3)
	pn, mn := plain.Vertices[0].Normal, moved.Vertices[0].Normal
	assert.InDelta(t, pn.X, mn.X, 1e-5)
	assert.InDelta(t, pn.Y, mn.Y, 1e-5)
	assert.InDelta(t, pn.Z, mn.Z, 1e-5)
}

func TestInsertSample(t *testing.T) {
	assert.Equal(t, []float32{0, 0.2, 0.5, 1}, insertSample([]float32{0, 0.5, 1}, 0.2))
	assert.Equal(t, []float32{0, 0.5, 1}, insertSample([]float32{0, 0.5, 1}, 0.5))
	assert.Equal(t, []float32{0, 0.5}, insertSample([]float32{0, 0.5}, 0.7))
}
