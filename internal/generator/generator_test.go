package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/arbor/internal/atlas"
	"github.com/Faultbox/arbor/internal/logger"
	"github.com/Faultbox/arbor/internal/material"
	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/internal/tree"
)

// observe routes the package logger into an in-memory sink for one test.
func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(logger.Set(zap.New(core)))
	return logs
}

type fixture struct {
	tree   *tree.Tree
	leaves int
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tr := tree.New("oak", 11)

	bark := material.New("bark")
	bark.Tiling = true
	bark.Shader = "Nature/Bark"
	leaf := material.New("leaf")
	leaf.Cutout = true
	leaf.Shader = "Nature/Leaves"
	tr.Materials.Add(bark)
	tr.Materials.Add(leaf)

	trunk, err := tr.AddGroup(tree.KindBranch, 0)
	require.NoError(t, err)
	tr.Groups[trunk].Branch.Material = "bark"

	leaves, err := tr.AddGroup(tree.KindLeaf, trunk)
	require.NoError(t, err)
	tr.Groups[leaves].Leaf.Material = "leaf"
	tr.Groups[leaves].Distribution.Frequency = 12

	return fixture{tree: tr, leaves: leaves}
}

// countingTarget records the calls made on it.
type countingTarget struct {
	clears, sets, bounds int
	data                 *mesh.Data
}

func (c *countingTarget) Clear()               { c.clears++ }
func (c *countingTarget) SetData(d *mesh.Data) { c.sets++; c.data = d }
func (c *countingTarget) RecalculateBounds()   { c.bounds++ }

func newOptimizer() *atlas.Optimizer {
	o := atlas.NewOptimizer(atlas.NewCPUCompositor(), nil)
	o.Width, o.Height, o.Padding = 128, 128, 4
	return o
}

func TestUpdateMesh(t *testing.T) {
	f := newFixture(t)
	g := New(f.tree)
	m := mesh.NewMesh("oak")

	require.True(t, g.UpdateMesh(m, false))
	assert.False(t, m.Empty())
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, g.Stats.Vertices, m.VertexCount())
	assert.Equal(t, 1, g.Stats.Updates)
	assert.Len(t, m.Submeshes, 2)
	assert.NotEqual(t, mesh.Bounds{}, m.Bounds)
}

func TestUpdateMeshCallsTargetInOrder(t *testing.T) {
	g := New(newFixture(t).tree)
	target := &countingTarget{}

	require.True(t, g.UpdateMesh(target, true))
	assert.Equal(t, 1, target.clears)
	assert.Equal(t, 1, target.sets)
	assert.Equal(t, 1, target.bounds)
	assert.NotNil(t, target.data)
}

func TestUpdateMeshNoTarget(t *testing.T) {
	logs := observe(t)
	g := New(newFixture(t).tree)

	assert.False(t, g.UpdateMesh(nil, false))
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestUpdateMeshBudgetKeepsPreviousMesh(t *testing.T) {
	logs := observe(t)
	f := newFixture(t)
	g := New(f.tree)
	m := mesh.NewMesh("oak")
	require.True(t, g.UpdateMesh(m, true))
	prev, version := m.Data, m.Version

	f.tree.Groups[f.leaves].Distribution.Frequency = 9000
	target := &countingTarget{}
	assert.NotPanics(t, func() {
		assert.False(t, g.UpdateMesh(m, false))
		assert.False(t, g.UpdateMesh(target, false))
	})

	assert.Same(t, prev, m.Data)
	assert.Equal(t, version, m.Version)
	assert.Zero(t, target.clears+target.sets+target.bounds)
	assert.Equal(t, 2, g.Stats.Failures)
	assert.Equal(t, 2, logs.FilterMessageSnippet("vertex budget").FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestUpdateMeshInvalidTree(t *testing.T) {
	logs := observe(t)
	f := newFixture(t)
	f.tree.Groups[f.leaves].Branch = tree.DefaultBranch()
	target := &countingTarget{}

	assert.False(t, New(f.tree).UpdateMesh(target, false))
	assert.Zero(t, target.sets)
	assert.Equal(t, 1, logs.FilterMessage("tree is invalid").Len())
}

func TestUpdateMeshSkipsDanglingReferences(t *testing.T) {
	logs := observe(t)
	f := newFixture(t)
	f.tree.Groups[0].Children = append(f.tree.Groups[0].Children, 42)
	require.Error(t, f.tree.Validate())
	m := mesh.NewMesh("oak")

	require.True(t, New(f.tree).UpdateMesh(m, false))
	assert.NotZero(t, m.VertexCount())
	assert.Equal(t, 1, logs.FilterMessage("tree has dangling references").FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Zero(t, logs.FilterMessage("tree is invalid").Len())
}

func TestUpdateMeshOptimizes(t *testing.T) {
	g := New(newFixture(t).tree)
	g.Optimizer = newOptimizer()
	g.Slots = atlas.Slots{Opaque: material.New("oak_opaque"), Cutout: material.New("oak_cutout")}
	m := mesh.NewMesh("oak")

	require.True(t, g.UpdateMesh(m, false))
	assert.True(t, g.Stats.Optimized)
	require.Len(t, m.Data.Materials, 2)
	assert.Same(t, g.Slots.Opaque, m.Data.Materials[0])
	assert.Same(t, g.Slots.Cutout, m.Data.Materials[1])
	assert.LessOrEqual(t, len(m.Submeshes), 2)
	for _, tri := range m.Data.Triangles {
		if tri.Cutout {
			assert.Equal(t, 1, tri.Material)
		} else {
			assert.Equal(t, 0, tri.Material)
		}
	}

	// unchanged rebuild reuses the combined textures
	require.True(t, g.UpdateMesh(m, false))
	assert.Equal(t, 1, g.Optimizer.Stats.Composites)
	assert.Equal(t, 1, g.Optimizer.Stats.Skipped)
}

func TestUpdateMeshPreviewSkipsOptimizer(t *testing.T) {
	g := New(newFixture(t).tree)
	g.Optimizer = newOptimizer()
	g.Slots = atlas.Slots{Opaque: material.New("o"), Cutout: material.New("c")}

	require.True(t, g.UpdateMesh(mesh.NewMesh("oak"), true))
	assert.Zero(t, g.Optimizer.Stats.Optimizes)
	assert.False(t, g.Stats.Optimized)
}

func TestUpdateMeshFallsBackWithoutSlots(t *testing.T) {
	logs := observe(t)
	g := New(newFixture(t).tree)
	g.Optimizer = newOptimizer()
	m := mesh.NewMesh("oak")

	require.True(t, g.UpdateMesh(m, false))
	assert.False(t, g.Stats.Optimized)
	names := make([]string, 0, len(m.Data.Materials))
	for _, mat := range m.Data.Materials {
		names = append(names, mat.Name)
	}
	assert.ElementsMatch(t, []string{"bark", "leaf"}, names)
	assert.Equal(t, 1, logs.FilterMessageSnippet("not assigned").Len())
}

func TestOptionsPreview(t *testing.T) {
	g := New(tree.New("t", 1))
	g.Quality = 0.8

	full := g.Options(false)
	assert.Equal(t, float32(0.8), full.Quality)
	assert.True(t, full.Flags.AmbientOcclusion)

	preview := g.Options(true)
	assert.Equal(t, float32(DefaultPreviewQuality), preview.Quality)
	assert.False(t, preview.Flags.OptimizeMaterials)
}
