// Package generator rebuilds a tree's mesh and hands the buffers to a render
// target.
package generator

import (
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/arbor/internal/atlas"
	"github.com/Faultbox/arbor/internal/geometry"
	"github.com/Faultbox/arbor/internal/logger"
	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/internal/tree"
	"github.com/Faultbox/arbor/pkg/math"
)

// DefaultPreviewQuality caps the quality of preview builds.
const DefaultPreviewQuality = 0.25

// Stats describes the last successful update.
type Stats struct {
	Updates   int
	Failures  int
	Vertices  int
	Triangles int
	Submeshes int
	Optimized bool
	Duration  time.Duration
}

// Generator owns a tree and the settings its mesh is built with.
type Generator struct {
	Tree *tree.Tree

	Quality        float32
	PreviewQuality float32
	Seed           uint64
	Transform      math.Mat4
	// Flags are the full build passes. Preview builds run none of them.
	Flags geometry.BuildFlags

	// Optimizer combines the materials of full builds. Nil disables it.
	Optimizer *atlas.Optimizer
	Slots     atlas.Slots

	Stats Stats

	builder geometry.Builder
}

// New returns a generator for t with full quality settings.
func New(t *tree.Tree) *Generator {
	return &Generator{
		Tree:           t,
		Quality:        1,
		PreviewQuality: DefaultPreviewQuality,
		Flags:          geometry.Full(),
	}
}

// Options returns the build options of a preview or full build.
func (g *Generator) Options(preview bool) geometry.Options {
	opts := geometry.Options{
		Quality:   g.Quality,
		Seed:      g.Seed,
		Transform: g.Transform,
		Flags:     g.Flags,
	}
	if preview {
		opts.Quality = min(g.Quality, g.PreviewQuality)
		opts.Flags = geometry.Preview()
	}
	return opts
}

// UpdateMesh validates and builds the tree, optimizes its materials on full
// builds, then replaces the buffers of target. It returns false and leaves
// target untouched when the tree cannot be built. Dangling references are
// logged and skipped.
func (g *Generator) UpdateMesh(target mesh.Target, preview bool) bool {
	if target == nil {
		logger.Error("update mesh: no target mesh")
		return false
	}
	if g.Tree == nil {
		logger.Error("update mesh: no tree")
		return false
	}

	start := time.Now()
	if err := g.Tree.Validate(); err != nil {
		if tree.Fatal(err) {
			g.Stats.Failures++
			logger.Error("tree is invalid", zap.String("tree", g.Tree.Name), zap.Errors("errors", multierr.Errors(err)))
			return false
		}
		// Dangling links are skipped by the builder.
		logger.Warn("tree has dangling references", zap.String("tree", g.Tree.Name), zap.Errors("errors", multierr.Errors(err)))
	}

	opts := g.Options(preview)
	data, err := g.builder.Build(g.Tree, opts)
	if err != nil {
		g.Stats.Failures++
		if errors.Is(err, geometry.ErrMeshTooLarge) {
			logger.Warn("mesh exceeds the vertex budget, keeping the previous mesh",
				zap.String("tree", g.Tree.Name), zap.Error(err))
		} else {
			logger.Error("build failed", zap.String("tree", g.Tree.Name), zap.Error(err))
		}
		return false
	}

	optimized := false
	if opts.Flags.OptimizeMaterials && g.Optimizer != nil {
		out, err := g.Optimizer.Optimize(data, g.Slots)
		switch {
		case errors.Is(err, atlas.ErrSlotsUnassigned):
			logger.Error("optimized materials not assigned, using source materials", zap.String("tree", g.Tree.Name))
		case err != nil:
			logger.Warn("material optimization failed, using source materials",
				zap.String("tree", g.Tree.Name), zap.Error(err))
		default:
			data = out
			optimized = true
		}
	}

	target.Clear()
	target.SetData(data)
	target.RecalculateBounds()

	_, submeshes := data.Indices()
	g.Stats = Stats{
		Updates:   g.Stats.Updates + 1,
		Failures:  g.Stats.Failures,
		Vertices:  len(data.Vertices),
		Triangles: len(data.Triangles),
		Submeshes: len(submeshes),
		Optimized: optimized,
		Duration:  time.Since(start),
	}
	logger.Info("mesh updated",
		zap.String("tree", g.Tree.Name),
		zap.Bool("preview", preview),
		zap.Int("vertices", g.Stats.Vertices),
		zap.Int("triangles", g.Stats.Triangles),
		zap.Int("submeshes", g.Stats.Submeshes),
		zap.Bool("optimized", optimized),
		zap.Duration("took", g.Stats.Duration))
	return true
}
