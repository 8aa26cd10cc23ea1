package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/arbor/internal/assets"
	"github.com/Faultbox/arbor/internal/atlas"
	"github.com/Faultbox/arbor/internal/config"
	"github.com/Faultbox/arbor/internal/generator"
	"github.com/Faultbox/arbor/internal/geometry"
	"github.com/Faultbox/arbor/internal/gpu"
	"github.com/Faultbox/arbor/internal/logger"
	"github.com/Faultbox/arbor/internal/material"
	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/internal/shaders"
	"github.com/Faultbox/arbor/internal/texture"
	"github.com/Faultbox/arbor/internal/tree"
)

var errBuildFailed = errors.New("build failed, see log for details")

// baker owns everything one tree document is built with. It survives
// rebuilds so the optimizer can reuse unchanged atlases.
type baker struct {
	cfg      *config.Config
	path     string
	outDir   string
	name     string
	textures *texture.Loader
	gen      *generator.Generator
	mesh     *mesh.Mesh
	writer   *assets.Writer
	digests  digests
	release  func()
}

func newBaker(cfg *config.Config, path string) (*baker, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	outDir, err := filepath.Abs(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}

	b := &baker{
		cfg:      cfg,
		path:     abs,
		outDir:   outDir,
		textures: texture.NewLoader(filepath.Dir(abs)),
		gen:      generator.New(nil),
		digests:  digests{},
		release:  func() {},
	}
	if err := b.Reload(); err != nil {
		return nil, err
	}

	b.gen.Quality = cfg.Build.Quality
	b.gen.PreviewQuality = cfg.Build.PreviewQuality
	b.gen.Seed = cfg.Build.Seed
	b.gen.Flags = geometry.BuildFlags{
		AmbientOcclusion:  cfg.Build.AmbientOcclusion,
		WeldParts:         cfg.Build.Weld,
		OptimizeMaterials: cfg.Build.Optimize,
	}
	b.mesh = mesh.NewMesh(b.name)

	if cfg.Build.Optimize {
		b.writer = assets.NewWriter(outDir, b.name)
		o := atlas.NewOptimizer(b.compositor(), b.textures)
		o.Width, o.Height, o.Padding = cfg.Atlas.Size, cfg.Atlas.Size, cfg.Atlas.Padding
		o.Store = b.writer
		o.Shaders = shaders.NewResolver(cfg.Atlas.Shaders...)
		b.gen.Optimizer = o
		b.gen.Slots = atlas.Slots{
			Opaque: material.New(b.name + "_opaque"),
			Cutout: material.New(b.name + "_cutout"),
		}
	}
	return b, nil
}

// compositor returns the configured compositor, falling back to the CPU one
// when no GL context can be created.
func (b *baker) compositor() atlas.Compositor {
	if b.cfg.Atlas.Compositor != "gpu" {
		return atlas.NewCPUCompositor()
	}
	ctx, err := gpu.NewContext()
	if err != nil {
		logger.Warn("GPU unavailable, compositing on the CPU", zap.Error(err))
		return atlas.NewCPUCompositor()
	}
	c, err := gpu.NewCompositor()
	if err != nil {
		ctx.Close()
		logger.Warn("GPU compositor failed, compositing on the CPU", zap.Error(err))
		return atlas.NewCPUCompositor()
	}
	b.release = func() {
		c.Destroy()
		ctx.Close()
	}
	return c
}

// Reload reads the tree document again. Texture paths are made absolute so
// the output files can reference them from any directory.
func (b *baker) Reload() error {
	t, err := tree.Load(b.path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(b.path)
	for _, m := range t.Materials {
		for slot, p := range m.Textures {
			if p != "" && !filepath.IsAbs(p) {
				m.Textures[slot] = filepath.Join(dir, p)
			}
		}
	}

	if b.name == "" {
		b.name = b.cfg.Output.Name
		if b.name == "" {
			b.name = t.Name
		}
		if b.name == "" {
			b.name = strings.TrimSuffix(filepath.Base(b.path), filepath.Ext(b.path))
		}
	}
	b.gen.Tree = t
	return nil
}

// Bake builds the mesh and writes it as OBJ with its material library, plus a
// binary glTF copy. It returns the OBJ path.
func (b *baker) Bake(preview bool) (string, error) {
	if !b.gen.UpdateMesh(b.mesh, preview) {
		return "", errBuildFailed
	}
	if err := os.MkdirAll(b.outDir, 0755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	base := b.name
	if preview {
		base += "_preview"
	}
	objPath := filepath.Join(b.outDir, base+".obj")
	mtlName := base + ".mtl"

	if err := writeFile(filepath.Join(b.outDir, mtlName), func(f *os.File) error {
		return mesh.WriteMTL(f, b.mesh.Data.Materials, b.outDir)
	}); err != nil {
		return "", err
	}
	if err := writeFile(objPath, func(f *os.File) error {
		return mesh.WriteOBJ(f, b.mesh.Data, mtlName)
	}); err != nil {
		return "", err
	}

	if err := mesh.SaveGLB(b.mesh.Data, b.name, filepath.Join(b.outDir, base+".glb")); err != nil {
		return "", fmt.Errorf("writing glb: %w", err)
	}

	logger.Info("mesh written", zap.String("path", objPath), zap.Int("version", b.mesh.Version))
	return objPath, nil
}

// Close releases the GPU context, if any.
func (b *baker) Close() {
	b.release()
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
