package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/arbor/internal/atlas"
	"github.com/Faultbox/arbor/internal/config"
	"github.com/Faultbox/arbor/internal/tree"
)

func newTestBaker(t *testing.T) (*baker, string) {
	t.Helper()
	dir := t.TempDir()
	_, err := initProject(dir, false)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Atlas.Size = 256
	cfg.Atlas.Padding = 8

	b, err := newBaker(cfg, filepath.Join(dir, "birch.yaml"))
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b, dir
}

func TestInitProject(t *testing.T) {
	dir := t.TempDir()
	written, err := initProject(dir, false)
	require.NoError(t, err)
	assert.Len(t, written, 2)

	tr, err := tree.Load(filepath.Join(dir, "birch.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "birch", tr.Name)
	assert.NoError(t, tr.Validate())

	_, err = initProject(dir, false)
	assert.ErrorContains(t, err, "exists")
	_, err = initProject(dir, true)
	assert.NoError(t, err)
}

func TestBake(t *testing.T) {
	b, dir := newTestBaker(t)
	out := filepath.Join(dir, "out")

	objPath, err := b.Bake(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "birch.obj"), objPath)

	obj, err := os.ReadFile(objPath)
	require.NoError(t, err)
	assert.Contains(t, string(obj), "mtllib birch.mtl")
	assert.Contains(t, string(obj), "usemtl birch_opaque")

	assert.FileExists(t, filepath.Join(out, "birch.glb"))

	mtl, err := os.ReadFile(filepath.Join(out, "birch.mtl"))
	require.NoError(t, err)
	assert.Contains(t, string(mtl), "newmtl birch_cutout")
	assert.Contains(t, string(mtl), "map_Kd birch_diffuse.png")

	for ch := atlas.Channel(0); ch < atlas.ChannelCount; ch++ {
		assert.True(t, b.writer.Has(ch), ch.String())
	}
	assert.True(t, b.gen.Stats.Optimized)
	assert.LessOrEqual(t, b.gen.Stats.Submeshes, 2)

	// unchanged rebuild keeps the atlas
	_, err = b.Bake(false)
	require.NoError(t, err)
	assert.Equal(t, 1, b.gen.Optimizer.Stats.Composites)
	assert.Equal(t, 1, b.gen.Optimizer.Stats.Skipped)

	previewPath, err := b.Bake(true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "birch_preview.obj"), previewPath)
	assert.False(t, b.gen.Stats.Optimized)
}

func TestReloadResolvesTextures(t *testing.T) {
	b, dir := newTestBaker(t)
	bark := b.gen.Tree.Materials.Get("bark")
	require.NotNil(t, bark)
	assert.Equal(t, filepath.Join(dir, "textures", "bark.png"), bark.Textures[0])
	assert.Contains(t, b.watchDirs(), filepath.Join(dir, "textures"))
}

func TestBakeKeepsOutputOnFailure(t *testing.T) {
	b, dir := newTestBaker(t)
	objPath, err := b.Bake(true)
	require.NoError(t, err)
	before, err := os.ReadFile(objPath)
	require.NoError(t, err)

	broken := []byte("name: birch\ngroups:\n  - id: 1\n    kind: twig\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "birch.yaml"), broken, 0o644))
	b.apply(&pending{tree: true}, true)

	after, err := os.ReadFile(objPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, "birch", b.gen.Tree.Name)
}

func TestPendingClassify(t *testing.T) {
	b, dir := newTestBaker(t)
	var p pending
	assert.True(t, p.empty())

	assert.False(t, p.classify(fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write}, b))
	assert.False(t, p.classify(fsnotify.Event{Name: b.path, Op: fsnotify.Chmod}, b))
	assert.True(t, p.empty())

	assert.True(t, p.classify(fsnotify.Event{Name: b.path, Op: fsnotify.Write}, b))
	leaf := filepath.Join(dir, "textures", "leaf.png")
	assert.True(t, p.classify(fsnotify.Event{Name: leaf, Op: fsnotify.Create}, b))
	assert.True(t, p.tree)
	assert.True(t, p.textures[leaf])
}

func TestDigestsChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oak.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: oak\n"), 0o644))

	d := digests{}
	assert.True(t, d.changed([]string{path}))
	assert.False(t, d.changed([]string{path}))

	require.NoError(t, os.WriteFile(path, []byte("name: oak\n"), 0o644))
	assert.False(t, d.changed([]string{path}), "rewrite with same bytes")

	require.NoError(t, os.WriteFile(path, []byte("name: elm\n"), 0o644))
	assert.True(t, d.changed([]string{path}))

	require.NoError(t, os.Remove(path))
	assert.True(t, d.changed([]string{path}))
	assert.NotContains(t, d, path)
}

func TestApplySkipsUnchangedTree(t *testing.T) {
	b, _ := newTestBaker(t)
	_, err := b.Bake(true)
	require.NoError(t, err)
	version := b.mesh.Version

	b.digests.changed([]string{b.path})
	b.apply(&pending{tree: true}, true)
	assert.Equal(t, version, b.mesh.Version)

	b.apply(&pending{}, true)
	assert.Greater(t, b.mesh.Version, version)
}
