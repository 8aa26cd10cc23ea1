package atlas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/arbor/internal/material"
	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/pkg/math"
)

type memStore struct {
	saved   map[Channel]image.Image
	missing bool
	fail    bool
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[Channel]image.Image)}
}

func (s *memStore) Has(ch Channel) bool {
	_, ok := s.saved[ch]
	return ok && !s.missing
}

func (s *memStore) Save(ch Channel, img image.Image) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.saved[ch] = img
	return nil
}

func (s *memStore) Path(ch Channel) string {
	return fmt.Sprintf("atlas/%s.png", ch)
}

type suffixShaders struct{}

func (suffixShaders) Resolve(source string, cutout bool) string {
	if cutout {
		return source + " Cutout Optimized"
	}
	return source + " Optimized"
}

// twoMaterialData has one bark triangle and one leaf triangle.
func twoMaterialData() *mesh.Data {
	bark := mat("bark", true)
	bark.Shader = "Bark"
	leaf := mat("leaf", false)
	leaf.Cutout = true
	leaf.Shader = "Leaf"

	vertex := func(u, v float32) mesh.Vertex {
		return mesh.Vertex{UV0: math.Vec2{X: u, Y: v}}
	}
	return &mesh.Data{
		Vertices: []mesh.Vertex{
			vertex(0, 0), vertex(1, 0), vertex(1, 1),
			vertex(0, 0), vertex(1, 0), vertex(0.5, 1),
		},
		Triangles: []mesh.Triangle{
			{V: [3]int{0, 1, 2}, Material: 0},
			{V: [3]int{3, 4, 5}, Material: 1, Cutout: true},
		},
		Materials: []*material.Material{bark, leaf},
	}
}

func newTestOptimizer(store Store) *Optimizer {
	o := NewOptimizer(NewCPUCompositor(), nil)
	o.Width, o.Height, o.Padding = 128, 128, 4
	o.Store = store
	o.Shaders = suffixShaders{}
	return o
}

func testSlots() Slots {
	return Slots{Opaque: material.New("opaque"), Cutout: material.New("cutout")}
}

func TestOptimizeRemapsToSlots(t *testing.T) {
	store := newMemStore()
	o := newTestOptimizer(store)
	data := twoMaterialData()
	slots := testSlots()

	out, err := o.Optimize(data, slots)
	require.NoError(t, err)

	require.Len(t, out.Materials, 2)
	assert.Same(t, slots.Opaque, out.Materials[0])
	assert.Same(t, slots.Cutout, out.Materials[1])
	assert.Equal(t, 0, out.Triangles[0].Material)
	assert.Equal(t, 1, out.Triangles[1].Material)

	bark := o.Atlas.Lookup("bark")
	leaf := o.Atlas.Lookup("leaf")
	require.NotNil(t, bark)
	require.NotNil(t, leaf)
	assert.Equal(t, bark.Remap(math.Vec2{X: 1, Y: 1}), out.Vertices[2].UV0)
	assert.Equal(t, leaf.Remap(math.Vec2{X: 0.5, Y: 1}), out.Vertices[5].UV0)
	for _, v := range out.Vertices {
		assert.True(t, v.Remapped)
	}

	// the input is untouched
	assert.Equal(t, twoMaterialData().Vertices, data.Vertices)
	assert.Equal(t, 1, data.Triangles[1].Material)
	assert.Equal(t, "bark", data.Materials[0].Name)

	assert.Equal(t, "Bark Optimized", slots.Opaque.Shader)
	assert.Equal(t, "Leaf Cutout Optimized", slots.Cutout.Shader)
	assert.True(t, slots.Cutout.Cutout)
	assert.False(t, slots.Opaque.Cutout)
	assert.Equal(t, "atlas/diffuse.png", slots.Opaque.Textures[material.SlotDiffuse])
	assert.Equal(t, "atlas/translucency.png", slots.Cutout.Textures[material.SlotGloss])
	assert.Equal(t, "atlas/shadow.png", slots.Cutout.Textures[material.SlotShadowOffset])

	assert.Len(t, store.saved, int(ChannelCount))
	for ch := Channel(0); ch < ChannelCount; ch++ {
		assert.NotNil(t, o.Outputs()[ch])
	}
}

func TestOptimizeSkipsUnchangedComposite(t *testing.T) {
	o := newTestOptimizer(newMemStore())

	_, err := o.Optimize(twoMaterialData(), testSlots())
	require.NoError(t, err)
	_, err = o.Optimize(twoMaterialData(), testSlots())
	require.NoError(t, err)
	assert.Equal(t, Stats{Optimizes: 2, Composites: 1, Skipped: 1}, o.Stats)

	changed := twoMaterialData()
	changed.Materials[0].Color = [4]float32{0.5, 0.4, 0.3, 1}
	_, err = o.Optimize(changed, testSlots())
	require.NoError(t, err)
	assert.Equal(t, 2, o.Stats.Composites)
}

func TestOptimizeRecompositesMissingOutputs(t *testing.T) {
	store := newMemStore()
	o := newTestOptimizer(store)

	_, err := o.Optimize(twoMaterialData(), testSlots())
	require.NoError(t, err)

	store.missing = true
	_, err = o.Optimize(twoMaterialData(), testSlots())
	require.NoError(t, err)
	assert.Equal(t, 2, o.Stats.Composites)
	assert.Equal(t, 0, o.Stats.Skipped)
}

func TestOptimizeHashesTextureBytes(t *testing.T) {
	tex := memTextures{"leaf.png": solid(8, 8, color.NRGBA{255, 0, 0, 255})}
	o := newTestOptimizer(newMemStore())
	o.Textures = tex

	withTexture := func() *mesh.Data {
		d := twoMaterialData()
		d.Materials[1].Textures[material.SlotDiffuse] = "leaf.png"
		return d
	}

	_, err := o.Optimize(withTexture(), testSlots())
	require.NoError(t, err)
	_, err = o.Optimize(withTexture(), testSlots())
	require.NoError(t, err)
	assert.Equal(t, 1, o.Stats.Composites)

	tex["leaf.png"] = solid(8, 8, color.NRGBA{254, 0, 0, 255})
	_, err = o.Optimize(withTexture(), testSlots())
	require.NoError(t, err)
	assert.Equal(t, 2, o.Stats.Composites)
}

func TestOptimizeErrors(t *testing.T) {
	t.Run("slots unassigned", func(t *testing.T) {
		o := newTestOptimizer(nil)
		_, err := o.Optimize(twoMaterialData(), Slots{Opaque: material.New("opaque")})
		assert.ErrorIs(t, err, ErrSlotsUnassigned)
		assert.Zero(t, o.Stats.Optimizes)
	})

	t.Run("atlas full", func(t *testing.T) {
		o := newTestOptimizer(nil)
		o.Width, o.Height, o.Padding = 8, 8, 16
		_, err := o.Optimize(twoMaterialData(), testSlots())
		assert.ErrorIs(t, err, ErrAtlasFull)
		assert.Nil(t, o.Atlas)
	})

	t.Run("compositor failure", func(t *testing.T) {
		o := newTestOptimizer(nil)
		o.Compositor = &failingCompositor{failOn: ChannelNormal}
		data := twoMaterialData()
		slots := testSlots()

		_, err := o.Optimize(data, slots)
		require.Error(t, err)
		assert.Zero(t, o.Stats.Composites)
		assert.Equal(t, twoMaterialData().Vertices, data.Vertices)
		assert.Empty(t, slots.Opaque.Textures[material.SlotDiffuse])
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMemStore()
		store.fail = true
		o := newTestOptimizer(store)
		_, err := o.Optimize(twoMaterialData(), testSlots())
		assert.ErrorContains(t, err, "disk full")
	})
}
