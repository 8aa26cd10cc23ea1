package atlas

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/Faultbox/arbor/internal/logger"
	"github.com/Faultbox/arbor/internal/material"
	"github.com/Faultbox/arbor/internal/mesh"
)

// Slots are the two optimized materials the caller renders with.
type Slots struct {
	Opaque *material.Material
	Cutout *material.Material
}

// Store persists combined textures.
type Store interface {
	Has(ch Channel) bool
	Save(ch Channel, img image.Image) error
	Path(ch Channel) string
}

// ShaderResolver maps a source shader to its optimized counterpart.
type ShaderResolver interface {
	Resolve(source string, cutout bool) string
}

// Stats counts optimizer work.
type Stats struct {
	Optimizes  int
	Composites int
	Skipped    int
}

// Optimizer packs a build's materials into two and keeps the combined
// textures of the previous run, compositing again only when the content
// hash changes.
type Optimizer struct {
	Width, Height, Padding int

	Compositor Compositor
	Textures   Textures
	Store      Store
	Shaders    ShaderResolver

	Stats Stats
	// Atlas is the layout of the last successful run.
	Atlas *Atlas

	hash    []byte
	outputs [ChannelCount]*image.NRGBA
}

// NewOptimizer returns an optimizer with the default atlas size.
func NewOptimizer(c Compositor, tex Textures) *Optimizer {
	return &Optimizer{
		Width:      DefaultSize,
		Height:     DefaultSize,
		Padding:    DefaultPadding,
		Compositor: c,
		Textures:   tex,
	}
}

// Outputs returns the combined textures of the last composite.
func (o *Optimizer) Outputs() [ChannelCount]*image.NRGBA {
	return o.outputs
}

// Optimize returns a copy of data whose UVs point into the atlas and whose
// triangles use slot 0 (opaque) or slot 1 (cutout). data is never modified;
// on error the caller keeps using it with its original materials.
func (o *Optimizer) Optimize(data *mesh.Data, slots Slots) (*mesh.Data, error) {
	if slots.Opaque == nil || slots.Cutout == nil {
		return nil, ErrSlotsUnassigned
	}
	if o.Compositor == nil {
		return nil, fmt.Errorf("atlas: no compositor")
	}
	o.Stats.Optimizes++

	a := New(o.Width, o.Height, o.Padding)
	entries := make([]*Entry, len(data.Materials))
	for i, m := range data.Materials {
		if m == nil {
			continue
		}
		entries[i] = a.Register(m, o.nativeSize(m))
	}
	if err := a.Pack(); err != nil {
		return nil, err
	}

	out := data.Clone()
	RemapUVs(out.Vertices, out.Triangles, func(mat int) *Entry {
		if mat < 0 || mat >= len(entries) {
			return nil
		}
		return entries[mat]
	})

	hash := o.contentHash(data.Materials)
	if hash != nil && bytes.Equal(hash, o.hash) && o.present() {
		o.Stats.Skipped++
		logger.Debug("atlas unchanged, skipping composite")
	} else {
		outputs, err := Combine(o.Compositor, a, o.Textures)
		if err != nil {
			return nil, err
		}
		o.Stats.Composites++
		if err := o.save(outputs); err != nil {
			return nil, err
		}
		o.outputs = outputs
		o.hash = hash
	}
	o.Atlas = a

	o.assignSlots(data.Materials, slots)
	for i := range out.Triangles {
		if out.Triangles[i].Cutout {
			out.Triangles[i].Material = 1
		} else {
			out.Triangles[i].Material = 0
		}
	}
	out.Materials = []*material.Material{slots.Opaque, slots.Cutout}
	return out, nil
}

func (o *Optimizer) nativeSize(m *material.Material) image.Point {
	path := m.Textures[material.SlotDiffuse]
	if path == "" || o.Textures == nil {
		return image.Point{}
	}
	img, err := o.Textures.Load(path)
	if err != nil {
		return image.Point{}
	}
	return img.Bounds().Size()
}

func (o *Optimizer) present() bool {
	for ch := Channel(0); ch < ChannelCount; ch++ {
		if o.outputs[ch] == nil {
			return false
		}
		if o.Store != nil && !o.Store.Has(ch) {
			return false
		}
	}
	return true
}

func (o *Optimizer) save(outputs [ChannelCount]*image.NRGBA) error {
	if o.Store == nil {
		return nil
	}
	for ch, img := range outputs {
		if err := o.Store.Save(Channel(ch), img); err != nil {
			return fmt.Errorf("saving %s atlas: %w", Channel(ch), err)
		}
	}
	return nil
}

// assignSlots points the slot materials at the combined textures and
// resolves their shaders from the first source material of each kind.
func (o *Optimizer) assignSlots(sources []*material.Material, slots Slots) {
	var opaqueShader, cutoutShader string
	for _, m := range sources {
		if m == nil {
			continue
		}
		if m.Cutout && cutoutShader == "" {
			cutoutShader = m.Shader
		}
		if !m.Cutout && opaqueShader == "" {
			opaqueShader = m.Shader
		}
	}

	for _, s := range []struct {
		m      *material.Material
		shader string
		cutout bool
	}{
		{slots.Opaque, opaqueShader, false},
		{slots.Cutout, cutoutShader, true},
	} {
		s.m.Cutout = s.cutout
		s.m.Tiling = false
		if o.Shaders != nil {
			s.m.Shader = o.Shaders.Resolve(s.shader, s.cutout)
		}
		if o.Store != nil {
			s.m.Textures[material.SlotDiffuse] = o.Store.Path(ChannelDiffuse)
			s.m.Textures[material.SlotNormal] = o.Store.Path(ChannelNormal)
			s.m.Textures[material.SlotTranslucency] = o.Store.Path(ChannelTranslucency)
			s.m.Textures[material.SlotGloss] = o.Store.Path(ChannelTranslucency)
			s.m.Textures[material.SlotShadowOffset] = o.Store.Path(ChannelShadow)
		}
	}
}

// contentHash digests everything the combined textures depend on: the atlas
// parameters, each material's fields and the bytes of its textures.
func (o *Optimizer) contentHash(materials []*material.Material) []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil
	}

	writeInt := func(v int) { _ = binary.Write(h, binary.LittleEndian, int64(v)) }
	writeFloat := func(f float32) { _ = binary.Write(h, binary.LittleEndian, math.Float32bits(f)) }
	writeString := func(s string) {
		writeInt(len(s))
		h.Write([]byte(s))
	}

	writeInt(o.Width)
	writeInt(o.Height)
	writeInt(o.Padding)
	for _, m := range materials {
		if m == nil {
			writeString("")
			continue
		}
		writeString(m.Name)
		writeString(m.Shader)
		for _, c := range m.Color {
			writeFloat(c)
		}
		writeFloat(m.Shininess)
		writeFloat(m.UVTiling.X)
		writeFloat(m.UVTiling.Y)
		var flags int
		if m.Tiling {
			flags |= 1
		}
		if m.Cutout {
			flags |= 2
		}
		writeInt(flags)
		for _, path := range m.Textures {
			writeString(path)
			if path == "" || o.Textures == nil {
				continue
			}
			data, err := o.Textures.Read(path)
			if err != nil {
				logger.Debug("texture not hashed", zap.String("path", path), zap.Error(err))
				writeInt(-1)
				continue
			}
			writeInt(len(data))
			h.Write(data)
		}
	}
	return h.Sum(nil)
}
