// Package atlas packs the textures of many source materials into shared
// atlases so a tree renders with one opaque and one cutout material.
package atlas

import (
	"errors"
	"image"

	"github.com/Faultbox/arbor/internal/material"
	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/pkg/math"
)

const (
	DefaultSize    = 1024
	DefaultPadding = 32

	MinShininess = 0.03
	MaxShininess = 1

	// referenceSize is the texture size that maps to unit scale.
	referenceSize = 512
)

var (
	ErrAtlasFull       = errors.New("atlas: entries do not fit")
	ErrSlotsUnassigned = errors.New("atlas: optimized material slots not assigned")
)

// UVRect is a rectangle in atlas texture space. Y grows upwards from the
// bottom edge of the atlas.
type UVRect struct {
	X, Y, W, H float32
}

// Entry is one packed material.
type Entry struct {
	Name      string
	Textures  [material.SlotCount]string
	Color     [4]float32
	Shininess float32
	// Scale corrects the cell size for texture resolution and UV tiling.
	Scale    math.Vec2
	Tiling   bool
	Weight   float32
	UVTiling math.Vec2
	// Native is the source texture size.
	Native image.Point

	// Rect is the packed cell in pixels, excluding padding.
	Rect   image.Rectangle
	UVRect UVRect
	// VerticalTiling is the number of texture repeats in a tiling column.
	VerticalTiling int
}

// Remap maps a local UV into the entry's atlas rect.
func (e *Entry) Remap(uv math.Vec2) math.Vec2 {
	return math.Vec2{
		X: e.UVRect.X + uv.X*e.UVRect.W,
		Y: e.UVRect.Y + uv.Y*e.UVRect.H,
	}
}

// Bounds returns the cell including its padding. Tiling columns are only
// padded horizontally.
func (e *Entry) Bounds(padding int) image.Rectangle {
	if e.Tiling {
		return image.Rect(e.Rect.Min.X-padding, e.Rect.Min.Y, e.Rect.Max.X+padding, e.Rect.Max.Y)
	}
	return e.Rect.Inset(-padding)
}

// Atlas is a packed layout of entries.
type Atlas struct {
	Width, Height, Padding int
	Entries                []*Entry
	byName                 map[string]*Entry
}

// New returns an empty atlas.
func New(width, height, padding int) *Atlas {
	return &Atlas{
		Width:   width,
		Height:  height,
		Padding: padding,
		byName:  make(map[string]*Entry),
	}
}

// Register adds an entry for m. native is the size of its textures; an
// empty size means the reference size. Registering a name twice returns the
// existing entry.
func (a *Atlas) Register(m *material.Material, native image.Point) *Entry {
	if e, ok := a.byName[m.Name]; ok {
		return e
	}
	if native.X <= 0 || native.Y <= 0 {
		native = image.Pt(referenceSize, referenceSize)
	}
	tiling := m.UVTiling
	if tiling.X <= 0 {
		tiling.X = 1
	}
	if tiling.Y <= 0 {
		tiling.Y = 1
	}

	e := &Entry{
		Name:      m.Name,
		Textures:  m.Textures,
		Color:     m.Color,
		Shininess: math.Clamp32(m.Shininess, MinShininess, MaxShininess),
		Scale: math.Vec2{
			X: float32(native.X) / referenceSize * tiling.X,
			Y: float32(native.Y) / referenceSize * tiling.Y,
		},
		Tiling:   m.Tiling,
		UVTiling: tiling,
		Native:   native,
	}
	a.Entries = append(a.Entries, e)
	a.byName[e.Name] = e
	a.assignWeights()
	return e
}

// Lookup returns the entry registered under name.
func (a *Atlas) Lookup(name string) *Entry {
	return a.byName[name]
}

// assignWeights gives tiling entries unit weight and splits one unit evenly
// among the non-tiling entries.
func (a *Atlas) assignWeights() {
	var nonTiling int
	for _, e := range a.Entries {
		if !e.Tiling {
			nonTiling++
		}
	}
	for _, e := range a.Entries {
		if e.Tiling {
			e.Weight = 1
		} else {
			e.Weight = 1 / float32(nonTiling)
		}
	}
}

// RemapUVs moves UV0 of every vertex referenced by tris into the atlas rect
// of its triangle's material. Each vertex is remapped at most once.
// entryFor returns nil for materials that are not in the atlas.
func RemapUVs(vertices []mesh.Vertex, tris []mesh.Triangle, entryFor func(material int) *Entry) {
	for _, tri := range tris {
		e := entryFor(tri.Material)
		if e == nil {
			continue
		}
		for _, vi := range tri.V {
			if vi < 0 || vi >= len(vertices) {
				continue
			}
			v := &vertices[vi]
			if v.Remapped {
				continue
			}
			v.UV0 = e.Remap(v.UV0)
			v.Remapped = true
		}
	}
}
