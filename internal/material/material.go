// Package material describes the source materials referenced by tree groups.
package material

import (
	"slices"

	"github.com/Faultbox/arbor/pkg/math"
)

// Texture slots a source material may provide.
const (
	SlotDiffuse = iota
	SlotNormal
	SlotGloss
	SlotTranslucency
	SlotShadowOffset
	SlotCount
)

// SlotNames are the document keys for each texture slot.
var SlotNames = [SlotCount]string{"diffuse", "normal", "gloss", "translucency", "shadow_offset"}

// Material is a source material. Texture paths are relative to the tree
// document; empty paths fall back to channel defaults when combined.
type Material struct {
	Name      string
	Shader    string
	Color     [4]float32
	Shininess float32
	// Tiling materials repeat along V (bark); they pack as full-height columns.
	Tiling bool
	// Cutout materials are alpha tested (leaves, fronds).
	Cutout   bool
	UVTiling math.Vec2
	Textures [SlotCount]string
}

// New returns a material with white colour and unit tiling.
func New(name string) *Material {
	return &Material{
		Name:      name,
		Color:     [4]float32{1, 1, 1, 1},
		Shininess: 0.1,
		UVTiling:  math.Vec2{X: 1, Y: 1},
	}
}

// Clone returns a copy of m.
func (m *Material) Clone() *Material {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// Library maps material names to materials.
type Library map[string]*Material

// Get returns the named material or nil. Unknown names are tolerated so a
// dangling reference just drops the geometry that uses it.
func (l Library) Get(name string) *Material {
	if l == nil || name == "" {
		return nil
	}
	return l[name]
}

// Add registers m under its name.
func (l Library) Add(m *Material) {
	l[m.Name] = m
}

// Names returns the material names in sorted order.
func (l Library) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
