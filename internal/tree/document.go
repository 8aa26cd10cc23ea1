package tree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/arbor/internal/logger"
	"github.com/Faultbox/arbor/internal/material"
	"github.com/Faultbox/arbor/pkg/math"
)

// ErrUnknownFormat is returned for document extensions other than YAML or TOML.
var ErrUnknownFormat = errors.New("tree: unknown document format")

// Document is the on-disk form of a tree.
type Document struct {
	Name      string        `yaml:"name" toml:"name"`
	Root      RootDoc       `yaml:"root" toml:"root"`
	Materials []MaterialDoc `yaml:"materials" toml:"materials"`
	Groups    []GroupDoc    `yaml:"groups" toml:"groups"`
}

// RootDoc holds root group settings.
type RootDoc struct {
	Seed         int64   `yaml:"seed" toml:"seed"`
	Spread       float32 `yaml:"spread" toml:"spread"`
	GroundOffset float32 `yaml:"ground_offset" toml:"ground_offset"`
	AODensity    float32 `yaml:"ao_density" toml:"ao_density"`
	AOStrength   float32 `yaml:"ao_strength" toml:"ao_strength"`
}

// MaterialDoc is a source material entry.
type MaterialDoc struct {
	Name      string            `yaml:"name" toml:"name"`
	Shader    string            `yaml:"shader" toml:"shader"`
	Color     []float32         `yaml:"color,omitempty" toml:"color,omitempty"`
	Shininess float32           `yaml:"shininess" toml:"shininess"`
	Tiling    bool              `yaml:"tiling" toml:"tiling"`
	Cutout    bool              `yaml:"cutout" toml:"cutout"`
	UVTiling  []float32         `yaml:"uv_tiling,omitempty" toml:"uv_tiling,omitempty"`
	Textures  map[string]string `yaml:"textures,omitempty" toml:"textures,omitempty"`
}

// GroupDoc is a branch or leaf group entry. Parent refers to another group's
// id; 0 is the root.
type GroupDoc struct {
	ID     int    `yaml:"id" toml:"id"`
	Kind   string `yaml:"kind" toml:"kind"`
	Name   string `yaml:"name,omitempty" toml:"name,omitempty"`
	Parent int    `yaml:"parent" toml:"parent"`
	Seed   int64  `yaml:"seed" toml:"seed"`
	Hidden bool   `yaml:"hidden,omitempty" toml:"hidden,omitempty"`
	Mode   string `yaml:"mode" toml:"mode"`

	Distribution DistributionDoc `yaml:"distribution" toml:"distribution"`

	Length        []float32    `yaml:"length,omitempty" toml:"length,omitempty"`
	Radius        float32      `yaml:"radius,omitempty" toml:"radius,omitempty"`
	Taper         [][2]float32 `yaml:"taper,omitempty" toml:"taper,omitempty"`
	Flare         float32      `yaml:"flare,omitempty" toml:"flare,omitempty"`
	FlareHeight   float32      `yaml:"flare_height,omitempty" toml:"flare_height,omitempty"`
	Crinkle       float32      `yaml:"crinkle,omitempty" toml:"crinkle,omitempty"`
	SeekBlend     float32      `yaml:"seek_blend,omitempty" toml:"seek_blend,omitempty"`
	CapSmoothing  float32      `yaml:"cap_smoothing,omitempty" toml:"cap_smoothing,omitempty"`
	BreakChance   float32      `yaml:"break_chance,omitempty" toml:"break_chance,omitempty"`
	BreakLocation []float32    `yaml:"break_location,omitempty" toml:"break_location,omitempty"`
	WeldLength    float32      `yaml:"weld_length,omitempty" toml:"weld_length,omitempty"`
	WeldSpread    float32      `yaml:"weld_spread,omitempty" toml:"weld_spread,omitempty"`
	Material      string       `yaml:"material,omitempty" toml:"material,omitempty"`
	BreakMaterial string       `yaml:"break_material,omitempty" toml:"break_material,omitempty"`
	FrondMaterial string       `yaml:"frond_material,omitempty" toml:"frond_material,omitempty"`
	FrondCount    int          `yaml:"frond_count,omitempty" toml:"frond_count,omitempty"`
	FrondWidth    float32      `yaml:"frond_width,omitempty" toml:"frond_width,omitempty"`
	FrondRange    []float32    `yaml:"frond_range,omitempty" toml:"frond_range,omitempty"`
	FrondShape    [][2]float32 `yaml:"frond_shape,omitempty" toml:"frond_shape,omitempty"`

	Size               []float32 `yaml:"size,omitempty" toml:"size,omitempty"`
	PerpendicularAlign float32   `yaml:"perpendicular_align,omitempty" toml:"perpendicular_align,omitempty"`
	HorizontalAlign    float32   `yaml:"horizontal_align,omitempty" toml:"horizontal_align,omitempty"`
	Mesh               *MeshDoc  `yaml:"mesh,omitempty" toml:"mesh,omitempty"`

	Color []float32 `yaml:"color,omitempty" toml:"color,omitempty"`
}

// DistributionDoc is the distribution block of a group. Frequency and
// GrowAngle keep their defaults unless present; zero is a valid setting
// for both.
type DistributionDoc struct {
	Mode      string    `yaml:"mode" toml:"mode"`
	Frequency *int      `yaml:"frequency,omitempty" toml:"frequency,omitempty"`
	Range     []float32 `yaml:"range,omitempty" toml:"range,omitempty"`
	Twirl     float32   `yaml:"twirl,omitempty" toml:"twirl,omitempty"`
	Whorl     int       `yaml:"whorl,omitempty" toml:"whorl,omitempty"`
	GrowAngle *float32  `yaml:"grow_angle,omitempty" toml:"grow_angle,omitempty"`
	Scale     []float32 `yaml:"scale,omitempty" toml:"scale,omitempty"`
}

// MeshDoc is inline leaf geometry.
type MeshDoc struct {
	Positions [][3]float32 `yaml:"positions" toml:"positions"`
	Normals   [][3]float32 `yaml:"normals,omitempty" toml:"normals,omitempty"`
	UVs       [][2]float32 `yaml:"uvs,omitempty" toml:"uvs,omitempty"`
	Indices   []uint32     `yaml:"indices" toml:"indices"`
}

// Load reads a tree document, choosing the decoder by file extension.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%s: %w", ext, ErrUnknownFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc.Tree()
}

// Save writes t to path in the format implied by the extension.
func Save(t *Tree, path string) error {
	doc := FromTree(t)

	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(doc)
	case ".toml":
		data, err = toml.Marshal(doc)
	default:
		return fmt.Errorf("%s: %w", ext, ErrUnknownFormat)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Tree converts the document into an arena. Groups may be listed in any
// order; parents are resolved by id.
func (d *Document) Tree() (*Tree, error) {
	t := New(d.Name, d.Root.Seed)
	r := t.Groups[0].Root
	r.Spread = d.Root.Spread
	r.GroundOffset = d.Root.GroundOffset
	if d.Root.AODensity != 0 {
		r.AODensity = d.Root.AODensity
	}
	if d.Root.AOStrength != 0 {
		r.AOStrength = d.Root.AOStrength
	}

	for _, md := range d.Materials {
		t.Materials.Add(md.material())
	}

	var parsed []Group
	ids := map[int]bool{0: true}
	for _, gd := range d.Groups {
		if gd.ID == 0 {
			return nil, fmt.Errorf("group %q: id 0 is reserved for the root", gd.Name)
		}
		if ids[gd.ID] {
			return nil, fmt.Errorf("group %d: duplicate id", gd.ID)
		}
		g, err := gd.group()
		if err != nil {
			return nil, err
		}
		ids[gd.ID] = true
		parsed = append(parsed, g)
	}

	// A group is kept when its parent chain reaches the root. Groups under
	// an unknown id, or in a loop of their own, are dropped with a warning.
	reachable := map[int]bool{0: true}
	for changed := true; changed; {
		changed = false
		for _, g := range parsed {
			if !reachable[g.ID] && reachable[g.Parent] {
				reachable[g.ID] = true
				changed = true
			}
		}
	}

	index := map[int]int{0: 0}
	for _, g := range parsed {
		if !reachable[g.ID] {
			logger.Warn("skipping group with unknown parent",
				zap.String("tree", d.Name), zap.Int("group", g.ID), zap.Int("parent", g.Parent))
			continue
		}
		index[g.ID] = len(t.Groups)
		t.Groups = append(t.Groups, g)
	}
	for i := 1; i < len(t.Groups); i++ {
		g := &t.Groups[i]
		g.Parent = index[g.Parent]
		t.Groups[g.Parent].Children = append(t.Groups[g.Parent].Children, i)
	}

	if err := t.Validate(); err != nil {
		if Fatal(err) {
			return nil, err
		}
		logger.Warn("tree has dangling references", zap.String("tree", d.Name), zap.Error(err))
	}
	return t, nil
}

func (md MaterialDoc) material() *material.Material {
	m := material.New(md.Name)
	m.Shader = md.Shader
	if len(md.Color) == 4 {
		copy(m.Color[:], md.Color)
	}
	if md.Shininess != 0 {
		m.Shininess = md.Shininess
	}
	m.Tiling = md.Tiling
	m.Cutout = md.Cutout
	if len(md.UVTiling) == 2 {
		m.UVTiling = math.Vec2{X: md.UVTiling[0], Y: md.UVTiling[1]}
	}
	for slot, name := range material.SlotNames {
		m.Textures[slot] = md.Textures[name]
	}
	return m
}

func (gd GroupDoc) group() (Group, error) {
	kind, ok := ParseKind(gd.Kind)
	if !ok || kind == KindRoot {
		return Group{}, fmt.Errorf("group %d: invalid kind %q", gd.ID, gd.Kind)
	}

	g := Group{
		ID:           gd.ID,
		Kind:         kind,
		Name:         gd.Name,
		Parent:       gd.Parent,
		Seed:         gd.Seed,
		Visible:      !gd.Hidden,
		Distribution: DefaultDistribution(),
	}
	dd := gd.Distribution
	if dd.Mode != "" {
		mode, ok := ParseDistribution(dd.Mode)
		if !ok {
			return Group{}, fmt.Errorf("group %d: invalid distribution %q", gd.ID, dd.Mode)
		}
		g.Distribution.Mode = mode
	}
	if dd.Frequency != nil {
		g.Distribution.Frequency = *dd.Frequency
	}
	setRange(&g.Distribution.Start, &g.Distribution.End, dd.Range)
	g.Distribution.Twirl = dd.Twirl
	if dd.Whorl > 0 {
		g.Distribution.Whorl = dd.Whorl
	}
	if dd.GrowAngle != nil {
		g.Distribution.GrowAngle = *dd.GrowAngle
	}
	setRange(&g.Distribution.Scale[0], &g.Distribution.Scale[1], dd.Scale)

	var mode GeometryMode
	if gd.Mode != "" {
		if mode, ok = ParseMode(gd.Mode); !ok {
			return Group{}, fmt.Errorf("group %d: invalid mode %q", gd.ID, gd.Mode)
		}
	}

	switch kind {
	case KindBranch:
		b := DefaultBranch()
		if gd.Mode != "" {
			if mode > FrondOnly {
				return Group{}, fmt.Errorf("group %d: mode %s is not a branch mode", gd.ID, mode)
			}
			b.Mode = mode
		}
		setRange(&b.Length[0], &b.Length[1], gd.Length)
		setNonZero(&b.Radius, gd.Radius)
		if len(gd.Taper) > 0 {
			b.Taper = curveFromKeys(gd.Taper)
		}
		b.FrondShape = curveFromKeys(gd.FrondShape)
		b.Flare = gd.Flare
		setNonZero(&b.FlareHeight, gd.FlareHeight)
		b.Crinkle = gd.Crinkle
		b.SeekBlend = gd.SeekBlend
		b.CapSmoothing = gd.CapSmoothing
		b.BreakChance = gd.BreakChance
		setRange(&b.BreakLocation[0], &b.BreakLocation[1], gd.BreakLocation)
		setNonZero(&b.WeldLength, gd.WeldLength)
		setNonZero(&b.WeldSpread, gd.WeldSpread)
		b.Material = gd.Material
		b.BreakMaterial = gd.BreakMaterial
		b.FrondMaterial = gd.FrondMaterial
		if gd.FrondCount > 0 {
			b.FrondCount = gd.FrondCount
		}
		setNonZero(&b.FrondWidth, gd.FrondWidth)
		setRange(&b.FrondRange[0], &b.FrondRange[1], gd.FrondRange)
		if len(gd.Color) == 4 {
			copy(b.Color[:], gd.Color)
		}
		g.Branch = b
	case KindLeaf:
		l := DefaultLeaf()
		if gd.Mode != "" {
			if mode < LeafPlane {
				return Group{}, fmt.Errorf("group %d: mode %s is not a leaf mode", gd.ID, mode)
			}
			l.Mode = mode
		}
		setRange(&l.Size[0], &l.Size[1], gd.Size)
		l.Material = gd.Material
		l.PerpendicularAlign = gd.PerpendicularAlign
		l.HorizontalAlign = gd.HorizontalAlign
		if gd.Mesh != nil {
			l.Mesh = gd.Mesh.mesh()
		}
		if len(gd.Color) == 4 {
			copy(l.Color[:], gd.Color)
		}
		g.Leaf = l
	}
	return g, nil
}

func (md *MeshDoc) mesh() *InstanceMesh {
	m := &InstanceMesh{Indices: append([]uint32(nil), md.Indices...)}
	for _, p := range md.Positions {
		m.Positions = append(m.Positions, math.V3(p))
	}
	for _, n := range md.Normals {
		m.Normals = append(m.Normals, math.V3(n))
	}
	for _, uv := range md.UVs {
		m.UVs = append(m.UVs, math.Vec2{X: uv[0], Y: uv[1]})
	}
	return m
}

func curveFromKeys(keys [][2]float32) Curve1D {
	var c Curve1D
	for _, k := range keys {
		c.Keys = append(c.Keys, Key{T: k[0], V: k[1]})
	}
	return c
}

func keysFromCurve(c Curve1D) [][2]float32 {
	var keys [][2]float32
	for _, k := range c.Keys {
		keys = append(keys, [2]float32{k.T, k.V})
	}
	return keys
}

func setRange(lo, hi *float32, v []float32) {
	switch len(v) {
	case 1:
		*lo, *hi = v[0], v[0]
	case 2:
		*lo, *hi = v[0], v[1]
	}
}

func setNonZero(dst *float32, v float32) {
	if v != 0 {
		*dst = v
	}
}

// FromTree converts an arena back to its document form.
func FromTree(t *Tree) *Document {
	d := &Document{Name: t.Name}
	if r := t.Root(); r != nil {
		d.Root = RootDoc{
			Seed:         r.Seed,
			Spread:       r.Spread,
			GroundOffset: r.GroundOffset,
			AODensity:    r.AODensity,
			AOStrength:   r.AOStrength,
		}
	}

	for _, name := range t.Materials.Names() {
		m := t.Materials[name]
		md := MaterialDoc{
			Name:      m.Name,
			Shader:    m.Shader,
			Color:     m.Color[:],
			Shininess: m.Shininess,
			Tiling:    m.Tiling,
			Cutout:    m.Cutout,
			UVTiling:  []float32{m.UVTiling.X, m.UVTiling.Y},
			Textures:  map[string]string{},
		}
		for slot, tex := range m.Textures {
			if tex != "" {
				md.Textures[material.SlotNames[slot]] = tex
			}
		}
		d.Materials = append(d.Materials, md)
	}

	for i := 1; i < len(t.Groups); i++ {
		g := &t.Groups[i]
		parentID := 0
		if p := t.Group(g.Parent); p != nil {
			parentID = p.ID
		}
		gd := GroupDoc{
			ID:     g.ID,
			Kind:   g.Kind.String(),
			Name:   g.Name,
			Parent: parentID,
			Seed:   g.Seed,
			Hidden: !g.Visible,
			Distribution: DistributionDoc{
				Mode:      g.Distribution.Mode.String(),
				Frequency: ptr(g.Distribution.Frequency),
				Range:     []float32{g.Distribution.Start, g.Distribution.End},
				Twirl:     g.Distribution.Twirl,
				Whorl:     g.Distribution.Whorl,
				GrowAngle: ptr(g.Distribution.GrowAngle),
				Scale:     g.Distribution.Scale[:],
			},
		}
		switch {
		case g.Branch != nil:
			b := g.Branch
			gd.Mode = b.Mode.String()
			gd.Length = b.Length[:]
			gd.Radius = b.Radius
			gd.Taper = keysFromCurve(b.Taper)
			gd.FrondShape = keysFromCurve(b.FrondShape)
			gd.Flare, gd.FlareHeight = b.Flare, b.FlareHeight
			gd.Crinkle, gd.SeekBlend = b.Crinkle, b.SeekBlend
			gd.CapSmoothing = b.CapSmoothing
			gd.BreakChance, gd.BreakLocation = b.BreakChance, b.BreakLocation[:]
			gd.WeldLength, gd.WeldSpread = b.WeldLength, b.WeldSpread
			gd.Material, gd.BreakMaterial, gd.FrondMaterial = b.Material, b.BreakMaterial, b.FrondMaterial
			gd.FrondCount, gd.FrondWidth, gd.FrondRange = b.FrondCount, b.FrondWidth, b.FrondRange[:]
			gd.Color = b.Color[:]
		case g.Leaf != nil:
			l := g.Leaf
			gd.Mode = l.Mode.String()
			gd.Size = l.Size[:]
			gd.Material = l.Material
			gd.PerpendicularAlign, gd.HorizontalAlign = l.PerpendicularAlign, l.HorizontalAlign
			gd.Color = l.Color[:]
			if l.Mesh != nil {
				md := &MeshDoc{Indices: l.Mesh.Indices}
				for _, p := range l.Mesh.Positions {
					md.Positions = append(md.Positions, p.Array())
				}
				for _, n := range l.Mesh.Normals {
					md.Normals = append(md.Normals, n.Array())
				}
				for _, uv := range l.Mesh.UVs {
					md.UVs = append(md.UVs, uv.Array())
				}
				gd.Mesh = md
			}
		}
		d.Groups = append(d.Groups, gd)
	}
	return d
}

func ptr[T any](v T) *T {
	return &v
}
