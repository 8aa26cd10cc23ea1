// Package tree holds the parametric tree model: an arena of typed groups and
// the nodes they grow.
package tree

import (
	"github.com/Faultbox/arbor/internal/material"
	"github.com/Faultbox/arbor/pkg/math"
	"github.com/Faultbox/arbor/pkg/spline"
)

// None marks an absent index link.
const None = -1

// GroupKind selects the payload a Group carries.
type GroupKind int

const (
	KindRoot GroupKind = iota
	KindBranch
	KindLeaf
)

var kindNames = map[GroupKind]string{
	KindRoot:   "root",
	KindBranch: "branch",
	KindLeaf:   "leaf",
}

func (k GroupKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind parses a kind name.
func ParseKind(s string) (GroupKind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// GeometryMode selects the builder path for a group.
type GeometryMode int

const (
	BranchOnly GeometryMode = iota
	BranchFrond
	FrondOnly
	LeafPlane
	LeafCross
	LeafTriCross
	LeafBillboard
	LeafMesh
)

var modeNames = map[GeometryMode]string{
	BranchOnly:    "branch",
	BranchFrond:   "branch_frond",
	FrondOnly:     "frond",
	LeafPlane:     "plane",
	LeafCross:     "cross",
	LeafTriCross:  "tricross",
	LeafBillboard: "billboard",
	LeafMesh:      "mesh",
}

func (m GeometryMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseMode parses a geometry mode name.
func ParseMode(s string) (GeometryMode, bool) {
	for m, name := range modeNames {
		if name == s {
			return m, true
		}
	}
	return 0, false
}

// HasBranch reports whether the mode emits tube geometry.
func (m GeometryMode) HasBranch() bool { return m == BranchOnly || m == BranchFrond }

// HasFrond reports whether the mode emits frond strips.
func (m GeometryMode) HasFrond() bool { return m == BranchFrond || m == FrondOnly }

// DistributionMode controls how children are spread along a parent.
type DistributionMode int

const (
	DistRandom DistributionMode = iota
	DistAlternate
	DistOpposite
	DistWhorled
)

var distNames = map[DistributionMode]string{
	DistRandom:    "random",
	DistAlternate: "alternate",
	DistOpposite:  "opposite",
	DistWhorled:   "whorled",
}

func (d DistributionMode) String() string {
	if s, ok := distNames[d]; ok {
		return s
	}
	return "unknown"
}

// ParseDistribution parses a distribution mode name.
func ParseDistribution(s string) (DistributionMode, bool) {
	for d, name := range distNames {
		if name == s {
			return d, true
		}
	}
	return 0, false
}

// Distribution places a group's nodes on each parent node.
type Distribution struct {
	Mode      DistributionMode
	Frequency int
	// Start and End bound the parent offset range.
	Start, End float32
	// Twirl rotates successive children around the parent axis, in degrees.
	Twirl float32
	// Whorl is the number of children per whorl step.
	Whorl int
	// GrowAngle tilts children away from the parent axis, in degrees.
	GrowAngle float32
	// Scale is the random scale range of each node.
	Scale [2]float32
}

// RootParams is the payload of the root group.
type RootParams struct {
	Seed         int64
	Spread       float32
	GroundOffset float32
	AODensity    float32
	AOStrength   float32
}

// BranchParams is the payload of branch groups.
type BranchParams struct {
	Mode   GeometryMode
	Length [2]float32
	Radius float32
	Taper  Curve1D
	// Flare widens the base over FlareHeight of the length.
	Flare       float32
	FlareHeight float32
	Crinkle     float32
	// SeekBlend bends branches up (positive) or down (negative).
	SeekBlend     float32
	CapSmoothing  float32
	BreakChance   float32
	BreakLocation [2]float32
	WeldLength    float32
	WeldSpread    float32
	Material      string
	BreakMaterial string
	FrondMaterial string
	FrondCount    int
	FrondWidth    float32
	FrondRange    [2]float32
	FrondShape    Curve1D
	Color         [4]float32
}

// LeafParams is the payload of leaf groups.
type LeafParams struct {
	Mode     GeometryMode
	Size     [2]float32
	Material string
	// PerpendicularAlign turns leaves to face away from the branch axis.
	PerpendicularAlign float32
	// HorizontalAlign levels leaves towards the ground plane.
	HorizontalAlign float32
	Mesh            *InstanceMesh
	Color           [4]float32
}

// InstanceMesh is user geometry placed at each leaf node.
type InstanceMesh struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	UVs       []math.Vec2
	Indices   []uint32
}

// Group is a typed container. Exactly one of Root, Branch or Leaf is set,
// matching Kind.
type Group struct {
	ID           int
	Kind         GroupKind
	Name         string
	Parent       int
	Children     []int
	Seed         int64
	Visible      bool
	Distribution Distribution

	Root   *RootParams
	Branch *BranchParams
	Leaf   *LeafParams
}

// Node is one grown instance of a group.
type Node struct {
	Group  int
	Parent int
	// Curve is nil for leaves.
	Curve    *spline.Curve
	Position math.Vec3
	Rotation math.Quat
	Offset   float32
	Angle    float32
	Scale    float32
	Length   float32
	Radius   float32
	// CapRange is the fraction of the tail that is smoothly capped.
	CapRange float32
	// BreakOffset truncates the branch; >= 1 means unbroken.
	BreakOffset float32
	Seed        uint64
	Visible     bool
}

// Broken reports whether the node was truncated.
func (n *Node) Broken() bool { return n.BreakOffset < 1 }

// Tree is an arena of groups and nodes addressed by index. Group 0 is the root.
type Tree struct {
	Name      string
	Groups    []Group
	Nodes     []Node
	Materials material.Library
}
