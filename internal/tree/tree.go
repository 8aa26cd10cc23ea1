package tree

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"github.com/Faultbox/arbor/internal/material"
)

var (
	ErrCycle       = errors.New("tree: reparent would create a cycle")
	ErrRootMove    = errors.New("tree: root group cannot be moved or deleted")
	ErrLeafParent  = errors.New("tree: leaf groups cannot have children")
	ErrBadIndex    = errors.New("tree: group index out of range")
	ErrKindPayload = errors.New("tree: payload does not match group kind")
	ErrNoRoot      = errors.New("tree: group 0 must be the root")
)

// Fatal reports whether err, as returned by Validate, holds a problem the
// builder cannot work around. Dangling indices are skipped while growing and
// building, so they alone are advisory.
func Fatal(err error) bool {
	return errors.Is(err, ErrNoRoot) ||
		errors.Is(err, ErrKindPayload) ||
		errors.Is(err, ErrCycle) ||
		errors.Is(err, ErrLeafParent)
}

// New returns a tree with a single root group.
func New(name string, seed int64) *Tree {
	return &Tree{
		Name: name,
		Groups: []Group{{
			ID:      0,
			Kind:    KindRoot,
			Name:    "root",
			Parent:  None,
			Visible: true,
			Root:    &RootParams{Seed: seed, AODensity: 1, AOStrength: 0.5},
		}},
		Materials: material.Library{},
	}
}

// Root returns the root group's payload.
func (t *Tree) Root() *RootParams {
	if len(t.Groups) == 0 {
		return nil
	}
	return t.Groups[0].Root
}

// Group returns the group at index i, or nil when out of range.
func (t *Tree) Group(i int) *Group {
	if i < 0 || i >= len(t.Groups) {
		return nil
	}
	return &t.Groups[i]
}

// Node returns the node at index i, or nil when out of range.
func (t *Tree) Node(i int) *Node {
	if i < 0 || i >= len(t.Nodes) {
		return nil
	}
	return &t.Nodes[i]
}

// DefaultBranch returns a branch payload with usable defaults.
func DefaultBranch() *BranchParams {
	return &BranchParams{
		Mode:          BranchOnly,
		Length:        [2]float32{4, 6},
		Radius:        0.3,
		Taper:         Linear(1, 0.1),
		FlareHeight:   0.1,
		Crinkle:       0.1,
		CapSmoothing:  0.1,
		BreakLocation: [2]float32{0.5, 1},
		WeldLength:    0.1,
		WeldSpread:    0.2,
		FrondCount:    1,
		FrondWidth:    1,
		FrondRange:    [2]float32{0.1, 1},
		Color:         [4]float32{1, 1, 1, 1},
	}
}

// DefaultLeaf returns a leaf payload with usable defaults.
func DefaultLeaf() *LeafParams {
	return &LeafParams{
		Mode:  LeafPlane,
		Size:  [2]float32{0.5, 0.5},
		Color: [4]float32{1, 1, 1, 1},
	}
}

// DefaultDistribution returns a distribution with usable defaults.
func DefaultDistribution() Distribution {
	return Distribution{
		Mode:      DistRandom,
		Frequency: 1,
		Start:     0,
		End:       1,
		Whorl:     1,
		GrowAngle: 45,
		Scale:     [2]float32{1, 1},
	}
}

// AddGroup appends a group of the given kind under parent and returns its index.
func (t *Tree) AddGroup(kind GroupKind, parent int) (int, error) {
	p := t.Group(parent)
	if p == nil {
		return None, fmt.Errorf("adding %s group: %w", kind, ErrBadIndex)
	}
	if p.Kind == KindLeaf {
		return None, ErrLeafParent
	}

	g := Group{
		ID:           t.nextID(),
		Kind:         kind,
		Name:         fmt.Sprintf("%s %d", kind, len(t.Groups)),
		Parent:       parent,
		Seed:         int64(len(t.Groups)) * 7919,
		Visible:      true,
		Distribution: DefaultDistribution(),
	}
	switch kind {
	case KindBranch:
		g.Branch = DefaultBranch()
	case KindLeaf:
		g.Leaf = DefaultLeaf()
	default:
		return None, fmt.Errorf("adding %s group: %w", kind, ErrKindPayload)
	}

	idx := len(t.Groups)
	t.Groups = append(t.Groups, g)
	t.Groups[parent].Children = append(t.Groups[parent].Children, idx)
	return idx, nil
}

func (t *Tree) nextID() int {
	id := 0
	for i := range t.Groups {
		id = max(id, t.Groups[i].ID+1)
	}
	return id
}

// IsAncestor reports whether a is b or one of b's ancestors.
func (t *Tree) IsAncestor(a, b int) bool {
	for steps := 0; b != None && steps <= len(t.Groups); steps++ {
		if a == b {
			return true
		}
		g := t.Group(b)
		if g == nil {
			return false
		}
		b = g.Parent
	}
	return false
}

// Reparent moves group g under newParent.
func (t *Tree) Reparent(g, newParent int) error {
	if g == 0 {
		return ErrRootMove
	}
	grp, p := t.Group(g), t.Group(newParent)
	if grp == nil || p == nil {
		return ErrBadIndex
	}
	if p.Kind == KindLeaf {
		return ErrLeafParent
	}
	if t.IsAncestor(g, newParent) {
		return ErrCycle
	}

	if old := t.Group(grp.Parent); old != nil {
		old.Children = slices.DeleteFunc(old.Children, func(c int) bool { return c == g })
	}
	grp.Parent = newParent
	p.Children = append(p.Children, g)
	return nil
}

// DeleteGroup removes g, its descendants and all nodes they own.
func (t *Tree) DeleteGroup(g int) error {
	if g == 0 {
		return ErrRootMove
	}
	if t.Group(g) == nil {
		return ErrBadIndex
	}

	doomed := make(map[int]bool)
	var mark func(int)
	mark = func(i int) {
		if doomed[i] || t.Group(i) == nil {
			return
		}
		doomed[i] = true
		for _, c := range t.Groups[i].Children {
			mark(c)
		}
	}
	mark(g)

	remap := make([]int, len(t.Groups))
	kept := t.Groups[:0]
	for i, grp := range t.Groups {
		if doomed[i] {
			remap[i] = None
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, grp)
	}
	t.Groups = kept
	for i := range t.Groups {
		grp := &t.Groups[i]
		grp.Parent = remapIndex(remap, grp.Parent)
		children := grp.Children[:0]
		for _, c := range grp.Children {
			if r := remapIndex(remap, c); r != None {
				children = append(children, r)
			}
		}
		grp.Children = children
	}

	nodeRemap := make([]int, len(t.Nodes))
	nodes := t.Nodes[:0]
	for i, n := range t.Nodes {
		n.Group = remapIndex(remap, n.Group)
		if n.Group == None {
			nodeRemap[i] = None
			continue
		}
		nodeRemap[i] = len(nodes)
		nodes = append(nodes, n)
	}
	t.Nodes = nodes
	for i := range t.Nodes {
		t.Nodes[i].Parent = remapIndex(nodeRemap, t.Nodes[i].Parent)
	}
	return nil
}

func remapIndex(remap []int, i int) int {
	if i < 0 || i >= len(remap) {
		return None
	}
	return remap[i]
}

// Clone returns a deep copy of the group. Child links are not copied.
func (g *Group) Clone() Group {
	c := *g
	c.Children = nil
	c.Root, c.Branch, c.Leaf = nil, nil, nil

	switch g.Kind {
	case KindRoot:
		if g.Root != nil {
			r := *g.Root
			c.Root = &r
		}
	case KindBranch:
		if g.Branch != nil {
			b := *g.Branch
			b.Taper = g.Branch.Taper.Clone()
			b.FrondShape = g.Branch.FrondShape.Clone()
			c.Branch = &b
		}
	case KindLeaf:
		if g.Leaf != nil {
			l := *g.Leaf
			l.Mesh = g.Leaf.Mesh.Clone()
			c.Leaf = &l
		}
	}
	return c
}

// Clone returns a deep copy of the instance mesh.
func (m *InstanceMesh) Clone() *InstanceMesh {
	if m == nil {
		return nil
	}
	return &InstanceMesh{
		Positions: slices.Clone(m.Positions),
		Normals:   slices.Clone(m.Normals),
		UVs:       slices.Clone(m.UVs),
		Indices:   slices.Clone(m.Indices),
	}
}

// CloneGroup copies g and its subtree under the same parent and returns
// the index of the copy.
func (t *Tree) CloneGroup(g int) (int, error) {
	if g == 0 {
		return None, ErrRootMove
	}
	src := t.Group(g)
	if src == nil {
		return None, ErrBadIndex
	}
	return t.copySubtree(g, src.Parent), nil
}

func (t *Tree) copySubtree(g, parent int) int {
	c := t.Groups[g].Clone()
	c.ID = t.nextID()
	c.Parent = parent
	c.Seed += int64(len(t.Groups)) * 31
	idx := len(t.Groups)
	t.Groups = append(t.Groups, c)
	t.Groups[parent].Children = append(t.Groups[parent].Children, idx)

	for _, child := range slices.Clone(t.Groups[g].Children) {
		t.copySubtree(child, idx)
	}
	return idx
}

// Validate checks the arena for dangling links, cycles and payloads that do
// not match their kind. It reports every problem found and never mutates t.
// Use Fatal to tell problems that block a build from advisory ones.
func (t *Tree) Validate() error {
	if len(t.Groups) == 0 {
		return ErrNoRoot
	}

	var errs error
	if t.Groups[0].Kind != KindRoot || t.Groups[0].Root == nil {
		errs = multierr.Append(errs, fmt.Errorf("group 0: %w", ErrNoRoot))
	}
	for i := range t.Groups {
		g := &t.Groups[i]
		if i > 0 && t.Group(g.Parent) == nil {
			errs = multierr.Append(errs, fmt.Errorf("group %d: parent %d: %w", i, g.Parent, ErrBadIndex))
		}
		if i > 0 && g.Kind == KindRoot {
			errs = multierr.Append(errs, fmt.Errorf("group %d: second root", i))
		}
		if !payloadMatches(g) {
			errs = multierr.Append(errs, fmt.Errorf("group %d (%s): %w", i, g.Kind, ErrKindPayload))
		}
		if g.Kind == KindLeaf && len(g.Children) > 0 {
			errs = multierr.Append(errs, fmt.Errorf("group %d: %w", i, ErrLeafParent))
		}
		for _, c := range g.Children {
			child := t.Group(c)
			if child == nil {
				errs = multierr.Append(errs, fmt.Errorf("group %d: child %d: %w", i, c, ErrBadIndex))
				continue
			}
			if child.Parent != i {
				errs = multierr.Append(errs, fmt.Errorf("group %d: child %d has parent %d", i, c, child.Parent))
			}
		}
		if i > 0 && t.IsAncestor(i, g.Parent) {
			errs = multierr.Append(errs, fmt.Errorf("group %d: %w", i, ErrCycle))
		}
	}
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if t.Group(n.Group) == nil {
			errs = multierr.Append(errs, fmt.Errorf("node %d: group %d: %w", i, n.Group, ErrBadIndex))
		}
		if n.Parent != None && t.Node(n.Parent) == nil {
			errs = multierr.Append(errs, fmt.Errorf("node %d: parent node %d: %w", i, n.Parent, ErrBadIndex))
		}
	}
	return errs
}

func payloadMatches(g *Group) bool {
	switch g.Kind {
	case KindRoot:
		return g.Root != nil && g.Branch == nil && g.Leaf == nil
	case KindBranch:
		return g.Branch != nil && g.Root == nil && g.Leaf == nil
	case KindLeaf:
		return g.Leaf != nil && g.Root == nil && g.Branch == nil
	}
	return false
}

// RadiusAt returns the branch radius of node n at curve time t. Nodes of
// non-branch groups report zero.
func (t *Tree) RadiusAt(n *Node, at float32) float32 {
	g := t.Group(n.Group)
	if g == nil || g.Branch == nil {
		return 0
	}
	b := g.Branch
	r := n.Radius * b.Taper.Eval(at, 1)
	if b.Flare > 0 && b.FlareHeight > 0 && at < b.FlareHeight {
		f := 1 - at/b.FlareHeight
		r *= 1 + b.Flare*f*f
	}
	return max(r, 0)
}

// RadiusScale is the reference radius used by the sampler thresholds:
// the group radius for branches, 1 otherwise.
func (t *Tree) RadiusScale(n *Node) float32 {
	g := t.Group(n.Group)
	if g == nil || g.Branch == nil {
		return 1
	}
	return g.Branch.Radius
}
