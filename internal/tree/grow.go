package tree

import (
	"math/rand/v2"

	"github.com/chewxy/math32"

	"github.com/Faultbox/arbor/pkg/math"
	"github.com/Faultbox/arbor/pkg/spline"
)

const maxCurveSegments = 24

// Grow regenerates every node from the group parameters. All randomness is
// drawn from rng, so the same tree and the same rng state always grow the
// same nodes.
func (t *Tree) Grow(rng *rand.Rand) {
	t.Nodes = t.Nodes[:0]
	if len(t.Groups) == 0 {
		return
	}

	root := &t.Groups[0]
	var ground float32
	if root.Root != nil {
		ground = root.Root.GroundOffset
	}
	t.Nodes = append(t.Nodes, Node{
		Group:       0,
		Parent:      None,
		Position:    math.Vec3{Y: ground},
		Rotation:    math.QuatIdentity(),
		Scale:       1,
		BreakOffset: 1,
		Visible:     root.Visible,
	})

	visited := map[int]bool{0: true}
	queue := []int{0}
	for len(queue) > 0 {
		gi := queue[0]
		queue = queue[1:]
		for _, c := range t.Groups[gi].Children {
			if visited[c] || t.Group(c) == nil {
				continue
			}
			visited[c] = true
			t.growGroup(c, rng)
			queue = append(queue, c)
		}
	}
}

func (t *Tree) growGroup(gi int, rng *rand.Rand) {
	g := &t.Groups[gi]
	grng := rand.New(rand.NewPCG(rng.Uint64(), uint64(g.Seed)))

	var parents []int
	for i := range t.Nodes {
		if t.Nodes[i].Group == g.Parent {
			parents = append(parents, i)
		}
	}

	d := g.Distribution
	for _, pi := range parents {
		for k := 0; k < d.Frequency; k++ {
			// Re-fetch: appending may move the node slice.
			parent := t.Nodes[pi]
			n, ok := t.growNode(g, gi, pi, &parent, k, grng)
			if ok {
				t.Nodes = append(t.Nodes, n)
			}
		}
	}
}

func (t *Tree) growNode(g *Group, gi, pi int, parent *Node, k int, rng *rand.Rand) (Node, bool) {
	d := g.Distribution
	offset, angle := distribute(d, k, parent.BreakOffset, rng)

	var (
		pos     math.Vec3
		rot     math.Quat
		parentR float32
	)
	if parent.Curve != nil && parent.Curve.Len() > 0 {
		pos = parent.Curve.PositionAt(offset)
		rot = parent.Curve.RotationAt(offset)
		parentR = t.RadiusAt(parent, offset)
	} else {
		pos = parent.Position
		rot = parent.Rotation
		offset = 0
		if root := t.Root(); root != nil && root.Spread > 0 && d.Frequency > 1 {
			r := root.Spread * math32.Sqrt(rng.Float32())
			a := rng.Float32() * 2 * math32.Pi
			pos = pos.Add(math.Vec3{X: math32.Cos(a) * r, Z: math32.Sin(a) * r})
		}
	}

	axis := rot.Up()
	spin := math.QuatFromAxisAngle(axis, deg2rad(angle))
	tiltAxis := spin.Rotate(rot.Right())
	childRot := math.QuatFromAxisAngle(tiltAxis, deg2rad(d.GrowAngle)).Mul(spin).Mul(rot).Normalize()
	scale := math.Lerp32(d.Scale[0], d.Scale[1], rng.Float32())

	n := Node{
		Group:       gi,
		Parent:      pi,
		Position:    pos,
		Rotation:    childRot,
		Offset:      offset,
		Angle:       angle,
		Scale:       scale,
		BreakOffset: 1,
		Seed:        rng.Uint64(),
		Visible:     g.Visible && parent.Visible,
	}

	switch g.Kind {
	case KindBranch:
		b := g.Branch
		if b == nil {
			return n, false
		}
		n.Length = math.Lerp32(b.Length[0], b.Length[1], rng.Float32()) * scale
		n.Radius = b.Radius * scale
		if parentR > 0 {
			n.Radius = min(n.Radius, parentR*0.95)
		}
		if n.Length <= 0 {
			return n, false
		}
		n.Curve = growCurve(pos, childRot, n.Length, b, rng)
		n.CapRange = math.Clamp32(b.CapSmoothing, 0, 1)
		if rng.Float32() < b.BreakChance {
			n.BreakOffset = math.Lerp32(b.BreakLocation[0], b.BreakLocation[1], rng.Float32())
		}
	case KindLeaf:
		l := g.Leaf
		if l == nil {
			return n, false
		}
		n.Scale = math.Lerp32(l.Size[0], l.Size[1], rng.Float32()) * scale
		n.Rotation = alignLeaf(childRot, axis, l)
		if parentR > 0 {
			n.Position = pos.Add(childRot.Up().Scale(parentR))
		}
	default:
		return n, false
	}
	return n, true
}

// distribute returns the parent offset and spin angle (degrees) of child k.
func distribute(d Distribution, k int, breakOffset float32, rng *rand.Rand) (float32, float32) {
	start := d.Start
	end := min(d.End, breakOffset)
	if end < start {
		end = start
	}
	span := end - start
	count := max(d.Frequency, 1)

	switch d.Mode {
	case DistAlternate:
		return start + (float32(k)+0.5)/float32(count)*span, 180*float32(k) + d.Twirl*float32(k)
	case DistOpposite:
		pairs := (count + 1) / 2
		pair := k / 2
		return start + (float32(pair)+0.5)/float32(pairs)*span,
			180*float32(k%2) + 90*float32(pair) + d.Twirl*float32(pair)
	case DistWhorled:
		w := max(d.Whorl, 1)
		steps := (count + w - 1) / w
		step := k / w
		angle := 360*float32(k%w)/float32(w) + d.Twirl*float32(step)
		if step%2 == 1 {
			angle += 180 / float32(w)
		}
		return start + (float32(step)+0.5)/float32(steps)*span, angle
	default:
		return start + rng.Float32()*span, rng.Float32() * 360
	}
}

func growCurve(base math.Vec3, rot math.Quat, length float32, b *BranchParams, rng *rand.Rand) *spline.Curve {
	segments := int(math.Clamp32(length*2, 3, maxCurveSegments))
	step := length / float32(segments)

	seek := math.Up
	if b.SeekBlend < 0 {
		seek = seek.Neg()
	}
	seekAmount := math32.Abs(b.SeekBlend) / float32(segments)

	dir := rot.Up()
	pts := make([]math.Vec3, 0, segments+1)
	p := base
	pts = append(pts, p)
	for i := 0; i < segments; i++ {
		next := dir
		if b.Crinkle > 0 {
			jitter := math.Vec3{X: rng.Float32()*2 - 1, Y: rng.Float32()*2 - 1, Z: rng.Float32()*2 - 1}
			next = next.Add(jitter.Scale(b.Crinkle * 0.5))
		}
		if seekAmount > 0 {
			next = next.Lerp(seek, seekAmount)
		}
		if next = next.Normalize(); next != (math.Vec3{}) {
			dir = next
		}
		p = p.Add(dir.Scale(step))
		pts = append(pts, p)
	}

	c := spline.NewCurve(pts)
	c.UpdateRotations(rot)
	return c
}

func alignLeaf(rot math.Quat, parentAxis math.Vec3, l *LeafParams) math.Quat {
	if l.PerpendicularAlign > 0 {
		out := rot.Up().Sub(parentAxis.Scale(rot.Up().Dot(parentAxis))).Normalize()
		if out != (math.Vec3{}) {
			target := math.QuatFromTo(rot.Up(), out).Mul(rot)
			rot = rot.Slerp(target, math.Clamp32(l.PerpendicularAlign, 0, 1))
		}
	}
	if l.HorizontalAlign > 0 {
		target := math.QuatFromTo(rot.Forward(), math.Up).Mul(rot)
		rot = rot.Slerp(target, math.Clamp32(l.HorizontalAlign, 0, 1))
	}
	return rot.Normalize()
}

func deg2rad(d float32) float32 {
	return d * math32.Pi / 180
}
