// Package spline provides the branch curve type and its adaptive sampler.
package spline

import (
	"sort"

	"github.com/Faultbox/arbor/pkg/math"
)

// Point is a control point of a Curve.
type Point struct {
	Time     float32
	Position math.Vec3
	Rotation math.Quat
}

// Curve is a Catmull-Rom spline through ordered control points. Point times
// are non-decreasing and the first time is 0.
type Curve struct {
	Points []Point
}

// NewCurve builds a curve through positions and assigns arc-length times.
// Rotations are parallel-transported so each frame's Up follows the tangent.
func NewCurve(positions []math.Vec3) *Curve {
	c := &Curve{Points: make([]Point, len(positions))}
	for i, p := range positions {
		c.Points[i].Position = p
	}
	c.UpdateTime()
	c.UpdateRotations(math.QuatIdentity())
	return c
}

// Len returns the number of control points.
func (c *Curve) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

// Length returns the polyline length through the control points.
func (c *Curve) Length() float32 {
	var l float32
	for i := 1; i < c.Len(); i++ {
		l += c.Points[i].Position.Distance(c.Points[i-1].Position)
	}
	return l
}

// UpdateTime assigns normalized arc-length times to the control points.
func (c *Curve) UpdateTime() {
	n := c.Len()
	if n == 0 {
		return
	}
	total := c.Length()
	var acc float32
	c.Points[0].Time = 0
	for i := 1; i < n; i++ {
		if total <= 0 {
			c.Points[i].Time = float32(i) / float32(n-1)
			continue
		}
		acc += c.Points[i].Position.Distance(c.Points[i-1].Position)
		c.Points[i].Time = acc / total
	}
}

// UpdateRotations rebuilds control point frames by parallel transport of
// base along the polyline.
func (c *Curve) UpdateRotations(base math.Quat) {
	n := c.Len()
	if n == 0 {
		return
	}
	rot := base
	prev := base.Up()
	for i := 0; i < n; i++ {
		dir := c.segmentDirection(i)
		if dir != (math.Vec3{}) {
			rot = math.QuatFromTo(prev, dir).Mul(rot).Normalize()
			prev = dir
		}
		c.Points[i].Rotation = rot
	}
}

func (c *Curve) segmentDirection(i int) math.Vec3 {
	n := c.Len()
	switch {
	case n < 2:
		return math.Vec3{}
	case i == n-1:
		return c.Points[i].Position.Sub(c.Points[i-1].Position).Normalize()
	default:
		return c.Points[i+1].Position.Sub(c.Points[i].Position).Normalize()
	}
}

// segment finds the control point span containing t and the local parameter.
func (c *Curve) segment(t float32) (int, float32) {
	n := c.Len()
	if t <= c.Points[0].Time {
		return 0, 0
	}
	if t >= c.Points[n-1].Time {
		return n - 2, 1
	}
	i := sort.Search(n, func(k int) bool { return c.Points[k].Time > t }) - 1
	span := c.Points[i+1].Time - c.Points[i].Time
	if span <= 0 {
		return i, 0
	}
	return i, (t - c.Points[i].Time) / span
}

// PositionAt evaluates the curve position at time t.
func (c *Curve) PositionAt(t float32) math.Vec3 {
	switch c.Len() {
	case 0:
		return math.Vec3{}
	case 1:
		return c.Points[0].Position
	}
	i, u := c.segment(t)
	p1 := c.Points[i].Position
	p2 := c.Points[i+1].Position
	p0 := p1
	if i > 0 {
		p0 = c.Points[i-1].Position
	}
	p3 := p2
	if i+2 < c.Len() {
		p3 = c.Points[i+2].Position
	}
	return catmullRom(p0, p1, p2, p3, u)
}

// RotationAt slerps control point rotations at time t.
func (c *Curve) RotationAt(t float32) math.Quat {
	switch c.Len() {
	case 0:
		return math.QuatIdentity()
	case 1:
		return c.Points[0].Rotation
	}
	i, u := c.segment(t)
	return c.Points[i].Rotation.Slerp(c.Points[i+1].Rotation, u)
}

// TangentAt returns the normalized derivative direction at t.
func (c *Curve) TangentAt(t float32) math.Vec3 {
	const h = 0.001
	a := math.Clamp32(t-h, 0, 1)
	b := math.Clamp32(t+h, 0, 1)
	d := c.PositionAt(b).Sub(c.PositionAt(a)).Normalize()
	if d == (math.Vec3{}) {
		return c.RotationAt(t).Up()
	}
	return d
}

// Clone returns a deep copy.
func (c *Curve) Clone() *Curve {
	if c == nil {
		return nil
	}
	return &Curve{Points: append([]Point(nil), c.Points...)}
}

func catmullRom(p0, p1, p2, p3 math.Vec3, u float32) math.Vec3 {
	u2 := u * u
	u3 := u2 * u
	a := p1.Scale(2)
	b := p2.Sub(p0).Scale(u)
	c := p0.Scale(2).Sub(p1.Scale(5)).Add(p2.Scale(4)).Sub(p3).Scale(u2)
	d := p1.Scale(3).Sub(p0).Sub(p2.Scale(3)).Add(p3).Scale(u3)
	return a.Add(b).Add(c).Add(d).Scale(0.5)
}
