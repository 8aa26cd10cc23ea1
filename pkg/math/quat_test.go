package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q != (Quat{0, 0, 0, 1}) {
		t.Errorf("Identity quaternion should be (0,0,0,1), got %v", q)
	}
}

func TestQuatNormalize(t *testing.T) {
	n := Quat{X: 1, Y: 2, Z: 3, W: 4}.Normalize()
	if l := float32(math.Sqrt(float64(n.Dot(n)))); abs(l-1) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", l)
	}
}

func TestQuatSlerp(t *testing.T) {
	q1 := QuatIdentity()
	q2 := QuatFromAxisAngle(Up, float32(math.Pi/2))

	if r := q1.Slerp(q2, 0); abs(r.W-q1.W) > 0.001 {
		t.Errorf("Slerp at t=0 should equal q1, got %v", r)
	}
	if r := q1.Slerp(q2, 1); abs(r.W-q2.W) > 0.001 {
		t.Errorf("Slerp at t=1 should equal q2, got %v", r)
	}

	// Halfway through a 90 degree turn is a 45 degree turn.
	want := float32(math.Cos(math.Pi / 8))
	if r := q1.Slerp(q2, 0.5); abs(r.W-want) > 0.01 {
		t.Errorf("Slerp at t=0.5: expected W ~%v, got %v", want, r.W)
	}
}

func TestQuatRotateMatchesMatrix(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{1, 1, 0}.Normalize(), 0.7)
	v := Vec3{0.3, -1, 2}
	a := q.Rotate(v)
	b := q.ToMat4().TransformPoint(v)
	if a.Distance(b) > 1e-5 {
		t.Errorf("Rotate = %v, matrix = %v", a, b)
	}
}

func TestQuatBasis(t *testing.T) {
	q := QuatFromAxisAngle(Forward, float32(math.Pi/2))
	// Rotating +Y by 90 degrees around +Z points it along -X.
	if up := q.Up(); up.Distance(Vec3{-1, 0, 0}) > 1e-5 {
		t.Errorf("Up = %v, want (-1,0,0)", up)
	}
	if f := q.Forward(); f.Distance(Forward) > 1e-5 {
		t.Errorf("Forward = %v, want (0,0,1)", f)
	}
}

func TestQuatFromTo(t *testing.T) {
	tests := []struct {
		name     string
		from, to Vec3
	}{
		{"same", Up, Up},
		{"perpendicular", Up, Right},
		{"opposite", Up, Up.Neg()},
		{"arbitrary", Vec3{1, 2, 3}, Vec3{-2, 0.5, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuatFromTo(tt.from, tt.to).Rotate(tt.from.Normalize())
			if got.Distance(tt.to.Normalize()) > 1e-4 {
				t.Errorf("QuatFromTo rotated %v to %v, want %v", tt.from, got, tt.to.Normalize())
			}
		})
	}
}
