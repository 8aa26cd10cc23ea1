package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
	if !m.IsIdentity() {
		t.Error("IsIdentity should report true")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())
	if result != m {
		t.Errorf("M * I should equal M, got %v", result)
	}
}

func TestTransformPoint(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
		p    Vec3
		want Vec3
	}{
		{"translate", Translate(10, 20, 30), Vec3{1, 2, 3}, Vec3{11, 22, 33}},
		{"scale", Scale(2, 2, 2), Vec3{1, 2, 3}, Vec3{2, 4, 6}},
		{"translate ignores direction", Translate(5, 5, 5), Vec3{}, Vec3{5, 5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.TransformPoint(tt.p); got != tt.want {
				t.Errorf("TransformPoint = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransformDirectionIgnoresTranslation(t *testing.T) {
	m := Translate(10, 20, 30)
	d := m.TransformDirection(Vec3{0, 1, 0})
	if d != (Vec3{0, 1, 0}) {
		t.Errorf("TransformDirection = %v, want (0,1,0)", d)
	}
}

func TestTransformNormalNonUniformScale(t *testing.T) {
	// A 45 degree surface squashed along Y: the normal must stay perpendicular.
	m := Scale(1, 0.5, 1)
	n := Vec3{1, 1, 0}.Normalize()
	tangent := Vec3{1, -1, 0}

	tn := m.TransformNormal(n)
	tt := m.TransformDirection(tangent)
	if d := tn.Dot(tt); abs(d) > 1e-5 {
		t.Errorf("transformed normal not perpendicular to tangent: dot=%v", d)
	}
	if l := tn.Length(); abs(l-1) > 1e-5 {
		t.Errorf("transformed normal length = %v, want 1", l)
	}
}

func TestTRS(t *testing.T) {
	rot := QuatFromAxisAngle(Up, float32(math.Pi/2))
	m := TRS(Vec3{1, 0, 0}, rot, 2)
	got := m.TransformPoint(Vec3{1, 0, 0})
	// (1,0,0) scaled to (2,0,0), rotated 90 about Y to (0,0,-2), then moved.
	want := Vec3{1, 0, -2}
	if got.Distance(want) > 1e-5 {
		t.Errorf("TRS point = %v, want %v", got, want)
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
