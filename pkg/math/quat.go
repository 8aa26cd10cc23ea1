package math

import "github.com/chewxy/math32"

// Quat is a rotation quaternion. W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns the identity rotation.
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// QuatFromAxisAngle creates a rotation of angle radians around a unit axis.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	s := math32.Sin(angle / 2)
	return Quat{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: math32.Cos(angle / 2)}
}

// QuatFromTo returns the shortest rotation that takes direction from onto to.
func QuatFromTo(from, to Vec3) Quat {
	from = from.Normalize()
	to = to.Normalize()
	d := from.Dot(to)
	if d >= 0.999999 {
		return QuatIdentity()
	}
	if d <= -0.999999 {
		return QuatFromAxisAngle(from.Orthogonal(), math32.Pi)
	}
	c := from.Cross(to)
	return Quat{X: c.X, Y: c.Y, Z: c.Z, W: 1 + d}.Normalize()
}

// Normalize returns a unit quaternion; near-zero input collapses to identity.
func (q Quat) Normalize() Quat {
	l := math32.Sqrt(q.Dot(q))
	if l < 0.0001 {
		return QuatIdentity()
	}
	inv := 1 / l
	return Quat{q.X * inv, q.Y * inv, q.Z * inv, q.W * inv}
}

// Dot returns the 4D dot product.
func (q Quat) Dot(other Quat) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Conjugate returns the inverse of a unit quaternion.
func (q Quat) Conjugate() Quat {
	return Quat{-q.X, -q.Y, -q.Z, q.W}
}

// Mul composes rotations: the result applies other first, then q.
func (q Quat) Mul(other Quat) Quat {
	return Quat{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Up, Right and Forward return the rotated basis vectors.
func (q Quat) Up() Vec3      { return q.Rotate(Up) }
func (q Quat) Right() Vec3   { return q.Rotate(Right) }
func (q Quat) Forward() Vec3 { return q.Rotate(Forward) }

// Slerp performs spherical linear interpolation, taking the short path.
func (q Quat) Slerp(other Quat, t float32) Quat {
	dot := q.Dot(other)
	if dot < 0 {
		other = Quat{-other.X, -other.Y, -other.Z, -other.W}
		dot = -dot
	}

	// Nearly parallel: lerp avoids dividing by sin(0).
	if dot > 0.9995 {
		return q.Lerp(other, t)
	}

	theta0 := math32.Acos(dot)
	theta := theta0 * t
	sinTheta0 := math32.Sin(theta0)
	s1 := math32.Sin(theta) / sinTheta0
	s0 := math32.Cos(theta) - dot*s1

	return Quat{
		q.X*s0 + other.X*s1,
		q.Y*s0 + other.Y*s1,
		q.Z*s0 + other.Z*s1,
		q.W*s0 + other.W*s1,
	}
}

// Lerp blends component-wise and renormalizes.
func (q Quat) Lerp(other Quat, t float32) Quat {
	return Quat{
		q.X + t*(other.X-q.X),
		q.Y + t*(other.Y-q.Y),
		q.Z + t*(other.Z-q.Z),
		q.W + t*(other.W-q.W),
	}.Normalize()
}

// ToMat4 converts the rotation to a column-major matrix.
func (q Quat) ToMat4() Mat4 {
	q = q.Normalize()

	xx, xy, xz, xw := q.X*q.X, q.X*q.Y, q.X*q.Z, q.X*q.W
	yy, yz, yw := q.Y*q.Y, q.Y*q.Z, q.Y*q.W
	zz, zw := q.Z*q.Z, q.Z*q.W

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + zw), 2 * (xz - yw), 0,
		2 * (xy - zw), 1 - 2*(xx+zz), 2 * (yz + xw), 0,
		2 * (xz + yw), 2 * (yz - xw), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

// Lerp32 interpolates between two scalars.
func Lerp32(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Clamp32 limits x to [lo, hi].
func Clamp32(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
