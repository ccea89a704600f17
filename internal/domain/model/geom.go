package model

import "math"

// Vec3 is a point or direction in the camera frame: X right, Y up, Z toward
// the camera.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Norm() float64        { return math.Sqrt(v.Dot(v)) }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Normalize returns the unit vector of v, or the zero vector when v has no
// length.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n < epsilon {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// Midpoint returns the point halfway between v and o.
func (v Vec3) Midpoint(o Vec3) Vec3 { return v.Add(o).Scale(0.5) }

// AngleTo returns the unsigned angle between v and o in degrees.
func (v Vec3) AngleTo(o Vec3) float64 {
	n := v.Norm() * o.Norm()
	if n < epsilon {
		return 0
	}
	return degrees(math.Acos(clamp(v.Dot(o)/n, -1, 1)))
}

// Quat is a unit rotation quaternion.
type Quat struct {
	W, X, Y, Z float64
}

// IdentityQuat is the zero rotation.
var IdentityQuat = Quat{W: 1}

// QuatFromAxisAngle builds a rotation of deg degrees around axis.
func QuatFromAxisAngle(axis Vec3, deg float64) Quat {
	a := axis.Normalize()
	half := radians(deg) / 2
	s := math.Sin(half)
	return Quat{W: math.Cos(half), X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}

// QuatFromTo returns the shortest rotation taking direction from onto to.
func QuatFromTo(from, to Vec3) Quat {
	f, t := from.Normalize(), to.Normalize()
	if f == (Vec3{}) || t == (Vec3{}) {
		return IdentityQuat
	}
	d := f.Dot(t)
	if d < -1+1e-9 {
		// Antiparallel: rotate 180 degrees around any orthogonal axis.
		axis := Vec3{X: 1}.Cross(f)
		if axis.Norm() < 1e-6 {
			axis = Vec3{Y: 1}.Cross(f)
		}
		return QuatFromAxisAngle(axis, 180)
	}
	c := f.Cross(t)
	return Quat{W: 1 + d, X: c.X, Y: c.Y, Z: c.Z}.Normalize()
}

// Mul returns the Hamilton product q*o, which applies o first and then q.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

// Conj returns the inverse of a unit quaternion.
func (q Quat) Conj() Quat { return Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z} }

func (q Quat) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalize returns q scaled to unit length; a zero quaternion becomes the
// identity.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n < epsilon {
		return IdentityQuat
	}
	return Quat{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// AngleTo returns the angle in degrees of the rotation between q and o.
func (q Quat) AngleTo(o Quat) float64 {
	d := math.Abs(q.W*o.W + q.X*o.X + q.Y*o.Y + q.Z*o.Z)
	return degrees(2 * math.Acos(clamp(d, 0, 1)))
}

const epsilon = 1e-12

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func degrees(r float64) float64 { return r * 180 / math.Pi }
func radians(d float64) float64 { return d * math.Pi / 180 }

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 { return clamp(v, 0, 1) }
