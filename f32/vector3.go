// SPDX-License-Identifier: Unlicense OR MIT

package f32

import "math"

// Vec3 is a three dimensional vector of float32 components, used for
// RTC-local positions, normals and scale/translation factors.
type Vec3 struct {
	X, Y, Z float32
}

// Pt3 is a shorthand constructor for Vec3.
func Pt3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Add returns v+v2.
func (v Vec3) Add(v2 Vec3) Vec3 {
	return Vec3{X: v.X + v2.X, Y: v.Y + v2.Y, Z: v.Z + v2.Z}
}

// Sub returns v-v2.
func (v Vec3) Sub(v2 Vec3) Vec3 {
	return Vec3{X: v.X - v2.X, Y: v.Y - v2.Y, Z: v.Z - v2.Z}
}

// Mul returns v scaled by s.
func (v Vec3) Mul(s float32) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// MulVec3 returns the component-wise product of v and v2.
func (v Vec3) MulVec3(v2 Vec3) Vec3 {
	return Vec3{X: v.X * v2.X, Y: v.Y * v2.Y, Z: v.Z * v2.Z}
}

// Dot returns the dot product of v and v2.
func (v Vec3) Dot(v2 Vec3) float32 {
	return v.X*v2.X + v.Y*v2.Y + v.Z*v2.Z
}

// Cross returns the cross product of v and v2.
func (v Vec3) Cross(v2 Vec3) Vec3 {
	return Vec3{
		X: v.Y*v2.Z - v.Z*v2.Y,
		Y: v.Z*v2.X - v.X*v2.Z,
		Z: v.X*v2.Y - v.Y*v2.X,
	}
}

// Len returns the Euclidean length of v.
func (v Vec3) Len() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalize returns v scaled to unit length. The zero vector is
// returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Mul(1 / l)
}

// Min returns the component-wise minimum of v and v2.
func (v Vec3) Min(v2 Vec3) Vec3 {
	return Vec3{X: min32(v.X, v2.X), Y: min32(v.Y, v2.Y), Z: min32(v.Z, v2.Z)}
}

// Max returns the component-wise maximum of v and v2.
func (v Vec3) Max(v2 Vec3) Vec3 {
	return Vec3{X: max32(v.X, v2.X), Y: max32(v.Y, v2.Y), Z: max32(v.Z, v2.Z)}
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
