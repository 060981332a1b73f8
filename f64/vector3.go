// SPDX-License-Identifier: Unlicense OR MIT

// Package f64 provides the double-precision 3-vector used for scene
// and layer origins, kept separate from the float32 math in package
// f32 which operates on RTC-local, origin-relative coordinates.
package f64

import "scenepack.dev/f32"

// Vec3 is a three dimensional vector of float64 components.
type Vec3 struct {
	X, Y, Z float64
}

// Pt3 is a shorthand constructor for Vec3.
func Pt3(x, y, z float64) Vec3 {
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
func (v Vec3) Mul(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// ToF32 narrows v to single precision, used once a position has been
// made relative to an origin and is small enough for GPU math.
func (v Vec3) ToF32() f32.Vec3 {
	return f32.Vec3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

// FromF32 widens a float32 vector to double precision.
func FromF32(v f32.Vec3) Vec3 {
	return Vec3{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// RoundedKey returns v rounded to the nearest integer on each axis, as
// used by SceneModel's composite layer keys.
func (v Vec3) RoundedKey() [3]int64 {
	return [3]int64{int64(round(v.X)), int64(round(v.Y)), int64(round(v.Z))}
}

func round(f float64) float64 {
	if f < 0 {
		return -roundPositive(-f)
	}
	return roundPositive(f)
}

func roundPositive(f float64) float64 {
	i := float64(int64(f))
	if f-i >= 0.5 {
		return i + 1
	}
	return i
}
