// SPDX-License-Identifier: Unlicense OR MIT

package f32

import "math"

// Quat is a unit quaternion rotation, X*i + Y*j + Z*k + W.
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat returns the identity rotation.
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// EulerXYZ holds Euler rotation angles in degrees, applied in X, then
// Y, then Z order.
type EulerXYZ struct {
	X, Y, Z float32
}

// QuatFromEulerXYZ converts degrees, XYZ extrinsic order (rotation
// about the fixed X, then Y, then Z axes), to a
// quaternion. Kept bidirectionally consistent with QuatToEulerXYZ to
// within 1e-6.
func QuatFromEulerXYZ(e EulerXYZ) Quat {
	rx := deg2rad(e.X) * 0.5
	ry := deg2rad(e.Y) * 0.5
	rz := deg2rad(e.Z) * 0.5
	sx, cx := math.Sincos(float64(rx))
	sy, cy := math.Sincos(float64(ry))
	sz, cz := math.Sincos(float64(rz))

	qx := Quat{X: float32(sx), W: float32(cx)}
	qy := Quat{Y: float32(sy), W: float32(cy)}
	qz := Quat{Z: float32(sz), W: float32(cz)}
	// X, then Y, then Z: q = qz * qy * qx.
	return qz.Mul(qy).Mul(qx)
}

// QuatToEulerXYZ recovers XYZ Euler degrees from q.
func QuatToEulerXYZ(q Quat) EulerXYZ {
	// Build the rotation matrix and extract angles from it; this is
	// numerically well-behaved away from the Y = ±90° gimbal singularity.
	m := q.Mat4()
	var e EulerXYZ
	sy := -m[2]
	if sy > 1 {
		sy = 1
	}
	if sy < -1 {
		sy = -1
	}
	e.Y = float32(rad2deg(math.Asin(float64(sy))))
	if sy < 0.999999 && sy > -0.999999 {
		e.X = float32(rad2deg(math.Atan2(float64(m[6]), float64(m[10]))))
		e.Z = float32(rad2deg(math.Atan2(float64(m[1]), float64(m[0]))))
	} else {
		// Gimbal lock: pick Z=0 and fold the remaining rotation into X.
		e.X = float32(rad2deg(math.Atan2(float64(sy*m[4]), float64(m[5]))))
		e.Z = 0
	}
	return e
}

// Mul returns the Hamilton product q*o (apply o first, then q).
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Normalize returns q scaled to unit length.
func (q Quat) Normalize() Quat {
	l := float32(math.Sqrt(float64(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)))
	if l == 0 {
		return IdentityQuat()
	}
	return Quat{X: q.X / l, Y: q.Y / l, Z: q.Z / l, W: q.W / l}
}

// Mat4 returns the rotation matrix equivalent to q.
func (q Quat) Mat4() Mat4 {
	q = q.Normalize()
	x, y, z, w := q.X, q.Y, q.Z, q.W
	x2, y2, z2 := x+x, y+y, z+z
	xx, yy, zz := x*x2, y*y2, z*z2
	xy, xz, yz := x*y2, x*z2, y*z2
	wx, wy, wz := w*x2, w*y2, w*z2
	return Mat4{
		1 - (yy + zz), xy + wz, xz - wy, 0,
		xy - wz, 1 - (xx + zz), yz + wx, 0,
		xz + wy, yz - wx, 1 - (xx + yy), 0,
		0, 0, 0, 1,
	}
}

// QuatFromMat4 extracts a unit quaternion from the upper-left 3x3 of
// a pure rotation matrix (no scale/shear).
func QuatFromMat4(m Mat4) Quat {
	m00, m01, m02 := m[0], m[4], m[8]
	m10, m11, m12 := m[1], m[5], m[9]
	m20, m21, m22 := m[2], m[6], m[10]
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := float32(0.5) / sqrt32(trace+1)
		return Quat{
			W: 0.25 / s,
			X: (m21 - m12) * s,
			Y: (m02 - m20) * s,
			Z: (m10 - m01) * s,
		}.Normalize()
	case m00 > m11 && m00 > m22:
		s := 2 * sqrt32(1+m00-m11-m22)
		return Quat{
			W: (m21 - m12) / s,
			X: 0.25 * s,
			Y: (m01 + m10) / s,
			Z: (m02 + m20) / s,
		}.Normalize()
	case m11 > m22:
		s := 2 * sqrt32(1+m11-m00-m22)
		return Quat{
			W: (m02 - m20) / s,
			X: (m01 + m10) / s,
			Y: 0.25 * s,
			Z: (m12 + m21) / s,
		}.Normalize()
	default:
		s := 2 * sqrt32(1+m22-m00-m11)
		return Quat{
			W: (m10 - m01) / s,
			X: (m02 + m20) / s,
			Y: (m12 + m21) / s,
			Z: 0.25 * s,
		}.Normalize()
	}
}

func sqrt32(v float32) float32 { return float32(math.Sqrt(float64(v))) }
func deg2rad(d float32) float32 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
