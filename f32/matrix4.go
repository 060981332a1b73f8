// SPDX-License-Identifier: Unlicense OR MIT

package f32

// Mat4 is a 4x4 matrix in column-major order, matching the layout the
// GPU driver abstraction expects for uniform/instance-attribute
// upload: m[col*4+row].
type Mat4 [16]float32

// Identity4 returns the 4x4 identity matrix.
func Identity4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate4 returns a translation matrix.
func Translate4(t Vec3) Mat4 {
	m := Identity4()
	m[12], m[13], m[14] = t.X, t.Y, t.Z
	return m
}

// Scale4 returns a non-uniform scale matrix.
func Scale4(s Vec3) Mat4 {
	return Mat4{
		s.X, 0, 0, 0,
		0, s.Y, 0, 0,
		0, 0, s.Z, 0,
		0, 0, 0, 1,
	}
}

// Mul returns m*n (apply n first, then m).
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * n[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// MulPoint transforms p as a point (w=1) by m.
func (m Mat4) MulPoint(p Vec3) Vec3 {
	return Vec3{
		X: m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12],
		Y: m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13],
		Z: m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14],
	}
}

// MulVector transforms v as a direction (w=0) by m, ignoring
// translation. Used for normals when m carries no non-uniform scale;
// callers needing correctness under non-uniform scale should use the
// inverse-transpose instead.
func (m Mat4) MulVector(v Vec3) Vec3 {
	return Vec3{
		X: m[0]*v.X + m[4]*v.Y + m[8]*v.Z,
		Y: m[1]*v.X + m[5]*v.Y + m[9]*v.Z,
		Z: m[2]*v.X + m[6]*v.Y + m[10]*v.Z,
	}
}

// Col returns the i'th column as a Vec3 (dropping w).
func (m Mat4) Col(i int) Vec3 {
	return Vec3{X: m[i*4+0], Y: m[i*4+1], Z: m[i*4+2]}
}

// Compose builds a TRS matrix: translate(position) * rotate(quat) * scale(scale).
func Compose(position Vec3, rot Quat, scale Vec3) Mat4 {
	return Translate4(position).Mul(rot.Mat4()).Mul(Scale4(scale))
}

// Decompose recovers (position, rotation, scale) from an affine TRS
// matrix. Degenerate (zero) scale on any axis makes rotation recovery
// ill-defined; the caller must ensure scale is non-zero.
func (m Mat4) Decompose() (position Vec3, rot Quat, scale Vec3) {
	position = Vec3{X: m[12], Y: m[13], Z: m[14]}
	cx := m.Col(0)
	cy := m.Col(1)
	cz := m.Col(2)
	sx, sy, sz := cx.Len(), cy.Len(), cz.Len()
	// Negative determinant indicates a mirrored basis; fold the flip
	// into the X scale so rotation remains a proper rotation.
	det := cx.Cross(cy).Dot(cz)
	if det < 0 {
		sx = -sx
	}
	scale = Vec3{X: sx, Y: sy, Z: sz}
	var rm Mat4
	if sx != 0 {
		rm[0], rm[1], rm[2] = cx.X/sx, cx.Y/sx, cx.Z/sx
	}
	if sy != 0 {
		rm[4], rm[5], rm[6] = cy.X/sy, cy.Y/sy, cy.Z/sy
	}
	if sz != 0 {
		rm[8], rm[9], rm[10] = cz.X/sz, cz.Y/sz, cz.Z/sz
	}
	rm[15] = 1
	rot = QuatFromMat4(rm)
	return
}
