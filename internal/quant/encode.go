// SPDX-License-Identifier: Unlicense OR MIT

package quant

import (
	"math"

	"scenepack.dev/f32"
)

// EncodeNormal oct-encodes a unit normal into two signed bytes, using
// the standard octahedral projection: project onto the octahedron,
// fold the lower hemisphere, then quantize to [-127,127].
func EncodeNormal(n f32.Vec3) (x, y int8) {
	n = n.Normalize()
	l1 := absf(n.X) + absf(n.Y) + absf(n.Z)
	if l1 == 0 {
		return 0, 0
	}
	ox, oy := n.X/l1, n.Y/l1
	if n.Z < 0 {
		ox, oy = (1-absf(oy))*signf(ox), (1-absf(ox))*signf(oy)
	}
	return quantizeSigned(ox), quantizeSigned(oy)
}

// DecodeNormal reverses EncodeNormal, returning an approximately unit
// vector.
func DecodeNormal(x, y int8) f32.Vec3 {
	fx := float32(x) / 127
	fy := float32(y) / 127
	fz := 1 - absf(fx) - absf(fy)
	if fz < 0 {
		ox, oy := fx, fy
		fx = (1 - absf(oy)) * signf(ox)
		fy = (1 - absf(ox)) * signf(oy)
	}
	return f32.Vec3{X: fx, Y: fy, Z: fz}.Normalize()
}

func quantizeSigned(v float32) int8 {
	q := math.Round(float64(v) * 127)
	if q > 127 {
		q = 127
	}
	if q < -127 {
		q = -127
	}
	return int8(q)
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func signf(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}

// UVResult is the output of EncodeUV.
type UVResult struct {
	Quantized []uint16 // 2 components per vertex
	Decode    [9]float32 // 3x3 decode matrix, column-major: [u v 1] recovered via M*[qu,qv,1]
}

// EncodeUV computes uv_min/uv_max and quantizes uvs (2 components per
// vertex) to u16 with a 3x3 decode matrix.
func EncodeUV(uvs []float32) UVResult {
	n := len(uvs) / 2
	minU, minV := float32(math.Inf(1)), float32(math.Inf(1))
	maxU, maxV := float32(math.Inf(-1)), float32(math.Inf(-1))
	for i := 0; i < n; i++ {
		u, v := uvs[i*2+0], uvs[i*2+1]
		if u < minU {
			minU = u
		}
		if v < minV {
			minV = v
		}
		if u > maxU {
			maxU = u
		}
		if v > maxV {
			maxV = v
		}
	}
	if n == 0 {
		minU, minV, maxU, maxV = 0, 0, 0, 0
	}
	su := safeDiv(maxU-minU, 65535)
	sv := safeDiv(maxV-minV, 65535)
	out := make([]uint16, n*2)
	for i := 0; i < n; i++ {
		out[i*2+0] = quantizeAxis(uvs[i*2+0], minU, su)
		out[i*2+1] = quantizeAxis(uvs[i*2+1], minV, sv)
	}
	decode := [9]float32{
		su, 0, 0,
		0, sv, 0,
		minU, minV, 1,
	}
	return UVResult{Quantized: out, Decode: decode}
}

// EncodeColor converts a float color+opacity in [0,1] to 4 quantized
// u8 components (RGBA).
func EncodeColor(rgb f32.Vec3, opacity float32) [4]uint8 {
	return [4]uint8{
		quantizeUnit(rgb.X),
		quantizeUnit(rgb.Y),
		quantizeUnit(rgb.Z),
		quantizeUnit(opacity),
	}
}

func quantizeUnit(v float32) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(math.Round(float64(v) * 255))
}
