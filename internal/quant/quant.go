// SPDX-License-Identifier: Unlicense OR MIT

// Package quant implements quantization and relative-to-center (RTC)
// routines: converting float positions to origin-relative integer
// grids with per-geometry/per-layer decode matrices, plus normal, UV
// and color encoding.
package quant

import (
	"math"

	"scenepack.dev/f32"
	"scenepack.dev/f64"
)

// PositionResult is the output of QuantizePositions.
type PositionResult struct {
	Quantized []uint16  // 3 components per vertex
	Decode    f32.Mat4  // maps [0,65535]^3 back to local float space
	AABB      f32.Box3  // the input AABB used to derive Decode
}

// QuantizePositions computes the AABB of positions (3 components per
// vertex), derives a decode matrix mapping [0,65535]^3 back to that
// box, and quantizes every position into it. Round-trip error is
// bounded by aabb.extent_axis/65535.
func QuantizePositions(positions []float32) PositionResult {
	n := len(positions) / 3
	aabb := f32.EmptyBox3()
	for i := 0; i < n; i++ {
		p := f32.Vec3{X: positions[i*3+0], Y: positions[i*3+1], Z: positions[i*3+2]}
		aabb = aabb.Extend(p)
	}
	if aabb.Empty() {
		aabb = f32.Box3{}
	}
	extent := aabb.Extent()
	scale := f32.Vec3{
		X: safeDiv(extent.X, 65535),
		Y: safeDiv(extent.Y, 65535),
		Z: safeDiv(extent.Z, 65535),
	}
	decode := f32.Translate4(aabb.Min).Mul(f32.Scale4(scale))

	out := make([]uint16, n*3)
	for i := 0; i < n; i++ {
		p := f32.Vec3{X: positions[i*3+0], Y: positions[i*3+1], Z: positions[i*3+2]}
		out[i*3+0] = quantizeAxis(p.X, aabb.Min.X, scale.X)
		out[i*3+1] = quantizeAxis(p.Y, aabb.Min.Y, scale.Y)
		out[i*3+2] = quantizeAxis(p.Z, aabb.Min.Z, scale.Z)
	}
	return PositionResult{Quantized: out, Decode: decode, AABB: aabb}
}

func safeDiv(extent float32, n float32) float32 {
	if extent == 0 {
		return 0
	}
	return extent / n
}

func quantizeAxis(p, min, scale float32) uint16 {
	if scale == 0 {
		return 0
	}
	q := math.Round(float64((p - min) / scale))
	if q < 0 {
		q = 0
	}
	if q > 65535 {
		q = 65535
	}
	return uint16(q)
}

// Decompress maps a single quantized position back into float local
// space using m, the inverse of QuantizePositions for one vertex.
func Decompress(m f32.Mat4, q [3]uint16) f32.Vec3 {
	return m.MulPoint(f32.Vec3{X: float32(q[0]), Y: float32(q[1]), Z: float32(q[2])})
}

// DefaultRTCTileSize is the conventional RTC tile size (the same value
// config.Default uses for RTCTileSize). WorldToRTC does not fall back
// to it; it always uses its tileSize argument.
const DefaultRTCTileSize = 1000.0

// DefaultRTCThreshold is the coordinate magnitude beyond which
// WorldToRTC reports that a tile shift is warranted.
const DefaultRTCThreshold = 1e5

// WorldToRTC computes a tile-snapped center for positions (relative
// to which the RTC-local coordinates in out are computed) and reports
// whether any input coordinate exceeded threshold. positions and out
// both hold 3 components per vertex; out may alias positions.
func WorldToRTC(positions []float32, origin f64.Vec3, tileSize, threshold float64, out []float32) (center f64.Vec3, shifted bool) {
	n := len(positions) / 3
	if n == 0 {
		return origin, false
	}
	var sum f64.Vec3
	maxAbs := 0.0
	for i := 0; i < n; i++ {
		wx := origin.X + float64(positions[i*3+0])
		wy := origin.Y + float64(positions[i*3+1])
		wz := origin.Z + float64(positions[i*3+2])
		sum = sum.Add(f64.Pt3(wx, wy, wz))
		maxAbs = maxAbsOf(maxAbs, wx, wy, wz)
	}
	mean := sum.Mul(1 / float64(n))
	tileIdx := f64.Pt3(
		math.Floor(mean.X/tileSize),
		math.Floor(mean.Y/tileSize),
		math.Floor(mean.Z/tileSize),
	)
	center = tileIdx.Mul(tileSize)
	for i := 0; i < n; i++ {
		wx := origin.X + float64(positions[i*3+0])
		wy := origin.Y + float64(positions[i*3+1])
		wz := origin.Z + float64(positions[i*3+2])
		out[i*3+0] = float32(wx - center.X)
		out[i*3+1] = float32(wy - center.Y)
		out[i*3+2] = float32(wz - center.Z)
	}
	return center, maxAbs > threshold
}

func maxAbsOf(cur float64, vs ...float64) float64 {
	for _, v := range vs {
		if v < 0 {
			v = -v
		}
		if v > cur {
			cur = v
		}
	}
	return cur
}
