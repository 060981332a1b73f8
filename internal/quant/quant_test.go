// SPDX-License-Identifier: Unlicense OR MIT

package quant

import (
	"math"
	"testing"

	"scenepack.dev/f32"
	"scenepack.dev/f64"
)

func TestQuantizePositionsRoundTrip(t *testing.T) {
	positions := []float32{
		-1, -1, -1,
		1, 1, 1,
		0.3, -0.7, 0.9,
		-0.5, 0.25, -0.1,
	}
	res := QuantizePositions(positions)
	tol := res.AABB.MaxExtent() / 65535
	if tol == 0 {
		tol = 1e-6
	}
	n := len(positions) / 3
	for i := 0; i < n; i++ {
		orig := f32.Vec3{X: positions[i*3+0], Y: positions[i*3+1], Z: positions[i*3+2]}
		q := [3]uint16{res.Quantized[i*3+0], res.Quantized[i*3+1], res.Quantized[i*3+2]}
		got := Decompress(res.Decode, q)
		if d := absf(got.X - orig.X); d > tol {
			t.Fatalf("x mismatch: got %v want %v (tol %v)", got.X, orig.X, tol)
		}
		if d := absf(got.Y - orig.Y); d > tol {
			t.Fatalf("y mismatch: got %v want %v (tol %v)", got.Y, orig.Y, tol)
		}
		if d := absf(got.Z - orig.Z); d > tol {
			t.Fatalf("z mismatch: got %v want %v (tol %v)", got.Z, orig.Z, tol)
		}
	}
}

func TestQuantizePositionsDegenerate(t *testing.T) {
	// All vertices identical: zero extent must not divide by zero.
	positions := []float32{1, 1, 1, 1, 1, 1}
	res := QuantizePositions(positions)
	for _, q := range res.Quantized {
		if q != 0 {
			t.Fatalf("expected all-zero quantization for degenerate AABB, got %v", res.Quantized)
		}
	}
}

func TestWorldToRTCThreshold(t *testing.T) {
	cases := []struct {
		coord    float32
		expected bool
	}{
		{99999, false},
		{100001, true},
	}
	for _, c := range cases {
		positions := []float32{c.coord, 0, 0}
		out := make([]float32, 3)
		_, shifted := WorldToRTC(positions, f64.Vec3{}, DefaultRTCTileSize, DefaultRTCThreshold, out)
		if shifted != c.expected {
			t.Fatalf("coord %v: expected shifted=%v, got %v", c.coord, c.expected, shifted)
		}
	}
}

func TestWorldToRTCOriginShift(t *testing.T) {
	positions := []float32{10, 20, 30}
	out := make([]float32, 3)
	origin := f64.Pt3(1e8, 0, 1e8)
	center, _ := WorldToRTC(positions, origin, DefaultRTCTileSize, DefaultRTCThreshold, out)
	// World position reconstructed from center+out must match origin+local.
	wx := center.X + float64(out[0])
	wy := center.Y + float64(out[1])
	wz := center.Z + float64(out[2])
	if math.Abs(wx-(origin.X+10)) > 1e-3 {
		t.Fatalf("x mismatch: %v", wx)
	}
	if math.Abs(wy-(origin.Y+20)) > 1e-3 {
		t.Fatalf("y mismatch: %v", wy)
	}
	if math.Abs(wz-(origin.Z+30)) > 1e-3 {
		t.Fatalf("z mismatch: %v", wz)
	}
}

func TestOctNormalRoundTrip(t *testing.T) {
	normals := []f32.Vec3{
		{X: 0, Y: 0, Z: 1},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: -1},
		{X: 0.577, Y: 0.577, Z: 0.577},
		{X: -0.577, Y: -0.577, Z: -0.577},
	}
	for _, n := range normals {
		n = n.Normalize()
		x, y := EncodeNormal(n)
		back := DecodeNormal(x, y)
		if back.Dot(n) < 0.99 {
			t.Fatalf("normal %+v decoded to %+v (dot %v)", n, back, back.Dot(n))
		}
	}
}

func TestEncodeColor(t *testing.T) {
	c := EncodeColor(f32.Vec3{X: 1, Y: 0.5, Z: 0}, 0.25)
	if c[0] != 255 || c[3] != 64 {
		t.Fatalf("unexpected encoded color: %v", c)
	}
	clamped := EncodeColor(f32.Vec3{X: -1, Y: 2, Z: 0.5}, 1)
	if clamped[0] != 0 || clamped[1] != 255 {
		t.Fatalf("expected clamping, got %v", clamped)
	}
}

func TestEncodeUV(t *testing.T) {
	uvs := []float32{0, 0, 1, 1, 0.5, 0.25}
	res := EncodeUV(uvs)
	if res.Quantized[0] != 0 || res.Quantized[1] != 0 {
		t.Fatalf("expected origin uv to quantize to 0: %v", res.Quantized)
	}
	if res.Quantized[2] != 65535 || res.Quantized[3] != 65535 {
		t.Fatalf("expected max uv to quantize to 65535: %v", res.Quantized)
	}
}
