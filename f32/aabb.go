// SPDX-License-Identifier: Unlicense OR MIT

package f32

import "math"

// Box3 is an axis-aligned bounding box in 3D float32 space.
type Box3 struct {
	Min, Max Vec3
}

// EmptyBox3 returns a box primed so that the first Extend call
// establishes its bounds.
func EmptyBox3() Box3 {
	inf := float32(math.Inf(1))
	return Box3{
		Min: Vec3{X: inf, Y: inf, Z: inf},
		Max: Vec3{X: -inf, Y: -inf, Z: -inf},
	}
}

// Empty reports whether b has never been extended.
func (b Box3) Empty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extend grows b to also cover p.
func (b Box3) Extend(p Vec3) Box3 {
	return Box3{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the smallest box covering both b and o.
func (b Box3) Union(o Box3) Box3 {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return Box3{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Center returns the midpoint of b.
func (b Box3) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extent returns the per-axis size of b.
func (b Box3) Extent() Vec3 {
	return b.Max.Sub(b.Min)
}

// MaxExtent returns the largest of the box's three axis extents.
func (b Box3) MaxExtent() float32 {
	e := b.Extent()
	m := e.X
	if e.Y > m {
		m = e.Y
	}
	if e.Z > m {
		m = e.Z
	}
	return m
}

// Add offsets b by v.
func (b Box3) Add(v Vec3) Box3 {
	return Box3{Min: b.Min.Add(v), Max: b.Max.Add(v)}
}

// Corners returns the 8 corners of b, used to reduce an OBB (a
// transformed AABB) back to an AABB.
func (b Box3) Corners() [8]Vec3 {
	return [8]Vec3{
		{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
	}
}

// TransformBox3 computes the AABB that encloses b after being
// transformed by m, by transforming its 8 corners and taking their
// union (the standard OBB-to-AABB reduction).
func TransformBox3(m Mat4, b Box3) Box3 {
	out := EmptyBox3()
	for _, c := range b.Corners() {
		out = out.Extend(m.MulPoint(c))
	}
	return out
}
