// SPDX-License-Identifier: Unlicense OR MIT

package layer

import (
	"math"

	"scenepack.dev/driver"
	"scenepack.dev/f32"
)

// VBOInstanced draws many portions of the same shared geometry, one
// GPU instance per portion, each with its own model matrix, offset,
// color and flags. The layer's composite key therefore includes the
// geometry id: every portion in one VBOInstanced layer shares the
// same vertex/index buffers and differs only in per-instance
// attributes.
type VBOInstanced struct {
	base

	device driver.Device

	geometryID string
	decode     f32.Mat4

	matricesBuf driver.Buffer
	colorsBuf   driver.Buffer
	flagsBuf    driver.Buffer
	offsetsBuf  driver.Buffer

	maxInstances int
	matrices     []f32.Mat4
	colors       [][4]uint8
	offsets      []f32.Vec3
	baseAABB     f32.Box3 // geometry-local AABB, decoded once
}

// NewVBOInstanced creates an empty instanced layer capped at
// maxInstances portions, all referencing geometryID.
func NewVBOInstanced(id string, prim Primitive, device driver.Device, geometryID string, decode f32.Mat4, baseAABB f32.Box3, maxInstances int) *VBOInstanced {
	return &VBOInstanced{
		base:         newBase(id, StrategyVBOInstanced, prim),
		device:       device,
		geometryID:   geometryID,
		decode:       decode,
		baseAABB:     baseAABB,
		maxInstances: maxInstances,
	}
}

func (l *VBOInstanced) GeometryID() string { return l.geometryID }

// CanCreatePortion reports whether one more instance still fits under
// maxInstances.
func (l *VBOInstanced) CanCreatePortion(est SizeEstimate) bool {
	return l.state == StateBuilding && len(l.matrices) < l.maxInstances
}

// CreatePortion adds one instance with the given placement, color,
// and initial flag state.
func (l *VBOInstanced) CreatePortion(m f32.Mat4, rgba [4]uint8, f FlagState) (PortionID, error) {
	if err := l.requireBuilding(); err != nil {
		return 0, err
	}
	if len(l.matrices) >= l.maxInstances {
		return 0, ErrLayerFull
	}
	l.matrices = append(l.matrices, m)
	l.colors = append(l.colors, rgba)
	l.offsets = append(l.offsets, f32.Vec3{})
	box := f32.TransformBox3(m, l.baseAABB)
	return l.addPortionRecord(f, box), nil
}

// Finalize uploads the per-instance attribute buffers in their
// initial state.
func (l *VBOInstanced) Finalize() error {
	if err := l.requireBuilding(); err != nil {
		return err
	}
	if l.device != nil {
		matricesData := make([]byte, 0, len(l.matrices)*16*4)
		for _, m := range l.matrices {
			for _, c := range m {
				matricesData = appendF32(matricesData, c)
			}
		}
		buf, err := l.device.NewArrayBuffer(driver.TargetArrayBuffer, matricesData, driver.UsageDynamic)
		if err != nil {
			return err
		}
		l.matricesBuf = buf

		colorsData := make([]byte, 0, len(l.colors)*4)
		for _, c := range l.colors {
			colorsData = append(colorsData, c[0], c[1], c[2], c[3])
		}
		if buf, err := l.device.NewArrayBuffer(driver.TargetArrayBuffer, colorsData, driver.UsageDynamic); err != nil {
			return err
		} else {
			l.colorsBuf = buf
		}

		offsetsData := make([]byte, 0, len(l.offsets)*12)
		for _, o := range l.offsets {
			offsetsData = appendF32(offsetsData, o.X)
			offsetsData = appendF32(offsetsData, o.Y)
			offsetsData = appendF32(offsetsData, o.Z)
		}
		if buf, err := l.device.NewArrayBuffer(driver.TargetArrayBuffer, offsetsData, driver.UsageDynamic); err != nil {
			return err
		} else {
			l.offsetsBuf = buf
		}

		flagsData := make([]byte, 0, len(l.portionFlags)*4)
		for _, f := range l.portionFlags {
			flagsData = appendU32(flagsData, uint32(PackFlags(f)))
		}
		if buf, err := l.device.NewArrayBuffer(driver.TargetArrayBuffer, flagsData, driver.UsageDynamic); err != nil {
			return err
		} else {
			l.flagsBuf = buf
		}
	}
	l.state = StateFinalized
	return nil
}

func (l *VBOInstanced) Destroy() {
	if l.state == StateDestroyed {
		return
	}
	for _, buf := range []driver.Buffer{l.matricesBuf, l.colorsBuf, l.flagsBuf, l.offsetsBuf} {
		if buf != nil {
			buf.Destroy()
		}
	}
	l.state = StateDestroyed
}

func (l *VBOInstanced) SetFlags(id PortionID, f FlagState) error {
	if err := l.requireFinalized(); err != nil {
		return err
	}
	if err := l.setFlags(id, f); err != nil {
		return err
	}
	if l.flagsBuf != nil {
		packed := appendU32(nil, uint32(PackFlags(f)))
		l.flagsBuf.SetSubData(int(id)*4, packed)
	}
	return nil
}

func (l *VBOInstanced) SetColor(id PortionID, rgb f32.Vec3, opacity float32) error {
	if err := l.requireFinalized(); err != nil {
		return err
	}
	if int(id) >= len(l.colors) {
		return ErrUnknownPortion
	}
	rgba := [4]uint8{
		uint8(clamp01(rgb.X) * 255),
		uint8(clamp01(rgb.Y) * 255),
		uint8(clamp01(rgb.Z) * 255),
		uint8(clamp01(opacity) * 255),
	}
	l.colors[id] = rgba
	if l.colorsBuf != nil {
		l.colorsBuf.SetSubData(int(id)*4, rgba[:])
	}
	return nil
}

func (l *VBOInstanced) SetOffset(id PortionID, offset f32.Vec3) error {
	if err := l.requireFinalized(); err != nil {
		return err
	}
	if int(id) >= len(l.offsets) {
		return ErrUnknownPortion
	}
	l.offsets[id] = offset
	if l.offsetsBuf != nil {
		data := appendF32(appendF32(appendF32(nil, offset.X), offset.Y), offset.Z)
		l.offsetsBuf.SetSubData(int(id)*12, data)
	}
	return nil
}

func (l *VBOInstanced) SetMatrix(id PortionID, m f32.Mat4) error {
	if err := l.requireFinalized(); err != nil {
		return err
	}
	if int(id) >= len(l.matrices) {
		return ErrUnknownPortion
	}
	l.matrices[id] = m
	l.portionAABBs[id] = f32.TransformBox3(m, l.baseAABB)
	l.aabbDirty = true
	if l.matricesBuf != nil {
		data := make([]byte, 0, 64)
		for _, c := range m {
			data = appendF32(data, c)
		}
		l.matricesBuf.SetSubData(int(id)*64, data)
	}
	return nil
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func appendF32(dst []byte, v float32) []byte {
	bits := math.Float32bits(v)
	return append(dst, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
}
