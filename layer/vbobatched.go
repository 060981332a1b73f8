// SPDX-License-Identifier: Unlicense OR MIT

package layer

import (
	"scenepack.dev/driver"
	"scenepack.dev/f32"
	"scenepack.dev/internal/bucket"
)

// VBOBatched bakes many portions' geometry directly into one set of
// shared vertex/index buffers: every portion owns a contiguous
// vertex range and a contiguous index range. There is no per-portion
// transform; an entity's world placement must already be folded into
// the positions before they are appended here, which is why a
// composite layer key for this strategy always includes the shared
// RTC origin and decode matrix.
type VBOBatched struct {
	base

	device driver.Device
	pool   *ScratchPool
	scratch *scratchBuffer

	decode f32.Mat4

	positionsBuf driver.Buffer
	colorsBuf    driver.Buffer // rgba per vertex
	flagsBuf     driver.Buffer // one uint32 per vertex
	offsetsBuf   driver.Buffer // vec3 per vertex, defaults to zero
	indicesBuf   driver.Buffer
	edgesBuf     driver.Buffer

	maxVertices int
	maxIndices  int
	numVertices int
	numIndices  int
	numEdgeIndices int

	ranges []batchedRange
}

type batchedRange struct {
	vertexStart, vertexCount int
	indexStart, indexCount   int
	edgeStart, edgeCount     int
}

// NewVBOBatched creates an empty batched layer over device, with
// capacity for up to maxVertices/maxIndices before CanCreatePortion
// starts refusing new portions.
func NewVBOBatched(id string, prim Primitive, device driver.Device, pool *ScratchPool, decode f32.Mat4, maxVertices, maxIndices int) *VBOBatched {
	l := &VBOBatched{
		base:        newBase(id, StrategyVBOBatched, prim),
		device:      device,
		pool:        pool,
		decode:      decode,
		maxVertices: maxVertices,
		maxIndices:  maxIndices,
	}
	l.scratch = pool.Get()
	return l
}

// CanCreatePortion reports whether est still fits within this
// layer's configured vertex/index budget.
func (l *VBOBatched) CanCreatePortion(est SizeEstimate) bool {
	if l.state != StateBuilding {
		return false
	}
	return l.numVertices+est.NumVertices <= l.maxVertices &&
		l.numIndices+est.NumIndices <= l.maxIndices
}

// CreatePortion appends one bucket's compressed positions, indices,
// and edge indices into the shared scratch arena, recording the
// vertex/index ranges it occupies.
func (l *VBOBatched) CreatePortion(b bucket.Bucket, rgba [4]uint8, f FlagState) (PortionID, error) {
	if err := l.requireBuilding(); err != nil {
		return 0, err
	}
	numVerts := len(b.PositionsCompressed) / 3

	r := batchedRange{
		vertexStart: l.numVertices,
		vertexCount: numVerts,
		indexStart:  l.numIndices,
		indexCount:  len(b.Indices),
		edgeStart:   l.numEdgeIndices,
		edgeCount:   len(b.EdgeIndices),
	}

	packed := uint32(PackFlags(f))
	for i := 0; i < numVerts; i++ {
		l.scratch.Positions = appendU16(l.scratch.Positions, b.PositionsCompressed[i*3+0])
		l.scratch.Positions = appendU16(l.scratch.Positions, b.PositionsCompressed[i*3+1])
		l.scratch.Positions = appendU16(l.scratch.Positions, b.PositionsCompressed[i*3+2])
	}
	for i := 0; i < numVerts; i++ {
		l.scratch.Flags = appendU32(l.scratch.Flags, packed)
		l.scratch.Colors = append(l.scratch.Colors, rgba[0], rgba[1], rgba[2], rgba[3])
		l.scratch.Offsets = appendF32(l.scratch.Offsets, 0)
		l.scratch.Offsets = appendF32(l.scratch.Offsets, 0)
		l.scratch.Offsets = appendF32(l.scratch.Offsets, 0)
	}

	base := uint32(r.vertexStart)
	for _, idx := range b.Indices {
		l.scratch.Indices = appendU32(l.scratch.Indices, idx+base)
	}
	for _, idx := range b.EdgeIndices {
		l.scratch.Edges = appendU32(l.scratch.Edges, idx+base)
	}

	l.numVertices += numVerts
	l.numIndices += len(b.Indices)
	l.numEdgeIndices += len(b.EdgeIndices)
	l.ranges = append(l.ranges, r)

	box := quantizedBounds(b.PositionsCompressed, l.decode)
	id := l.addPortionRecord(f, box)
	return id, nil
}

func appendU32(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU16(dst []byte, v uint16) []byte {
	return append(dst, byte(v), byte(v>>8))
}

// PackFlags is an exported alias of Pack, used across layer kinds
// that build per-vertex flag data outside this package's internal
// helpers.
func PackFlags(f FlagState) PackedFlags { return Pack(f) }

func quantizedBounds(compressed []uint16, decode f32.Mat4) f32.Box3 {
	box := f32.EmptyBox3()
	for i := 0; i+2 < len(compressed); i += 3 {
		local := f32.Vec3{X: float32(compressed[i]), Y: float32(compressed[i+1]), Z: float32(compressed[i+2])}
		box = box.Extend(decode.MulPoint(local))
	}
	return box
}

// Finalize uploads the accumulated scratch data to GPU buffers,
// transitions to Finalized, and returns the scratch arena to its
// pool.
func (l *VBOBatched) Finalize() error {
	if err := l.requireBuilding(); err != nil {
		return err
	}
	if l.device != nil {
		buffers := []struct {
			dst    *driver.Buffer
			data   []byte
			target driver.BufferTarget
		}{
			{&l.positionsBuf, l.scratch.Positions, driver.TargetArrayBuffer},
			{&l.colorsBuf, l.scratch.Colors, driver.TargetArrayBuffer},
			{&l.flagsBuf, l.scratch.Flags, driver.TargetArrayBuffer},
			{&l.offsetsBuf, l.scratch.Offsets, driver.TargetArrayBuffer},
			{&l.indicesBuf, l.scratch.Indices, driver.TargetElementArrayBuffer},
			{&l.edgesBuf, l.scratch.Edges, driver.TargetElementArrayBuffer},
		}
		for _, b := range buffers {
			if len(b.data) == 0 {
				continue
			}
			buf, err := l.device.NewArrayBuffer(b.target, b.data, driver.UsageStatic)
			if err != nil {
				return err
			}
			*b.dst = buf
		}
	}
	l.pool.Put(l.scratch)
	l.scratch = nil
	l.state = StateFinalized
	return nil
}

// Destroy releases every GPU buffer owned by this layer.
func (l *VBOBatched) Destroy() {
	if l.state == StateDestroyed {
		return
	}
	for _, buf := range []driver.Buffer{l.positionsBuf, l.colorsBuf, l.flagsBuf, l.offsetsBuf, l.indicesBuf, l.edgesBuf} {
		if buf != nil {
			buf.Destroy()
		}
	}
	l.state = StateDestroyed
}

func (l *VBOBatched) SetFlags(id PortionID, f FlagState) error {
	if err := l.requireFinalized(); err != nil {
		return err
	}
	return l.setFlags(id, f)
}

// SetColor, SetOffset and SetMatrix are unsupported for batched
// layers: color/offset are baked per-vertex at build time and there
// is no per-portion transform to set.
func (l *VBOBatched) SetColor(id PortionID, rgb f32.Vec3, opacity float32) error {
	return errUnsupported("VBOBatched.SetColor")
}

func (l *VBOBatched) SetOffset(id PortionID, offset f32.Vec3) error {
	return errUnsupported("VBOBatched.SetOffset")
}

func (l *VBOBatched) SetMatrix(id PortionID, m f32.Mat4) error {
	return errUnsupported("VBOBatched.SetMatrix")
}
