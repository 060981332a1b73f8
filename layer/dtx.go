// SPDX-License-Identifier: Unlicense OR MIT

package layer

import (
	"sort"

	"scenepack.dev/driver"
	"scenepack.dev/f32"
	"scenepack.dev/internal/bucket"
)

// MaxTextureHeight bounds how many object rows a single DTX layer's
// attribute textures can grow to before a new layer must be opened.
const MaxTextureHeight = 4096

// colorsFlagsWidth is the texel width of the combined color+flags
// row: one RGBA8 texel for color, one for the packed flag word.
const colorsFlagsWidth = 2

// dtxGeomTextureWidth bounds the row width of a DTX layer's shared
// geometry textures (positions/indices/edges/portion-id lookup);
// rows beyond this width wrap into additional texture height rather
// than growing unbounded in one dimension.
const dtxGeomTextureWidth = 1024

// MaxDirectUpdatesPerTick is the number of direct texSubImage2D
// writes a DTX layer allows per tick before switching to coalesced
// deferred mode, since direct per-update uploads are prohibitively
// slow under massive update volume (culling/LOD sweeps).
const MaxDirectUpdatesPerTick = 10

// DTX stores per-object color, flags, and model matrix as texture
// rows rather than per-vertex/per-instance buffer attributes, so a
// huge number of small objects can share one draw call without
// hitting vertex-attribute-count or instance-count limits. Its
// drawable geometry — positions, indices, edge indices — is packed
// into a second family of shared textures indexed by primitive
// rather than by object, with a portion-id lookup texture mapping
// each primitive back to the object row that owns it. A bounded
// number of direct updates are applied immediately each tick; beyond
// that budget, writes are deferred and coalesced into one upload on
// the next tick.
type DTX struct {
	base

	device driver.Device
	packer *rowPacker

	colorsFlagsTex driver.Texture
	matricesTex    driver.Texture
	decodeTex      driver.Texture
	positionsTex   driver.Texture
	indicesTex     driver.Texture
	edgesTex       driver.Texture
	lookupTex      driver.Texture

	rows     []dtxRow
	decodes  []f32.Mat4
	baseAABB f32.Box3

	// Shared geometry accumulators: every CreatePortion call appends
	// its buckets' vertex/index/edge-index data here, offsetting
	// indices by the running vertex count, and records one portion id
	// per primitive into geomLookup/edgeLookup.
	geomPositions   []byte // u16x3 per vertex
	geomIndices     []byte // uint32 per index, 3 per triangle
	geomEdges       []byte // uint32 per index, 2 per edge
	geomLookup      []byte // uint32 portion id, one per triangle
	edgeLookup      []byte // uint32 portion id, one per edge
	numGeomVertices int

	deferredDirty  map[PortionID]bool
	deferredActive bool
	directWrites   int
}

type dtxRow struct {
	color  [4]uint8
	flags  PackedFlags
	matrix f32.Mat4
}

// NewDTX creates an empty DTX layer backed by device, capped at
// MaxTextureHeight object rows.
func NewDTX(id string, prim Primitive, device driver.Device, baseAABB f32.Box3) *DTX {
	return &DTX{
		base:          newBase(id, StrategyDTX, prim),
		device:        device,
		packer:        newRowPacker(MaxTextureHeight),
		baseAABB:      baseAABB,
		deferredDirty: make(map[PortionID]bool),
	}
}

// CanCreatePortion reports whether est.NumSubPortions rows (at least
// one) still fit under MaxTextureHeight. CreatePortion itself reserves
// a single row per object, however many buckets it is given; a
// multi-bucket object is not split into one row per bucket.
func (l *DTX) CanCreatePortion(est SizeEstimate) bool {
	if l.state != StateBuilding {
		return false
	}
	n := est.NumSubPortions
	if n <= 0 {
		n = 1
	}
	_, fits := l.peekAdd(n)
	return fits
}

func (l *DTX) peekAdd(n int) (int, bool) {
	if l.packer.used+n > l.packer.maxHeight {
		return 0, false
	}
	return l.packer.used, true
}

// CreatePortion adds one object row with the given placement, color,
// and initial flag state, and appends buckets' positions/indices/edge
// indices into this layer's shared geometry textures, recording the
// new portion's id as their owner in the portion-id lookup stream.
func (l *DTX) CreatePortion(buckets []bucket.Bucket, decode f32.Mat4, m f32.Mat4, rgba [4]uint8, f FlagState) (PortionID, error) {
	if err := l.requireBuilding(); err != nil {
		return 0, err
	}
	start, fits := l.packer.tryAdd(1)
	if !fits {
		return 0, ErrLayerFull
	}
	id := PortionID(start)

	for _, b := range buckets {
		base := uint32(l.numGeomVertices)
		numVerts := len(b.PositionsCompressed) / 3
		for i := 0; i < numVerts; i++ {
			l.geomPositions = appendU16(l.geomPositions, b.PositionsCompressed[i*3+0])
			l.geomPositions = appendU16(l.geomPositions, b.PositionsCompressed[i*3+1])
			l.geomPositions = appendU16(l.geomPositions, b.PositionsCompressed[i*3+2])
		}
		for i := 0; i+2 < len(b.Indices); i += 3 {
			l.geomIndices = appendU32(l.geomIndices, b.Indices[i+0]+base)
			l.geomIndices = appendU32(l.geomIndices, b.Indices[i+1]+base)
			l.geomIndices = appendU32(l.geomIndices, b.Indices[i+2]+base)
			l.geomLookup = appendU32(l.geomLookup, uint32(id))
		}
		for _, idx := range b.EdgeIndices {
			l.geomEdges = appendU32(l.geomEdges, idx+base)
		}
		for i := 0; i+1 < len(b.EdgeIndices); i += 2 {
			l.edgeLookup = appendU32(l.edgeLookup, uint32(id))
		}
		l.numGeomVertices += numVerts
	}

	row := dtxRow{color: rgba, flags: Pack(f), matrix: m}
	l.rows = append(l.rows, row)
	l.decodes = append(l.decodes, decode)
	box := f32.TransformBox3(m, l.baseAABB)
	got := l.addPortionRecord(f, box)
	if got != id {
		panic("layer: dtx row/portion index mismatch")
	}
	return id, nil
}

// Finalize allocates and uploads the initial attribute and geometry
// textures.
func (l *DTX) Finalize() error {
	if err := l.requireBuilding(); err != nil {
		return err
	}
	height := l.packer.height()
	if l.device != nil && height > 0 {
		cf, err := l.device.NewTexture2D(driver.TextureOptions{Width: colorsFlagsWidth, Height: height})
		if err != nil {
			return err
		}
		cf.SetImage(l.encodeColorsFlags(), colorsFlagsWidth*4)
		l.colorsFlagsTex = cf

		mt, err := l.device.NewTexture2D(driver.TextureOptions{Width: 4, Height: height})
		if err != nil {
			return err
		}
		mt.SetImage(l.encodeMatrices(), 4*4*4)
		l.matricesTex = mt

		dt, err := l.device.NewTexture2D(driver.TextureOptions{Width: 4, Height: height})
		if err != nil {
			return err
		}
		dt.SetImage(l.encodeDecodes(), 4*4*4)
		l.decodeTex = dt

		if t, err := l.buildPackedTexture(l.geomPositions, 6); err != nil {
			return err
		} else {
			l.positionsTex = t
		}
		if t, err := l.buildPackedTexture(l.geomIndices, 4); err != nil {
			return err
		} else {
			l.indicesTex = t
		}
		if t, err := l.buildPackedTexture(l.geomEdges, 4); err != nil {
			return err
		} else {
			l.edgesTex = t
		}
		if t, err := l.buildPackedTexture(l.geomLookup, 4); err != nil {
			return err
		} else {
			l.lookupTex = t
		}
	}
	l.state = StateFinalized
	return nil
}

// buildPackedTexture uploads data, whose elements are stride bytes
// wide, into a texture whose row width is bounded by
// dtxGeomTextureWidth, padding the final row with zeros so the pixel
// buffer exactly matches width*height*stride. Returns a nil texture
// (and nil error) for empty data, since edge indices are legitimately
// absent for non-triangle-like primitives.
func (l *DTX) buildPackedTexture(data []byte, stride int) (driver.Texture, error) {
	if len(data) == 0 || l.device == nil {
		return nil, nil
	}
	count := len(data) / stride
	w, h := packedTextureSize(count, dtxGeomTextureWidth)
	padded := data
	if need := w*h*stride - len(data); need > 0 {
		padded = append(append([]byte(nil), data...), make([]byte, need)...)
	}
	tex, err := l.device.NewTexture2D(driver.TextureOptions{Width: w, Height: h})
	if err != nil {
		return nil, err
	}
	tex.SetImage(padded, w*stride)
	return tex, nil
}

func packedTextureSize(count, width int) (w, h int) {
	if count <= 0 {
		return width, 1
	}
	if count < width {
		return count, 1
	}
	return width, (count + width - 1) / width
}

func (l *DTX) encodeColorsFlags() []byte {
	out := make([]byte, 0, len(l.rows)*colorsFlagsWidth*4)
	for _, r := range l.rows {
		out = append(out, r.color[:]...)
		out = appendU32(out, uint32(r.flags))
	}
	return out
}

func (l *DTX) encodeMatrices() []byte {
	out := make([]byte, 0, len(l.rows)*4*4*4)
	for _, r := range l.rows {
		for _, c := range r.matrix {
			out = appendF32(out, c)
		}
	}
	return out
}

func (l *DTX) encodeDecodes() []byte {
	out := make([]byte, 0, len(l.decodes)*4*4*4)
	for _, d := range l.decodes {
		for _, c := range d {
			out = appendF32(out, c)
		}
	}
	return out
}

func (l *DTX) Destroy() {
	if l.state == StateDestroyed {
		return
	}
	for _, tex := range []driver.Texture{l.colorsFlagsTex, l.matricesTex, l.decodeTex, l.positionsTex, l.indicesTex, l.edgesTex, l.lookupTex} {
		if tex != nil {
			tex.Destroy()
		}
	}
	l.state = StateDestroyed
}

// applyUpdate routes one dirty row either to an immediate texture
// write or, once this tick's direct-write budget is spent, into the
// coalesced deferred set flushed by FlushDeferred.
func (l *DTX) applyUpdate(id PortionID) {
	if !l.deferredActive && l.directWrites < MaxDirectUpdatesPerTick {
		l.directWrites++
		if l.colorsFlagsTex != nil {
			l.colorsFlagsTex.SetSubImage2D(0, 0, int(id), colorsFlagsWidth, 1, l.encodeColorsFlagsRange(int(id), 1))
		}
		if l.matricesTex != nil {
			l.matricesTex.SetSubImage2D(0, 0, int(id), 4, 1, l.encodeMatricesRange(int(id), 1))
		}
		return
	}
	l.deferredDirty[id] = true
	l.deferredActive = true
}

// SetFlags updates a portion's flag state, applying it directly while
// this tick's direct-write budget allows, or enqueuing it for a
// deferred texture write once that budget is spent.
func (l *DTX) SetFlags(id PortionID, f FlagState) error {
	if err := l.requireFinalized(); err != nil {
		return err
	}
	if int(id) >= len(l.rows) {
		return ErrUnknownPortion
	}
	if err := l.setFlags(id, f); err != nil {
		return err
	}
	packed := Pack(f)
	if l.rows[id].flags == packed {
		return nil
	}
	l.rows[id].flags = packed
	l.applyUpdate(id)
	return nil
}

func (l *DTX) SetColor(id PortionID, rgb f32.Vec3, opacity float32) error {
	if err := l.requireFinalized(); err != nil {
		return err
	}
	if int(id) >= len(l.rows) {
		return ErrUnknownPortion
	}
	l.rows[id].color = [4]uint8{
		uint8(clamp01(rgb.X) * 255),
		uint8(clamp01(rgb.Y) * 255),
		uint8(clamp01(rgb.Z) * 255),
		uint8(clamp01(opacity) * 255),
	}
	l.applyUpdate(id)
	return nil
}

func (l *DTX) SetOffset(id PortionID, offset f32.Vec3) error {
	return errUnsupported("DTX.SetOffset")
}

func (l *DTX) SetMatrix(id PortionID, m f32.Mat4) error {
	if err := l.requireFinalized(); err != nil {
		return err
	}
	if int(id) >= len(l.rows) {
		return ErrUnknownPortion
	}
	l.rows[id].matrix = m
	l.portionAABBs[id] = f32.TransformBox3(m, l.baseAABB)
	l.aabbDirty = true
	l.applyUpdate(id)
	return nil
}

// HasDeferredWrites reports whether any portion's texture row is
// waiting on a flush.
func (l *DTX) HasDeferredWrites() bool { return l.deferredActive }

// Tick resets this layer's per-frame direct-write budget and flushes
// up to maxDeferredRows dirty rows, if deferred mode was engaged.
// Call once per render tick.
func (l *DTX) Tick(maxDeferredRows int) int {
	n := l.FlushDeferred(maxDeferredRows)
	l.directWrites = 0
	return n
}

// FlushDeferred uploads up to maxRows dirty rows, coalescing
// contiguous runs of dirty ids into single SetSubImage2D calls, and
// returns how many rows it wrote. Call repeatedly with a per-frame
// budget until it returns 0 to drain a large backlog without
// stalling any one frame.
func (l *DTX) FlushDeferred(maxRows int) int {
	if !l.deferredActive || maxRows <= 0 {
		return 0
	}
	ids := make([]int, 0, len(l.deferredDirty))
	for id := range l.deferredDirty {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	written := 0
	i := 0
	for i < len(ids) && written < maxRows {
		runStart := ids[i]
		runEnd := runStart
		j := i + 1
		for j < len(ids) && ids[j] == runEnd+1 && written+(runEnd-runStart+1) < maxRows {
			runEnd = ids[j]
			j++
		}
		n := runEnd - runStart + 1

		if l.colorsFlagsTex != nil {
			l.colorsFlagsTex.SetSubImage2D(0, 0, runStart, colorsFlagsWidth, n, l.encodeColorsFlagsRange(runStart, n))
		}
		if l.matricesTex != nil {
			l.matricesTex.SetSubImage2D(0, 0, runStart, 4, n, l.encodeMatricesRange(runStart, n))
		}
		for r := runStart; r <= runEnd; r++ {
			delete(l.deferredDirty, PortionID(r))
		}
		written += n
		i = j
	}
	if len(l.deferredDirty) == 0 {
		l.deferredActive = false
	}
	return written
}

func (l *DTX) encodeColorsFlagsRange(start, n int) []byte {
	out := make([]byte, 0, n*colorsFlagsWidth*4)
	for _, r := range l.rows[start : start+n] {
		out = append(out, r.color[:]...)
		out = appendU32(out, uint32(r.flags))
	}
	return out
}

func (l *DTX) encodeMatricesRange(start, n int) []byte {
	out := make([]byte, 0, n*4*4*4)
	for _, r := range l.rows[start : start+n] {
		for _, c := range r.matrix {
			out = appendF32(out, c)
		}
	}
	return out
}
