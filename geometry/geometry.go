// SPDX-License-Identifier: Unlicense OR MIT

// Package geometry implements the Geometry Registry:
// immutable, reusable geometry descriptors keyed by id, with the
// validation rules and auto-derivations (identity indices, edge
// indices via crease angle, color quantization) the authoring API
// requires.
package geometry

import (
	"errors"
	"fmt"

	"scenepack.dev/f32"
	"scenepack.dev/internal/quant"
)

// Primitive is the kind of geometry stored.
type Primitive uint8

const (
	Points Primitive = iota
	Lines
	Triangles
	Solid
	Surface
)

func (p Primitive) String() string {
	switch p {
	case Points:
		return "points"
	case Lines:
		return "lines"
	case Triangles:
		return "triangles"
	case Solid:
		return "solid"
	case Surface:
		return "surface"
	default:
		return "unknown"
	}
}

// IsTriangleLike reports whether p renders as triangles. "solid"
// implies watertight (culling policy); "surface" is open; both
// render as triangles.
func (p Primitive) IsTriangleLike() bool {
	return p == Triangles || p == Solid || p == Surface
}

func (p Primitive) valid() bool {
	switch p {
	case Points, Lines, Triangles, Solid, Surface:
		return true
	}
	return false
}

// Sentinel errors for invariant-violation failures.
var (
	ErrDuplicateID        = errors.New("geometry: duplicate id")
	ErrUnknownPrimitive   = errors.New("geometry: unsupported primitive")
	ErrEmptyPositions     = errors.New("geometry: zero vertices")
	ErrMissingIndices     = errors.New("geometry: indices required for non-point primitive")
	ErrDecodeAmbiguous    = errors.New("geometry: positions_compressed requires exactly one of decode_matrix or decode_boundary")
	ErrDecodeMissing      = errors.New("geometry: positions_compressed requires a decode matrix or boundary")
	ErrUVDecodeMissing    = errors.New("geometry: uv_compressed requires uv_decode_matrix")
	ErrPositionsAmbiguous = errors.New("geometry: specify either positions or positions_compressed, not both")
)

// DefaultCreaseAngleDeg is the registry's default crease-angle
// threshold for auto-computed edge indices.
const DefaultCreaseAngleDeg = 10.0

// Geometry is an immutable, reusable geometry descriptor.
type Geometry struct {
	ID                  string
	Primitive           Primitive
	PositionsCompressed []uint16 // 3 components per vertex
	DecodeMatrix        f32.Mat4
	Indices             []uint32 // nil only for points
	EdgeIndices         []uint32 // non-nil only for triangle-like
	UVCompressed        []uint16 // 2 components per vertex, optional
	UVDecodeMatrix      [9]float32
	HasUV               bool
	ColorsCompressed    [][4]uint8 // optional, one per vertex
	AABB                f32.Box3
}

// NumVertices returns the vertex count implied by PositionsCompressed.
func (g *Geometry) NumVertices() int {
	return len(g.PositionsCompressed) / 3
}

// Config is the authoring-time parameter set for Registry.Create,
// mirroring the create_geometry(cfg) operation.
type Config struct {
	ID        string
	Primitive Primitive

	// Exactly one of Positions/PositionsCompressed should be given.
	Positions           []float32 // 3 components per vertex, float
	PositionsCompressed []uint16  // 3 components per vertex, pre-quantized
	DecodeMatrix        *f32.Mat4
	DecodeBoundary      *f32.Box3

	Indices []uint32

	Normals []float32 // unused by the compressed storage model; informational only

	UV             []float32 // 2 components per vertex, float
	UVCompressed   []uint16
	UVDecodeMatrix *[9]float32

	Colors           []float32 // RGBA per vertex, float in [0,1]
	ColorsCompressed [][4]uint8

	EdgeIndices    []uint32 // if nil and primitive is triangle-like, auto-computed
	CreaseAngleDeg float32  // 0 means "use the registry default"
}

// Registry maps geometry_id -> Geometry. It is the
// authoritative catalog during authoring and is released when the
// owning SceneModel finalizes.
type Registry struct {
	geoms             map[string]*Geometry
	defaultCreaseDeg  float32
}

// NewRegistry creates an empty registry. defaultCreaseAngleDeg of 0
// selects DefaultCreaseAngleDeg.
func NewRegistry(defaultCreaseAngleDeg float32) *Registry {
	if defaultCreaseAngleDeg == 0 {
		defaultCreaseAngleDeg = DefaultCreaseAngleDeg
	}
	return &Registry{
		geoms:            make(map[string]*Geometry),
		defaultCreaseDeg: defaultCreaseAngleDeg,
	}
}

// Create validates cfg and registers a new Geometry under cfg.ID.
func (r *Registry) Create(cfg Config) (*Geometry, error) {
	if _, exists := r.geoms[cfg.ID]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, cfg.ID)
	}
	if !cfg.Primitive.valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPrimitive, cfg.Primitive)
	}
	if len(cfg.Positions) > 0 && len(cfg.PositionsCompressed) > 0 {
		return nil, ErrPositionsAmbiguous
	}

	var quantized []uint16
	var decode f32.Mat4
	var aabb f32.Box3
	switch {
	case len(cfg.Positions) > 0:
		res := quant.QuantizePositions(cfg.Positions)
		quantized, decode, aabb = res.Quantized, res.Decode, res.AABB
	case len(cfg.PositionsCompressed) > 0:
		hasMatrix := cfg.DecodeMatrix != nil
		hasBoundary := cfg.DecodeBoundary != nil
		if hasMatrix == hasBoundary {
			// Either both given (ambiguous) or neither (missing).
			if hasMatrix {
				return nil, ErrDecodeAmbiguous
			}
			return nil, ErrDecodeMissing
		}
		quantized = cfg.PositionsCompressed
		if hasMatrix {
			decode = *cfg.DecodeMatrix
		} else {
			decode = decodeMatrixFromBoundary(*cfg.DecodeBoundary)
			aabb = *cfg.DecodeBoundary
		}
	default:
		return nil, ErrEmptyPositions
	}
	if len(quantized)/3 == 0 {
		return nil, ErrEmptyPositions
	}

	indices := cfg.Indices
	if cfg.Primitive != Points && len(indices) == 0 {
		indices = identityIndices(len(quantized) / 3)
	}
	if cfg.Primitive != Points && len(indices) == 0 {
		return nil, ErrMissingIndices
	}

	var uvCompressed []uint16
	var uvDecode [9]float32
	hasUV := false
	switch {
	case len(cfg.UV) > 0:
		res := quant.EncodeUV(cfg.UV)
		uvCompressed, uvDecode, hasUV = res.Quantized, res.Decode, true
	case len(cfg.UVCompressed) > 0:
		if cfg.UVDecodeMatrix == nil {
			return nil, ErrUVDecodeMissing
		}
		uvCompressed, uvDecode, hasUV = cfg.UVCompressed, *cfg.UVDecodeMatrix, true
	}

	var colorsCompressed [][4]uint8
	switch {
	case len(cfg.ColorsCompressed) > 0:
		colorsCompressed = cfg.ColorsCompressed
	case len(cfg.Colors) > 0:
		n := len(cfg.Colors) / 4
		colorsCompressed = make([][4]uint8, n)
		for i := 0; i < n; i++ {
			rgb := f32.Vec3{X: cfg.Colors[i*4+0], Y: cfg.Colors[i*4+1], Z: cfg.Colors[i*4+2]}
			colorsCompressed[i] = quant.EncodeColor(rgb, cfg.Colors[i*4+3])
		}
	}

	edgeIndices := cfg.EdgeIndices
	if len(edgeIndices) == 0 && cfg.Primitive.IsTriangleLike() {
		crease := cfg.CreaseAngleDeg
		if crease == 0 {
			crease = r.defaultCreaseDeg
		}
		edgeIndices = ComputeEdgeIndices(indices, quantized, decode, crease)
	}

	if aabb.Empty() {
		aabb = boundsOfQuantized(quantized, decode)
	}

	g := &Geometry{
		ID:                  cfg.ID,
		Primitive:           cfg.Primitive,
		PositionsCompressed: quantized,
		DecodeMatrix:        decode,
		Indices:             indices,
		EdgeIndices:         edgeIndices,
		UVCompressed:        uvCompressed,
		UVDecodeMatrix:      uvDecode,
		HasUV:               hasUV,
		ColorsCompressed:    colorsCompressed,
		AABB:                aabb,
	}
	r.geoms[cfg.ID] = g
	return g, nil
}

// Get returns the geometry registered under id.
func (r *Registry) Get(id string) (*Geometry, bool) {
	g, ok := r.geoms[id]
	return g, ok
}

// Len returns the number of registered geometries.
func (r *Registry) Len() int {
	return len(r.geoms)
}

// Release drops the catalog. The owning model calls this once
// finalized, since geometry is only needed during authoring.
func (r *Registry) Release() {
	r.geoms = nil
}

func identityIndices(n int) []uint32 {
	idx := make([]uint32, n)
	for i := range idx {
		idx[i] = uint32(i)
	}
	return idx
}

func decodeMatrixFromBoundary(b f32.Box3) f32.Mat4 {
	extent := b.Extent()
	scale := f32.Vec3{
		X: safeDiv(extent.X),
		Y: safeDiv(extent.Y),
		Z: safeDiv(extent.Z),
	}
	return f32.Translate4(b.Min).Mul(f32.Scale4(scale))
}

func safeDiv(extent float32) float32 {
	if extent == 0 {
		return 0
	}
	return extent / 65535
}

func boundsOfQuantized(q []uint16, decode f32.Mat4) f32.Box3 {
	box := f32.EmptyBox3()
	n := len(q) / 3
	for i := 0; i < n; i++ {
		p := quant.Decompress(decode, [3]uint16{q[i*3+0], q[i*3+1], q[i*3+2]})
		box = box.Extend(p)
	}
	return box
}
