// SPDX-License-Identifier: Unlicense OR MIT

// Package layer implements the three storage strategies that back a
// renderable layer (VBOBatched, VBOInstanced, DTX), each usable with
// triangles, lines, or points, sharing one portion-level contract
// (LayerOps) and one lifecycle state machine
// (Building -> Finalized -> Destroyed).
//
// Every strategy is dispatched through a capability-set trait rather
// than duck typing, and per-portion render state is stored as a
// packed uint32 rather than packed floats (see flags.go).
package layer

import (
	"errors"
	"fmt"

	"scenepack.dev/f32"
	"scenepack.dev/geometry"
)

func errUnsupported(op string) error {
	return fmt.Errorf("layer: %s not supported by this strategy", op)
}

// Strategy is the storage-representation tag: batched vertex buffers,
// instanced vertex buffers, or data-texture (DTX) encoding.
type Strategy uint8

const (
	StrategyVBOBatched Strategy = iota
	StrategyVBOInstanced
	StrategyDTX
)

func (s Strategy) String() string {
	switch s {
	case StrategyVBOBatched:
		return "vbo-batched"
	case StrategyVBOInstanced:
		return "vbo-instanced"
	case StrategyDTX:
		return "dtx"
	default:
		return "unknown"
	}
}

// Primitive is the layer-family primitive grouping: triangles, lines,
// or points. Both "solid" and "surface" geometries render as
// layer-family triangles.
type Primitive uint8

const (
	Triangles Primitive = iota
	Lines
	Points
)

// PrimitiveOf maps a geometry.Primitive onto its layer-family group.
func PrimitiveOf(p geometry.Primitive) Primitive {
	switch p {
	case geometry.Lines:
		return Lines
	case geometry.Points:
		return Points
	default:
		return Triangles
	}
}

// State is a layer's lifecycle state.
type State uint8

const (
	StateBuilding State = iota
	StateFinalized
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateFinalized:
		return "finalized"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Sentinel errors for the layer lifecycle and capacity contracts.
var (
	ErrNotBuilding      = errors.New("layer: operation requires the Building state")
	ErrAlreadyFinalized = errors.New("layer: already finalized")
	ErrNotFinalized     = errors.New("layer: not finalized")
	ErrUnknownPortion   = errors.New("layer: unknown portion id")
	ErrLayerFull        = errors.New("layer: capacity exceeded")
	ErrDestroyed        = errors.New("layer: destroyed")
)

// PortionID is a dense, stable index identifying one portion within
// a layer.
type PortionID uint32

// SizeEstimate describes the resource cost of the portion a caller
// wants to add, used by CanCreatePortion to decide whether it still
// fits before any buffer is touched.
type SizeEstimate struct {
	NumVertices     int
	NumIndices      int
	NumEdgeIndices  int
	NumSubPortions  int // DTX: number of buckets this mesh expands into
}

// LayerOps is the capability-set trait every layer strategy
// implements.
type LayerOps interface {
	Strategy() Strategy
	Primitive() Primitive
	State() State
	SortID() string

	CanCreatePortion(est SizeEstimate) bool
	Finalize() error
	Destroy()

	SetFlags(id PortionID, f FlagState) error
	SetColor(id PortionID, rgb f32.Vec3, opacity float32) error
	SetOffset(id PortionID, offset f32.Vec3) error
	SetMatrix(id PortionID, m f32.Mat4) error

	Counters() AggregateCounters
	NumPortions() int
	AABB() f32.Box3
}

// base holds the fields and state-machine/counter bookkeeping common
// to every strategy; each concrete layer type embeds it.
type base struct {
	id         string
	strategy   Strategy
	primitive  Primitive
	state      State
	counters   AggregateCounters
	aabbDirty  bool
	aabb       f32.Box3
	portionAABBs []f32.Box3
	portionFlags []FlagState
}

func newBase(id string, strategy Strategy, primitive Primitive) base {
	return base{id: id, strategy: strategy, primitive: primitive, aabb: f32.EmptyBox3()}
}

func (b *base) Strategy() Strategy { return b.strategy }
func (b *base) Primitive() Primitive { return b.primitive }
func (b *base) State() State { return b.state }
func (b *base) SortID() string { return b.id }
func (b *base) Counters() AggregateCounters { return b.counters }
func (b *base) NumPortions() int { return b.counters.NumPortions() }

func (b *base) requireBuilding() error {
	switch b.state {
	case StateBuilding:
		return nil
	case StateDestroyed:
		return ErrDestroyed
	default:
		return fmt.Errorf("%w: state is %v", ErrNotBuilding, b.state)
	}
}

func (b *base) requireFinalized() error {
	switch b.state {
	case StateFinalized:
		return nil
	case StateDestroyed:
		return ErrDestroyed
	default:
		return fmt.Errorf("%w: state is %v", ErrNotFinalized, b.state)
	}
}

func (b *base) addPortionRecord(f FlagState, aabb f32.Box3) PortionID {
	id := PortionID(len(b.portionFlags))
	b.portionFlags = append(b.portionFlags, f)
	b.portionAABBs = append(b.portionAABBs, aabb)
	b.counters.AddPortion(f)
	b.aabbDirty = true
	return id
}

func (b *base) setFlags(id PortionID, f FlagState) error {
	if int(id) >= len(b.portionFlags) {
		return ErrUnknownPortion
	}
	was := b.portionFlags[id]
	if was == f {
		return nil // no-op transition: zero GPU writes
	}
	b.portionFlags[id] = f
	b.counters.Apply(was, f)
	return nil
}

// AABB lazily unions portion AABBs, clearing aabbDirty on compute and
// re-setting it on any mesh-AABB change.
func (b *base) AABB() f32.Box3 {
	if b.aabbDirty {
		box := f32.EmptyBox3()
		for _, a := range b.portionAABBs {
			box = box.Union(a)
		}
		b.aabb = box
		b.aabbDirty = false
	}
	return b.aabb
}
