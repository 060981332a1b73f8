// SPDX-License-Identifier: Unlicense OR MIT

// Package entity implements the Entity Facade: a named group of
// meshes sharing one visibility/selection/emphasis flag bitmask, one
// world-space offset, and one lazily unioned AABB, with idempotent
// setters that fan changes out to each mesh's owning layer.
package entity

import (
	"errors"
	"fmt"

	"scenepack.dev/f32"
	"scenepack.dev/layer"
)

// Flag is one bit of an Entity's authoritative flags bitmask.
type Flag uint32

const (
	Visible Flag = 1 << iota
	Culled
	Pickable
	Clippable
	Collidable
	Edges
	Xrayed
	Highlighted
	Selected
)

// Mesh is the subset of a scene model's mesh record an entity needs
// to fan flag/color/offset changes out to the right layer portion.
type Mesh struct {
	Layer     layer.LayerOps
	PortionID layer.PortionID
	AABB      f32.Box3 // mesh AABB in the entity's local space
}

// Observer receives notifications of entity-level state changes, the
// hook a scene-level observable set (visible/xrayed/...) registers
// through.
type Observer interface {
	VisibilityUpdated(id string, visible bool)
	XrayedUpdated(id string, xrayed bool)
	HighlightedUpdated(id string, highlighted bool)
	SelectedUpdated(id string, selected bool)
}

// Entity groups one or more meshes under one id and one flags
// bitmask.
type Entity struct {
	id               string
	originalSystemID string
	isObject         bool
	meshes           []Mesh
	flags            Flag
	offset           f32.Vec3
	observer         Observer

	// External culling inputs combined by disjunction with the
	// explicit Culled flag to produce the value fanned out to layers.
	vfcCulled      bool
	lodCullable    bool
	lodCulled      bool

	aabbDirty bool
	aabb      f32.Box3
}

var ErrNoMeshes = errors.New("entity: at least one mesh is required")

// Config is the authoring-time parameter set for New.
type Config struct {
	ID       string
	ModelID  string // stripped from ID to derive OriginalSystemID
	Meshes   []Mesh
	IsObject bool
	Initial  Flag // initial flag overrides; VISIBLE is implied if unset
}

// New creates an entity over cfg.Meshes, which must be non-empty.
func New(cfg Config) (*Entity, error) {
	if len(cfg.Meshes) == 0 {
		return nil, ErrNoMeshes
	}
	flags := cfg.Initial
	if flags == 0 {
		flags = Visible
	}
	e := &Entity{
		id:               cfg.ID,
		originalSystemID: stripModelPrefix(cfg.ID, cfg.ModelID),
		isObject:         cfg.IsObject,
		meshes:           cfg.Meshes,
		flags:            flags,
		aabbDirty:        true,
	}
	return e, nil
}

// stripModelPrefix derives originalSystemId from a globalized id by
// removing the owning model's id prefix, e.g. "model1#part7" with
// modelID "model1" yields "part7".
func stripModelPrefix(id, modelID string) string {
	prefix := modelID + "#"
	if len(id) > len(prefix) && id[:len(prefix)] == prefix {
		return id[len(prefix):]
	}
	return id
}

func (e *Entity) ID() string               { return e.id }
func (e *Entity) OriginalSystemID() string { return e.originalSystemID }
func (e *Entity) IsObject() bool           { return e.isObject }
func (e *Entity) Flags() Flag              { return e.flags }
func (e *Entity) Offset() f32.Vec3         { return e.offset }

func (e *Entity) has(f Flag) bool { return e.flags&f != 0 }

// Culled is the three-source disjunction: explicit CULLED, view-frustum
// culling, and LOD-driven culling (only contributes when the entity
// is LOD-cullable).
func (e *Entity) Culled() bool {
	return e.has(Culled) || e.vfcCulled || (e.lodCullable && e.lodCulled)
}

func (e *Entity) flagState() layer.FlagState {
	return layer.FlagState{
		Visible:     e.has(Visible),
		Culled:      e.Culled(),
		Pickable:    e.has(Pickable),
		Clippable:   e.has(Clippable),
		Edges:       e.has(Edges),
		Xrayed:      e.has(Xrayed),
		Highlighted: e.has(Highlighted),
		Selected:    e.has(Selected),
	}
}

// setFlag toggles bit f to on, no-ops if already in that state, fans
// the change out to every mesh's layer, and notifies obs via notify
// when it changed.
func (e *Entity) setFlag(f Flag, on bool, notify func(Observer)) error {
	was := e.has(f)
	if was == on {
		return nil
	}
	if on {
		e.flags |= f
	} else {
		e.flags &^= f
	}
	if err := e.fanOutFlags(); err != nil {
		return err
	}
	if e.observer != nil && notify != nil {
		notify(e.observer)
	}
	return nil
}

func (e *Entity) fanOutFlags() error {
	fs := e.flagState()
	for _, m := range e.meshes {
		if err := m.Layer.SetFlags(m.PortionID, fs); err != nil {
			return fmt.Errorf("entity %s: %w", e.id, err)
		}
	}
	return nil
}

// SetVisible sets the VISIBLE flag.
func (e *Entity) SetVisible(v bool) error {
	return e.setFlag(Visible, v, func(o Observer) { o.VisibilityUpdated(e.id, v) })
}

// SetCulled sets the explicit CULLED flag (one of three disjunction
// sources; see Culled).
func (e *Entity) SetCulled(v bool) error { return e.setFlag(Culled, v, nil) }

// SetViewFrustumCulled sets the VFC-driven culling source.
func (e *Entity) SetViewFrustumCulled(v bool) error {
	if e.vfcCulled == v {
		return nil
	}
	e.vfcCulled = v
	return e.fanOutFlags()
}

// SetLODCullable marks whether LOD-driven culling applies to this
// entity at all.
func (e *Entity) SetLODCullable(v bool) error {
	if e.lodCullable == v {
		return nil
	}
	e.lodCullable = v
	return e.fanOutFlags()
}

// SetLODCulled sets the LOD-driven culling source.
func (e *Entity) SetLODCulled(v bool) error {
	if e.lodCulled == v {
		return nil
	}
	e.lodCulled = v
	return e.fanOutFlags()
}

func (e *Entity) SetPickable(v bool) error  { return e.setFlag(Pickable, v, nil) }
func (e *Entity) SetClippable(v bool) error { return e.setFlag(Clippable, v, nil) }
func (e *Entity) SetCollidable(v bool) error { return e.setFlag(Collidable, v, nil) }
func (e *Entity) SetEdges(v bool) error     { return e.setFlag(Edges, v, nil) }

func (e *Entity) SetXrayed(v bool) error {
	return e.setFlag(Xrayed, v, func(o Observer) { o.XrayedUpdated(e.id, v) })
}

func (e *Entity) SetHighlighted(v bool) error {
	return e.setFlag(Highlighted, v, func(o Observer) { o.HighlightedUpdated(e.id, v) })
}

func (e *Entity) SetSelected(v bool) error {
	return e.setFlag(Selected, v, func(o Observer) { o.SelectedUpdated(e.id, v) })
}

// SetOffset updates the entity's world-space offset and fans it out
// to every mesh's layer.
func (e *Entity) SetOffset(offset f32.Vec3) error {
	e.offset = offset
	e.aabbDirty = true
	for _, m := range e.meshes {
		if err := m.Layer.SetOffset(m.PortionID, offset); err != nil {
			return fmt.Errorf("entity %s: %w", e.id, err)
		}
	}
	return nil
}

// SetObserver registers obs to receive flag-change notifications.
func (e *Entity) SetObserver(obs Observer) { e.observer = obs }

// AABB returns the union of the entity's meshes' AABBs, offset by the
// entity's offset, recomputing lazily.
func (e *Entity) AABB() f32.Box3 {
	if e.aabbDirty {
		box := f32.EmptyBox3()
		for _, m := range e.meshes {
			box = box.Union(m.AABB)
		}
		box = box.Add(e.offset)
		e.aabb = box
		e.aabbDirty = false
	}
	return e.aabb
}

// Register applies this entity's current flag state to every mesh's
// layer, the broadcast half of the two-phase pre_finalize contract
// (the registration half is scene-level observable-set membership,
// driven by the scene model calling SetObserver + the relevant
// SetVisible/SetXrayed/... once up front).
func (e *Entity) Register() error {
	return e.fanOutFlags()
}
