// SPDX-License-Identifier: Unlicense OR MIT

// Package transform implements the transform forest: nodes carrying
// position/rotation/scale (kept bidirectionally consistent with a
// quaternion) or a direct matrix override, with a parent-child
// hierarchy and lazily recomputed world matrices.
package transform

import (
	"errors"
	"fmt"

	"scenepack.dev/f32"
)

var (
	ErrDuplicateID    = errors.New("transform: duplicate id")
	ErrUnknownParent  = errors.New("transform: unknown parent id")
	ErrConflictingCfg = errors.New("transform: matrix cannot be combined with position/rotation/scale/quaternion")
)

// Transform is one node of the forest.
type Transform struct {
	id       string
	parent   *Transform
	children []*Transform

	position f32.Vec3
	quat     f32.Quat
	rotation f32.EulerXYZ
	scale    f32.Vec3

	localMatrix    f32.Mat4
	worldMatrix    f32.Mat4
	localDirty     bool
	worldDirty     bool
	matrixOverride bool
}

// ID returns the transform's id.
func (t *Transform) ID() string { return t.id }

// Parent returns the parent transform, or nil at the forest root.
func (t *Transform) Parent() *Transform { return t.parent }

// Children returns the direct children of t.
func (t *Transform) Children() []*Transform { return t.children }

func newNode(id string, parent *Transform) *Transform {
	return &Transform{
		id:         id,
		parent:     parent,
		scale:      f32.Vec3{X: 1, Y: 1, Z: 1},
		quat:       f32.IdentityQuat(),
		localDirty: true,
		worldDirty: true,
	}
}

// Config is the authoring-time parameter set for Registry.Create.
// Exactly one of Matrix or {Position, Rotation, Quaternion, Scale}
// may be used; Rotation and Quaternion are mutually exclusive (each
// fully determines the other).
type Config struct {
	ID       string
	ParentID string

	Position   *f32.Vec3
	Rotation   *f32.EulerXYZ
	Quaternion *f32.Quat
	Scale      *f32.Vec3
	Matrix     *f32.Mat4
}

// Registry owns the id -> *Transform forest for one scene model.
type Registry struct {
	nodes map[string]*Transform
}

// NewRegistry creates an empty transform registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*Transform)}
}

// Create validates cfg and registers a new Transform under cfg.ID.
func (r *Registry) Create(cfg Config) (*Transform, error) {
	if _, exists := r.nodes[cfg.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, cfg.ID)
	}
	if cfg.Matrix != nil && (cfg.Position != nil || cfg.Rotation != nil || cfg.Quaternion != nil || cfg.Scale != nil) {
		return nil, ErrConflictingCfg
	}
	if cfg.Rotation != nil && cfg.Quaternion != nil {
		return nil, ErrConflictingCfg
	}

	var parent *Transform
	if cfg.ParentID != "" {
		p, ok := r.nodes[cfg.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParent, cfg.ParentID)
		}
		parent = p
	}

	t := newNode(cfg.ID, parent)

	switch {
	case cfg.Matrix != nil:
		t.setMatrixOverride(*cfg.Matrix)
	default:
		if cfg.Position != nil {
			t.position = *cfg.Position
		}
		if cfg.Scale != nil {
			t.scale = *cfg.Scale
		}
		switch {
		case cfg.Quaternion != nil:
			t.setQuaternionLocked(*cfg.Quaternion)
		case cfg.Rotation != nil:
			t.setRotationLocked(*cfg.Rotation)
		}
	}

	if parent != nil {
		parent.children = append(parent.children, t)
	}
	r.nodes[cfg.ID] = t
	return t, nil
}

// Get returns the transform registered under id.
func (r *Registry) Get(id string) (*Transform, bool) {
	t, ok := r.nodes[id]
	return t, ok
}

// Len returns the number of registered transforms.
func (r *Registry) Len() int { return len(r.nodes) }

// SetPosition updates t's local translation.
func (t *Transform) SetPosition(p f32.Vec3) {
	t.position = p
	t.matrixOverride = false
	t.localDirty = true
	t.markWorldDirty()
}

// SetRotationEuler updates t's rotation, recomputing its quaternion to
// match.
func (t *Transform) SetRotationEuler(e f32.EulerXYZ) {
	t.setRotationLocked(e)
	t.matrixOverride = false
	t.localDirty = true
	t.markWorldDirty()
}

func (t *Transform) setRotationLocked(e f32.EulerXYZ) {
	t.rotation = e
	t.quat = f32.QuatFromEulerXYZ(e)
}

// SetQuaternion updates t's rotation, recomputing its Euler angles to
// match.
func (t *Transform) SetQuaternion(q f32.Quat) {
	t.setQuaternionLocked(q)
	t.matrixOverride = false
	t.localDirty = true
	t.markWorldDirty()
}

func (t *Transform) setQuaternionLocked(q f32.Quat) {
	t.quat = q.Normalize()
	t.rotation = f32.QuatToEulerXYZ(t.quat)
}

// SetScale updates t's local scale.
func (t *Transform) SetScale(s f32.Vec3) {
	t.scale = s
	t.matrixOverride = false
	t.localDirty = true
	t.markWorldDirty()
}

// SetMatrix overrides t's local matrix directly, decomposing it back
// into position/rotation/scale so the TRS getters stay consistent.
func (t *Transform) SetMatrix(m f32.Mat4) {
	t.setMatrixOverride(m)
	t.markWorldDirty()
}

func (t *Transform) setMatrixOverride(m f32.Mat4) {
	t.position, t.quat, t.scale = m.Decompose()
	t.rotation = f32.QuatToEulerXYZ(t.quat)
	t.localMatrix = m
	t.localDirty = false
	t.matrixOverride = true
}

// Position, RotationEuler, Quaternion and Scale return t's current
// local TRS components.
func (t *Transform) Position() f32.Vec3       { return t.position }
func (t *Transform) RotationEuler() f32.EulerXYZ { return t.rotation }
func (t *Transform) Quaternion() f32.Quat     { return t.quat }
func (t *Transform) Scale() f32.Vec3          { return t.scale }

// markWorldDirty marks t and its whole subtree's world matrices stale.
// Already-dirty nodes are not revisited, since their descendants are
// necessarily already marked.
func (t *Transform) markWorldDirty() {
	if t.worldDirty {
		return
	}
	t.worldDirty = true
	for _, c := range t.children {
		c.markWorldDirty()
	}
}

// LocalMatrix returns t's local transform matrix, recomputing it from
// TRS if it has changed since the last call.
func (t *Transform) LocalMatrix() f32.Mat4 {
	if t.localDirty && !t.matrixOverride {
		t.localMatrix = f32.Compose(t.position, t.quat, t.scale)
		t.localDirty = false
	}
	return t.localMatrix
}

// WorldMatrix returns t's world matrix, rebuilding it (and its
// ancestors', as needed) only if t or an ancestor changed since the
// last call.
func (t *Transform) WorldMatrix() f32.Mat4 {
	if !t.worldDirty {
		return t.worldMatrix
	}
	local := t.LocalMatrix()
	if t.parent != nil {
		t.worldMatrix = t.parent.WorldMatrix().Mul(local)
	} else {
		t.worldMatrix = local
	}
	t.worldDirty = false
	return t.worldMatrix
}
