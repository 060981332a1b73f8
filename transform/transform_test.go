package transform

import (
	"errors"
	"testing"

	"scenepack.dev/f32"
)

func TestWorldMatrixPropagatesThroughHierarchy(t *testing.T) {
	r := NewRegistry()
	root, err := r.Create(Config{ID: "root", Position: &f32.Vec3{X: 1, Y: 0, Z: 0}})
	if err != nil {
		t.Fatalf("Create root: %v", err)
	}
	child, err := r.Create(Config{ID: "child", ParentID: "root", Position: &f32.Vec3{X: 0, Y: 2, Z: 0}})
	if err != nil {
		t.Fatalf("Create child: %v", err)
	}

	world := child.WorldMatrix()
	p := world.MulPoint(f32.Vec3{})
	if p.X != 1 || p.Y != 2 || p.Z != 0 {
		t.Fatalf("child world origin = %+v, want {1 2 0}", p)
	}

	root.SetPosition(f32.Vec3{X: 5, Y: 0, Z: 0})
	p2 := child.WorldMatrix().MulPoint(f32.Vec3{})
	if p2.X != 5 || p2.Y != 2 {
		t.Fatalf("child world origin after root move = %+v, want {5 2 0}", p2)
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create(Config{ID: "a"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create(Config{ID: "a"}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("got %v, want ErrDuplicateID", err)
	}
}

func TestUnknownParentRejected(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create(Config{ID: "a", ParentID: "missing"}); !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("got %v, want ErrUnknownParent", err)
	}
}

func TestMatrixConflictsWithTRS(t *testing.T) {
	r := NewRegistry()
	m := f32.Identity4()
	if _, err := r.Create(Config{ID: "a", Matrix: &m, Position: &f32.Vec3{X: 1}}); err != ErrConflictingCfg {
		t.Fatalf("got %v, want ErrConflictingCfg", err)
	}
}

func TestSetQuaternionUpdatesEuler(t *testing.T) {
	r := NewRegistry()
	tr, _ := r.Create(Config{ID: "a"})
	e := f32.EulerXYZ{X: 0, Y: 90, Z: 0}
	tr.SetRotationEuler(e)
	q := tr.Quaternion()
	tr2, _ := r.Create(Config{ID: "b"})
	tr2.SetQuaternion(q)
	got := tr2.RotationEuler()
	if abs32(got.Y-90) > 1e-2 {
		t.Fatalf("RotationEuler().Y = %v, want ~90", got.Y)
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
