package entity

import (
	"testing"

	"scenepack.dev/f32"
	"scenepack.dev/layer"
)

func oneMeshEntity(t *testing.T) (*Entity, *layer.VBOInstanced, layer.PortionID) {
	t.Helper()
	l := layer.NewVBOInstanced("l1", layer.Triangles, nil, "geo1", f32.Identity4(), f32.EmptyBox3(), 4)
	id, err := l.CreatePortion(f32.Identity4(), [4]uint8{255, 255, 255, 255}, layer.FlagState{Visible: true})
	if err != nil {
		t.Fatalf("CreatePortion: %v", err)
	}
	if err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	e, err := New(Config{ID: "model1#part1", ModelID: "model1", Meshes: []Mesh{{Layer: l, PortionID: id}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, l, id
}

func TestOriginalSystemIDStripsModelPrefix(t *testing.T) {
	e, _, _ := oneMeshEntity(t)
	if e.OriginalSystemID() != "part1" {
		t.Fatalf("OriginalSystemID() = %q, want %q", e.OriginalSystemID(), "part1")
	}
}

func TestSetVisibleFansOutAndIsIdempotent(t *testing.T) {
	e, l, _ := oneMeshEntity(t)
	if err := e.SetVisible(false); err != nil {
		t.Fatalf("SetVisible: %v", err)
	}
	if l.Counters().NumVisible() != 0 {
		t.Fatalf("NumVisible() = %d, want 0", l.Counters().NumVisible())
	}
	before := l.Counters()
	if err := e.SetVisible(false); err != nil {
		t.Fatalf("SetVisible (no-op): %v", err)
	}
	if l.Counters() != before {
		t.Fatal("repeated identical SetVisible changed counters")
	}
}

func TestCulledDisjunction(t *testing.T) {
	e, l, _ := oneMeshEntity(t)
	if e.Culled() {
		t.Fatal("expected not culled initially")
	}
	e.SetViewFrustumCulled(true)
	if !e.Culled() {
		t.Fatal("expected culled once VFC reports true")
	}
	if l.Counters().NumCulled() != 1 {
		t.Fatalf("NumCulled() = %d, want 1", l.Counters().NumCulled())
	}
	e.SetViewFrustumCulled(false)
	if e.Culled() {
		t.Fatal("expected not culled once VFC clears")
	}

	e.SetLODCulled(true)
	if e.Culled() {
		t.Fatal("LOD culling should not apply until LODCullable is set")
	}
	e.SetLODCullable(true)
	if !e.Culled() {
		t.Fatal("expected culled once both LOD sources are true")
	}
}

func TestNewRequiresAtLeastOneMesh(t *testing.T) {
	if _, err := New(Config{ID: "e1"}); err != ErrNoMeshes {
		t.Fatalf("got %v, want ErrNoMeshes", err)
	}
}
