package layer

import (
	"testing"

	"scenepack.dev/f32"
)

func TestPackFlagIdempotence(t *testing.T) {
	l := NewVBOInstanced("l1", Triangles, nil, "geo1", f32.Identity4(), f32.EmptyBox3(), 4)
	id, err := l.CreatePortion(f32.Identity4(), [4]uint8{255, 0, 0, 255}, FlagState{Visible: true})
	if err != nil {
		t.Fatalf("CreatePortion: %v", err)
	}
	if err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	before := l.Counters()
	if err := l.SetFlags(id, FlagState{Visible: true}); err != nil {
		t.Fatalf("SetFlags: %v", err)
	}
	after := l.Counters()
	if before != after {
		t.Fatalf("identical flag state changed counters: %+v -> %+v", before, after)
	}

	if err := l.SetFlags(id, FlagState{Visible: true, Culled: true}); err != nil {
		t.Fatalf("SetFlags: %v", err)
	}
	if got := l.Counters().NumCulled(); got != 1 {
		t.Fatalf("NumCulled() = %d, want 1", got)
	}
}

func TestInstancedCapacityOverflow(t *testing.T) {
	l := NewVBOInstanced("l1", Triangles, nil, "geo1", f32.Identity4(), f32.EmptyBox3(), 2)
	for i := 0; i < 2; i++ {
		if !l.CanCreatePortion(SizeEstimate{}) {
			t.Fatalf("portion %d: expected capacity", i)
		}
		if _, err := l.CreatePortion(f32.Identity4(), [4]uint8{}, FlagState{Visible: true}); err != nil {
			t.Fatalf("CreatePortion %d: %v", i, err)
		}
	}
	if l.CanCreatePortion(SizeEstimate{}) {
		t.Fatal("expected layer to report full")
	}
	if _, err := l.CreatePortion(f32.Identity4(), [4]uint8{}, FlagState{}); err != ErrLayerFull {
		t.Fatalf("CreatePortion on full layer: got %v, want ErrLayerFull", err)
	}
}

func TestLayerStateMachine(t *testing.T) {
	l := NewVBOInstanced("l1", Triangles, nil, "geo1", f32.Identity4(), f32.EmptyBox3(), 4)
	id, _ := l.CreatePortion(f32.Identity4(), [4]uint8{}, FlagState{})
	if err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := l.Finalize(); err == nil {
		t.Fatal("expected error finalizing twice")
	}
	if _, err := l.CreatePortion(f32.Identity4(), [4]uint8{}, FlagState{}); err == nil {
		t.Fatal("expected error creating a portion after finalize")
	}
	if err := l.SetFlags(id, FlagState{Visible: true}); err != nil {
		t.Fatalf("SetFlags after finalize: %v", err)
	}
}

func TestSkipAllPasses(t *testing.T) {
	l := NewVBOInstanced("l1", Triangles, nil, "geo1", f32.Identity4(), f32.EmptyBox3(), 4)
	id, _ := l.CreatePortion(f32.Identity4(), [4]uint8{}, FlagState{Visible: true})
	l.Finalize()
	if l.Counters().SkipAllPasses() {
		t.Fatal("visible portion should not skip all passes")
	}
	l.SetFlags(id, FlagState{Visible: true, Culled: true})
	if !l.Counters().SkipAllPasses() {
		t.Fatal("sole portion culled should skip all passes")
	}
}
