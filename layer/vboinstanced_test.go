package layer

import (
	"testing"

	"scenepack.dev/driver/headless"
	"scenepack.dev/f32"
)

func TestVBOInstancedFinalizeUploadsEveryBuffer(t *testing.T) {
	dev := headless.New()
	l := NewVBOInstanced("l1", Triangles, dev, "geo1", f32.Identity4(), f32.EmptyBox3(), 8)

	id1, err := l.CreatePortion(f32.Identity4(), [4]uint8{1, 2, 3, 255}, FlagState{Visible: true})
	if err != nil {
		t.Fatalf("CreatePortion: %v", err)
	}
	if _, err := l.CreatePortion(f32.Identity4(), [4]uint8{4, 5, 6, 255}, FlagState{Visible: true, Selected: true}); err != nil {
		t.Fatalf("CreatePortion: %v", err)
	}
	if err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	for name, buf := range map[string]*headless.Buffer{
		"matricesBuf": l.matricesBuf.(*headless.Buffer),
		"colorsBuf":   l.colorsBuf.(*headless.Buffer),
		"flagsBuf":    l.flagsBuf.(*headless.Buffer),
		"offsetsBuf":  l.offsetsBuf.(*headless.Buffer),
	} {
		if len(buf.Data()) == 0 {
			t.Fatalf("%s was never uploaded", name)
		}
	}

	if err := l.SetColor(id1, f32.Vec3{X: 1}, 1); err != nil {
		t.Fatalf("SetColor: %v", err)
	}
	if got := l.colorsBuf.(*headless.Buffer).Data()[:4]; got[0] != 255 {
		t.Fatalf("SetColor did not reach colorsBuf: %v", got)
	}

	if err := l.SetOffset(id1, f32.Vec3{X: 1, Y: 2, Z: 3}); err != nil {
		t.Fatalf("SetOffset: %v", err)
	}
	if got := len(l.offsetsBuf.(*headless.Buffer).Data()); got == 0 {
		t.Fatal("SetOffset did not reach offsetsBuf")
	}

	if err := l.SetFlags(id1, FlagState{Visible: true, Culled: true}); err != nil {
		t.Fatalf("SetFlags: %v", err)
	}
	flagsBefore := append([]byte(nil), l.flagsBuf.(*headless.Buffer).Data()...)
	if err := l.SetFlags(id1, FlagState{Visible: true, Culled: true}); err != nil {
		t.Fatalf("SetFlags: %v", err)
	}
	if got := l.flagsBuf.(*headless.Buffer).Data(); string(got) == "" || len(got) != len(flagsBefore) {
		t.Fatalf("flagsBuf size changed on repeated SetFlags: %d vs %d", len(got), len(flagsBefore))
	}
}
