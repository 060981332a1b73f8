package layer

import (
	"testing"

	"scenepack.dev/driver/headless"
	"scenepack.dev/f32"
	"scenepack.dev/internal/bucket"
)

func triangleBucket() bucket.Bucket {
	return bucket.Bucket{
		PositionsCompressed: []uint16{0, 0, 0, 10, 0, 0, 0, 10, 0},
		Indices:             []uint32{0, 1, 2},
		EdgeIndices:         []uint32{0, 1, 1, 2},
		Width:               bucket.Width8,
	}
}

func TestVBOBatchedFinalizeUploadsEveryBuffer(t *testing.T) {
	dev := headless.New()
	pool := NewScratchPool()
	l := NewVBOBatched("l1", Triangles, dev, pool, f32.Identity4(), 1<<10, 1<<10)

	if _, err := l.CreatePortion(triangleBucket(), [4]uint8{1, 2, 3, 255}, FlagState{Visible: true}); err != nil {
		t.Fatalf("CreatePortion: %v", err)
	}
	if _, err := l.CreatePortion(triangleBucket(), [4]uint8{4, 5, 6, 255}, FlagState{Visible: true}); err != nil {
		t.Fatalf("CreatePortion: %v", err)
	}
	if err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	for name, buf := range map[string]*headless.Buffer{
		"positionsBuf": l.positionsBuf.(*headless.Buffer),
		"colorsBuf":    l.colorsBuf.(*headless.Buffer),
		"flagsBuf":     l.flagsBuf.(*headless.Buffer),
		"offsetsBuf":   l.offsetsBuf.(*headless.Buffer),
		"indicesBuf":   l.indicesBuf.(*headless.Buffer),
		"edgesBuf":     l.edgesBuf.(*headless.Buffer),
	} {
		if len(buf.Data()) == 0 {
			t.Fatalf("%s was never uploaded", name)
		}
	}

	// 2 portions x 3 vertices x 2 bytes (u16) x 3 components.
	if got, want := len(l.positionsBuf.(*headless.Buffer).Data()), 2*3*2*3; got != want {
		t.Fatalf("positionsBuf size = %d, want %d", got, want)
	}
	// Indices and edge indices must land in separate buffers, not a
	// commingled stream.
	if got, want := len(l.indicesBuf.(*headless.Buffer).Data()), 2*3*4; got != want {
		t.Fatalf("indicesBuf size = %d, want %d", got, want)
	}
	if got, want := len(l.edgesBuf.(*headless.Buffer).Data()), 2*4*4; got != want {
		t.Fatalf("edgesBuf size = %d, want %d", got, want)
	}
}

func TestVBOBatchedIndicesOffsetByVertexStart(t *testing.T) {
	pool := NewScratchPool()
	l := NewVBOBatched("l1", Triangles, nil, pool, f32.Identity4(), 1<<10, 1<<10)

	if _, err := l.CreatePortion(triangleBucket(), [4]uint8{}, FlagState{}); err != nil {
		t.Fatalf("CreatePortion: %v", err)
	}
	if _, err := l.CreatePortion(triangleBucket(), [4]uint8{}, FlagState{}); err != nil {
		t.Fatalf("CreatePortion: %v", err)
	}
	if err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if l.ranges[1].vertexStart != 3 {
		t.Fatalf("second portion's vertexStart = %d, want 3", l.ranges[1].vertexStart)
	}
}
