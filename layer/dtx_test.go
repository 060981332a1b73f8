package layer

import (
	"testing"

	"scenepack.dev/driver/headless"
	"scenepack.dev/f32"
	"scenepack.dev/internal/bucket"
)

func testBuckets() []bucket.Bucket {
	return []bucket.Bucket{{
		PositionsCompressed: []uint16{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Indices:             []uint32{0, 1, 2},
		EdgeIndices:         []uint32{0, 1},
		Width:               bucket.Width8,
	}}
}

func newTestDTX(t *testing.T, n int) (*DTX, []PortionID) {
	t.Helper()
	l := NewDTX("d1", Triangles, nil, f32.EmptyBox3())
	ids := make([]PortionID, 0, n)
	for i := 0; i < n; i++ {
		id, err := l.CreatePortion(testBuckets(), f32.Identity4(), f32.Identity4(), [4]uint8{byte(i), 0, 0, 255}, FlagState{Visible: true})
		if err != nil {
			t.Fatalf("CreatePortion %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	if err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return l, ids
}

func TestDTXDeferredFlushCoalescesContiguousRuns(t *testing.T) {
	l, ids := newTestDTX(t, 20)

	// Spend the direct-write budget on unrelated rows first so the
	// rows under test go through the deferred path.
	for i := 0; i < MaxDirectUpdatesPerTick; i++ {
		l.SetFlags(ids[10+i%10], FlagState{Visible: true, Highlighted: true})
	}

	for _, id := range ids[1:4] { // rows 1,2,3: one contiguous run
		if err := l.SetFlags(id, FlagState{Visible: true, Selected: true}); err != nil {
			t.Fatalf("SetFlags: %v", err)
		}
	}
	if !l.HasDeferredWrites() {
		t.Fatal("expected pending deferred writes")
	}

	written := l.FlushDeferred(100)
	if written != 3 {
		t.Fatalf("FlushDeferred wrote %d rows, want 3", written)
	}
	if l.HasDeferredWrites() {
		t.Fatal("expected no deferred writes left after full flush")
	}
}

func TestDTXDeferredFlushRespectsPerCallBudget(t *testing.T) {
	l, ids := newTestDTX(t, 20)
	for i := 0; i < MaxDirectUpdatesPerTick; i++ {
		l.SetFlags(ids[i], FlagState{Visible: true, Selected: true})
	}
	for _, id := range ids[MaxDirectUpdatesPerTick:] {
		l.SetFlags(id, FlagState{Visible: true, Highlighted: true})
	}

	want := len(ids) - MaxDirectUpdatesPerTick
	total := 0
	for i := 0; i < 10 && l.HasDeferredWrites(); i++ {
		total += l.FlushDeferred(2)
	}
	if total != want {
		t.Fatalf("total rows written = %d, want %d", total, want)
	}
}

func TestDTXCapacityOverflow(t *testing.T) {
	l := NewDTX("d1", Triangles, nil, f32.EmptyBox3())
	l.packer.maxHeight = 2
	for i := 0; i < 2; i++ {
		if _, err := l.CreatePortion(nil, f32.Identity4(), f32.Identity4(), [4]uint8{}, FlagState{}); err != nil {
			t.Fatalf("CreatePortion %d: %v", i, err)
		}
	}
	if _, err := l.CreatePortion(nil, f32.Identity4(), f32.Identity4(), [4]uint8{}, FlagState{}); err != ErrLayerFull {
		t.Fatalf("CreatePortion over capacity: got %v, want ErrLayerFull", err)
	}
}

func TestDTXDirectWritesApplyImmediatelyUnderBudget(t *testing.T) {
	dev := headless.New()
	l := NewDTX("d1", Triangles, dev, f32.EmptyBox3())
	id, err := l.CreatePortion(testBuckets(), f32.Identity4(), f32.Identity4(), [4]uint8{1, 2, 3, 255}, FlagState{Visible: true})
	if err != nil {
		t.Fatalf("CreatePortion: %v", err)
	}
	if err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if err := l.SetColor(id, f32.Vec3{X: 1}, 1); err != nil {
		t.Fatalf("SetColor: %v", err)
	}
	if l.HasDeferredWrites() {
		t.Fatal("a single update under the direct-write budget should not engage deferred mode")
	}
}

func TestDTXSwitchesToDeferredAfterDirectBudgetSpent(t *testing.T) {
	l, ids := newTestDTX(t, MaxDirectUpdatesPerTick+1)
	for i := 0; i < MaxDirectUpdatesPerTick; i++ {
		if l.HasDeferredWrites() {
			t.Fatalf("unexpected deferred writes after %d direct updates", i)
		}
		if err := l.SetFlags(ids[i], FlagState{Visible: true, Highlighted: true}); err != nil {
			t.Fatalf("SetFlags: %v", err)
		}
	}
	// The (MaxDirectUpdatesPerTick+1)th update exceeds the per-tick
	// direct-write budget and must fall back to deferred mode.
	if err := l.SetFlags(ids[MaxDirectUpdatesPerTick], FlagState{Visible: true, Highlighted: true}); err != nil {
		t.Fatalf("SetFlags: %v", err)
	}
	if !l.HasDeferredWrites() {
		t.Fatal("expected deferred mode once the direct-write budget was spent")
	}
}

func TestDTXTickResetsDirectBudgetAndFlushes(t *testing.T) {
	l, ids := newTestDTX(t, MaxDirectUpdatesPerTick+1)
	for _, id := range ids {
		l.SetFlags(id, FlagState{Visible: true, Highlighted: true})
	}
	if !l.HasDeferredWrites() {
		t.Fatal("expected deferred writes pending before Tick")
	}
	l.Tick(len(ids))
	if l.HasDeferredWrites() {
		t.Fatal("Tick should have flushed the remaining backlog")
	}
	// Budget reset: another full round of direct-only updates should
	// not immediately engage deferred mode again.
	for i := 0; i < MaxDirectUpdatesPerTick; i++ {
		l.SetFlags(ids[i], FlagState{Visible: true})
	}
	if l.HasDeferredWrites() {
		t.Fatal("direct-write budget should have reset after Tick")
	}
}

func TestDTXFinalizeUploadsGeometryTextures(t *testing.T) {
	dev := headless.New()
	l := NewDTX("d1", Triangles, dev, f32.EmptyBox3())
	if _, err := l.CreatePortion(testBuckets(), f32.Identity4(), f32.Identity4(), [4]uint8{}, FlagState{Visible: true}); err != nil {
		t.Fatalf("CreatePortion: %v", err)
	}
	if _, err := l.CreatePortion(testBuckets(), f32.Identity4(), f32.Identity4(), [4]uint8{}, FlagState{Visible: true}); err != nil {
		t.Fatalf("CreatePortion: %v", err)
	}
	if err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if l.positionsTex == nil {
		t.Fatal("expected a positions texture after Finalize")
	}
	if l.indicesTex == nil {
		t.Fatal("expected an indices texture after Finalize")
	}
	if l.edgesTex == nil {
		t.Fatal("expected an edge-indices texture after Finalize")
	}
	if l.lookupTex == nil {
		t.Fatal("expected a portion-id lookup texture after Finalize")
	}
	if l.decodeTex == nil {
		t.Fatal("expected a per-object decode-matrix texture after Finalize")
	}
	if len(l.geomLookup) != 4*2 { // 2 triangles, one uint32 portion id each
		t.Fatalf("geomLookup has %d bytes, want %d", len(l.geomLookup), 4*2)
	}
}
