// SPDX-License-Identifier: Unlicense OR MIT

package bucket

// WidthForCount returns the smallest index width that can address
// uniqueVertexCount distinct vertices: 8-bit up to 256, 16-bit up to
// 65536, 32-bit beyond that.
func WidthForCount(uniqueVertexCount int) IndexWidth {
	switch {
	case uniqueVertexCount <= 256:
		return Width8
	case uniqueVertexCount <= 65536:
		return Width16
	default:
		return Width32
	}
}

func capFor(width IndexWidth) int {
	switch width {
	case Width8:
		return 256
	case Width16:
		return 65536
	default:
		return 1 << 31
	}
}

// rebucketTriangles greedily partitions a triangle list into buckets,
// each holding at most maxPerBucket distinct local vertices. maxPerBucket of 0 selects the smallest width that
// holds the whole (welded) geometry in one bucket, so rebucketing only splits further when the caller
// asks for tighter buckets via Options.MaxPerBucket.
func rebucketTriangles(positions []uint16, indices, edges []uint32, maxPerBucket int) []Bucket {
	if maxPerBucket <= 0 {
		maxPerBucket = capFor(WidthForCount(len(positions) / 3))
	}
	var buckets []Bucket
	b := newBuilder(maxPerBucket)
	for t := 0; t+2 < len(indices); t += 3 {
		tri := [3]uint32{indices[t], indices[t+1], indices[t+2]}
		if !b.fits(tri[:]) {
			buckets = append(buckets, b.finishTriangles(positions))
			b = newBuilder(maxPerBucket)
		}
		b.addTriangle(tri)
	}
	if b.size() > 0 {
		buckets = append(buckets, b.finishTriangles(positions))
	}
	if len(buckets) == 0 {
		return []Bucket{{Width: WidthForCount(0)}}
	}
	assignEdgesToBuckets(buckets, edges, positions)
	return buckets
}

// rebucketLines greedily partitions a line-list index buffer the same
// way as rebucketTriangles, two indices per primitive.
func rebucketLines(positions []uint16, indices []uint32, maxPerBucket int) []Bucket {
	if maxPerBucket <= 0 {
		maxPerBucket = capFor(WidthForCount(len(positions) / 3))
	}
	var buckets []Bucket
	b := newBuilder(maxPerBucket)
	for t := 0; t+1 < len(indices); t += 2 {
		seg := [2]uint32{indices[t], indices[t+1]}
		if !b.fits(seg[:]) {
			buckets = append(buckets, b.finishLines(positions))
			b = newBuilder(maxPerBucket)
		}
		b.addLine(seg)
	}
	if b.size() > 0 {
		buckets = append(buckets, b.finishLines(positions))
	}
	if len(buckets) == 0 {
		return []Bucket{{Width: WidthForCount(0)}}
	}
	return buckets
}

// bucketBuilder accumulates one bucket's local vertex remap and index
// list while walking the global primitive stream in order.
type bucketBuilder struct {
	cap       int
	global2local map[uint32]uint32
	localOrder   []uint32 // local id -> global id
	localIndices []uint32
}

func newBuilder(cap int) *bucketBuilder {
	return &bucketBuilder{cap: cap, global2local: make(map[uint32]uint32)}
}

func (b *bucketBuilder) size() int { return len(b.localOrder) }

// fits reports whether adding verts (as a whole primitive) would keep
// this bucket within its vertex cap.
func (b *bucketBuilder) fits(globalVerts []uint32) bool {
	newCount := 0
	for _, g := range globalVerts {
		if _, ok := b.global2local[g]; !ok {
			newCount++
		}
	}
	return b.size()+newCount <= b.cap || b.size() == 0
}

func (b *bucketBuilder) localID(global uint32) uint32 {
	if id, ok := b.global2local[global]; ok {
		return id
	}
	id := uint32(len(b.localOrder))
	b.global2local[global] = id
	b.localOrder = append(b.localOrder, global)
	return id
}

func (b *bucketBuilder) addTriangle(tri [3]uint32) {
	for _, g := range tri {
		b.localIndices = append(b.localIndices, b.localID(g))
	}
}

func (b *bucketBuilder) addLine(seg [2]uint32) {
	for _, g := range seg {
		b.localIndices = append(b.localIndices, b.localID(g))
	}
}

func (b *bucketBuilder) localPositions(positions []uint16) []uint16 {
	out := make([]uint16, len(b.localOrder)*3)
	for local, global := range b.localOrder {
		out[local*3+0] = positions[global*3+0]
		out[local*3+1] = positions[global*3+1]
		out[local*3+2] = positions[global*3+2]
	}
	return out
}

func (b *bucketBuilder) finishTriangles(positions []uint16) Bucket {
	return Bucket{
		PositionsCompressed: b.localPositions(positions),
		Indices:             b.localIndices,
		Width:               WidthForCount(len(b.localOrder)),
	}
}

func (b *bucketBuilder) finishLines(positions []uint16) Bucket {
	return Bucket{
		PositionsCompressed: b.localPositions(positions),
		Indices:             b.localIndices,
		Width:               WidthForCount(len(b.localOrder)),
	}
}

// assignEdgesToBuckets distributes triangle-geometry edge indices to
// whichever bucket already contains both of an edge's global
// vertices; an edge spanning two buckets (possible when the greedy
// split happens mid-face) is duplicated into each, which is safe
// since edges are drawn independently of triangle winding.
func assignEdgesToBuckets(buckets []Bucket, edges []uint32, positions []uint16) {
	if len(edges) == 0 {
		return
	}
	// Rebuild the global->local maps implicitly via position lookup,
	// since bucketBuilder discarded them after finishTriangles. Do the
	// cheap thing: match by quantized position triple.
	type key [3]uint16
	localLookup := make([]map[key]uint32, len(buckets))
	for bi, bk := range buckets {
		m := make(map[key]uint32, len(bk.PositionsCompressed)/3)
		for v := 0; v < len(bk.PositionsCompressed)/3; v++ {
			m[key{bk.PositionsCompressed[v*3+0], bk.PositionsCompressed[v*3+1], bk.PositionsCompressed[v*3+2]}] = uint32(v)
		}
		localLookup[bi] = m
	}
	for e := 0; e+1 < len(edges); e += 2 {
		ga, gb := edges[e], edges[e+1]
		ka := key{positions[ga*3+0], positions[ga*3+1], positions[ga*3+2]}
		kb := key{positions[gb*3+0], positions[gb*3+1], positions[gb*3+2]}
		for bi := range buckets {
			la, aok := localLookup[bi][ka]
			lb, bok := localLookup[bi][kb]
			if aok && bok {
				buckets[bi].EdgeIndices = append(buckets[bi].EdgeIndices, la, lb)
			}
		}
	}
}
