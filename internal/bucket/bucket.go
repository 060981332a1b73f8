// SPDX-License-Identifier: Unlicense OR MIT

// Package bucket implements DTX bucketing: splitting one geometry into
// buckets each fitting an 8/16/32-bit index width, optionally welding
// duplicate vertices first. A geometry's bucket list is produced
// lazily and shared across every DTX instance of that geometry
// (cached by scenemodel/layer, not here).
package bucket

import (
	"scenepack.dev/geometry"
)

// IndexWidth is the smallest index type a bucket's vertex count fits
// in.
type IndexWidth uint8

const (
	Width8 IndexWidth = iota
	Width16
	Width32
)

func widthFor(maxIndex int) IndexWidth {
	switch {
	case maxIndex < 256:
		return Width8
	case maxIndex < 65536:
		return Width16
	default:
		return Width32
	}
}

// Bucket is {positions_compressed, indices, edge_indices} where
// max(indices) fits Width.
type Bucket struct {
	PositionsCompressed []uint16 // local to this bucket, 3 per vertex
	Indices             []uint32 // local vertex indices
	EdgeIndices         []uint32 // local vertex indices, triangle buckets only
	Width               IndexWidth
}

// Options controls the two bucketing optimizations: welding and
// index-width rebucketing.
type Options struct {
	Weld      bool // deduplicate identical positions_compressed triples
	Rebucket  bool // split by index-width limit
	MaxPerBucket int // override for the natural 2^k limit, 0 = no override
}

// Build produces g's bucket list under opts. If both optimizations are
// disabled, a single bucket equal to the input is produced.
func Build(g *geometry.Geometry, opts Options) []Bucket {
	positions := g.PositionsCompressed
	indices := g.Indices
	edges := g.EdgeIndices

	if opts.Weld {
		positions, indices, edges = weld(positions, indices, edges)
	}

	if !opts.Rebucket {
		return []Bucket{{
			PositionsCompressed: positions,
			Indices:             indices,
			EdgeIndices:         edges,
			Width:               widthFor(len(positions)/3 - 1),
		}}
	}

	if g.Primitive.IsTriangleLike() {
		return rebucketTriangles(positions, indices, edges, opts.MaxPerBucket)
	}
	return rebucketLines(positions, indices, opts.MaxPerBucket)
}

// weld deduplicates identical positions_compressed triples and
// rewrites indices/edge_indices accordingly.
func weld(positions []uint16, indices, edges []uint32) (newPositions []uint16, newIndices, newEdges []uint32) {
	type key [3]uint16
	remap := make(map[key]uint32)
	var unique []uint16
	old2new := make([]uint32, len(positions)/3)
	for i := 0; i < len(positions)/3; i++ {
		k := key{positions[i*3+0], positions[i*3+1], positions[i*3+2]}
		id, ok := remap[k]
		if !ok {
			id = uint32(len(unique) / 3)
			remap[k] = id
			unique = append(unique, k[0], k[1], k[2])
		}
		old2new[i] = id
	}
	newIndices = remapIndices(indices, old2new)
	newEdges = remapIndices(edges, old2new)
	return unique, newIndices, newEdges
}

func remapIndices(indices []uint32, old2new []uint32) []uint32 {
	if indices == nil {
		return nil
	}
	out := make([]uint32, len(indices))
	for i, idx := range indices {
		out[i] = old2new[idx]
	}
	return out
}
