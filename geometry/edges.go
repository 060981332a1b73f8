// SPDX-License-Identifier: Unlicense OR MIT

package geometry

import (
	"math"

	"scenepack.dev/f32"
	"scenepack.dev/internal/quant"
)

// edgeKey is an unordered vertex pair, used to find the triangles
// sharing an edge.
type edgeKey struct{ a, b uint32 }

func makeEdgeKey(a, b uint32) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// ComputeEdgeIndices derives line-pair edge indices for a triangle-like
// geometry: an edge is emitted whenever it is a boundary edge (used by
// exactly one triangle) or a crease, where the dihedral angle between
// its two triangles' face normals is at or above creaseAngleDeg.
// Below threshold the edge is considered smooth and no line is drawn.
func ComputeEdgeIndices(indices []uint32, positionsCompressed []uint16, decode f32.Mat4, creaseAngleDeg float32) []uint32 {
	if len(indices) < 3 {
		return nil
	}
	positions := make([]f32.Vec3, len(positionsCompressed)/3)
	for i := range positions {
		positions[i] = quant.Decompress(decode, [3]uint16{
			positionsCompressed[i*3+0],
			positionsCompressed[i*3+1],
			positionsCompressed[i*3+2],
		})
	}

	type faceInfo struct {
		normal f32.Vec3
	}
	edgeFaces := make(map[edgeKey][]faceInfo)
	// edgeVerts preserves the first-seen vertex order for an edge so
	// the emitted line segment follows the original winding.
	edgeVerts := make(map[edgeKey][2]uint32)

	numTris := len(indices) / 3
	for t := 0; t < numTris; t++ {
		i0, i1, i2 := indices[t*3+0], indices[t*3+1], indices[t*3+2]
		p0, p1, p2 := positions[i0], positions[i1], positions[i2]
		normal := p1.Sub(p0).Cross(p2.Sub(p0)).Normalize()
		for _, e := range [3][2]uint32{{i0, i1}, {i1, i2}, {i2, i0}} {
			k := makeEdgeKey(e[0], e[1])
			edgeFaces[k] = append(edgeFaces[k], faceInfo{normal: normal})
			if _, ok := edgeVerts[k]; !ok {
				edgeVerts[k] = e
			}
		}
	}

	creaseCos := math.Cos(float64(creaseAngleDeg) * math.Pi / 180)
	var out []uint32
	// Deterministic order: iterate indices in the order triangles were
	// walked rather than map order, by re-deriving the same edge list.
	seen := make(map[edgeKey]bool)
	for t := 0; t < numTris; t++ {
		i0, i1, i2 := indices[t*3+0], indices[t*3+1], indices[t*3+2]
		for _, e := range [3][2]uint32{{i0, i1}, {i1, i2}, {i2, i0}} {
			k := makeEdgeKey(e[0], e[1])
			if seen[k] {
				continue
			}
			seen[k] = true
			faces := edgeFaces[k]
			emit := false
			switch len(faces) {
			case 1:
				emit = true // boundary edge
			case 2:
				dot := float64(faces[0].normal.Dot(faces[1].normal))
				if dot > 1 {
					dot = 1
				}
				if dot < -1 {
					dot = -1
				}
				// dot >= creaseCos means the angle between normals is
				// *below* the crease threshold (smooth) -> hidden.
				emit = dot < creaseCos
			default:
				// Non-manifold edge (3+ faces): always emphasize.
				emit = true
			}
			if emit {
				v := edgeVerts[k]
				out = append(out, v[0], v[1])
			}
		}
	}
	return out
}
