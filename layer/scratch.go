// SPDX-License-Identifier: Unlicense OR MIT

package layer

import "sync"

// scratchBuffer is a reusable accumulation arena for one VBOBatched
// layer under construction: each declared GPU buffer (positions,
// colors, flags, offsets, indices, edge indices) gets its own byte
// slice borrowed from here rather than allocated fresh per layer.
type scratchBuffer struct {
	Positions []byte // u16x3 per vertex
	Colors    []byte // rgba8 per vertex
	Flags     []byte // packed uint32 per vertex
	Offsets   []byte // vec3 f32 per vertex, zeroed at build time
	Indices   []byte // uint32 per index
	Edges     []byte // uint32 per edge index
}

func (s *scratchBuffer) reset() {
	s.Positions = s.Positions[:0]
	s.Colors = s.Colors[:0]
	s.Flags = s.Flags[:0]
	s.Offsets = s.Offsets[:0]
	s.Indices = s.Indices[:0]
	s.Edges = s.Edges[:0]
}

// ScratchPool is a process-wide pool of scratchBuffer arenas: each
// batched-layer build borrows one, reshapes it, and releases it on
// finalize or destruction. Not reentrant; callers must not build two
// batched layers concurrently against the same pool. Grounded on
// gogpu-gg's scene.EncodingPool: the same Get/Put/Warmup shape over a
// sync.Pool, adapted from *Encoding to a typed scratch arena.
type ScratchPool struct {
	pool sync.Pool
}

// NewScratchPool creates an empty scratch pool.
func NewScratchPool() *ScratchPool {
	return &ScratchPool{
		pool: sync.Pool{
			New: func() any { return &scratchBuffer{} },
		},
	}
}

// Get retrieves a reset scratch buffer from the pool.
func (p *ScratchPool) Get() *scratchBuffer {
	b := p.pool.Get().(*scratchBuffer)
	b.reset()
	return b
}

// Put returns a scratch buffer to the pool for reuse. The caller must
// not use b again after Put.
func (p *ScratchPool) Put(b *scratchBuffer) {
	if b == nil {
		return
	}
	p.pool.Put(b)
}

// Warmup pre-allocates count scratch buffers so that allocation-free
// operation is achievable once real building starts.
func (p *ScratchPool) Warmup(count int) {
	bufs := make([]*scratchBuffer, count)
	for i := range bufs {
		bufs[i] = p.Get()
	}
	for _, b := range bufs {
		p.Put(b)
	}
}
