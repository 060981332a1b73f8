// SPDX-License-Identifier: Unlicense OR MIT

package layer

// rowPacker tracks how many texel rows of a fixed-width DTX texture
// (colors-and-flags, matrices, decode-matrices) are in use, so a DTX layer's CanCreatePortion can answer precisely when
// the texture would need to grow past maxHeight. Grounded on the
// packer type referenced from gioui's gpu/compute.go (tryAdd/newPage/
// clear, a shelf allocator for 2D atlas pages); this variant is 1D
// (row count only) since every DTX row here holds exactly one
// object's fixed-stride record.
type rowPacker struct {
	maxHeight int
	used      int
}

func newRowPacker(maxHeight int) *rowPacker {
	return &rowPacker{maxHeight: maxHeight}
}

// tryAdd reserves n more rows, returning the starting row and whether
// it fit.
func (p *rowPacker) tryAdd(n int) (start int, fits bool) {
	if p.used+n > p.maxHeight {
		return 0, false
	}
	start = p.used
	p.used += n
	return start, true
}

func (p *rowPacker) height() int { return p.used }

func (p *rowPacker) clear() { p.used = 0 }
