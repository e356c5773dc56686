// Package segment reconstructs document layout from a binary mask.
//
// The segmenter labels connected foreground components, merges them into
// lines using the horizontal projection profile, merges lines into blocks
// by vertical gap thresholding, and tags table-like blocks so callers can
// request cell-by-cell recognition. Output regions are stored flat with
// parent back-references and carry contiguous reading-order indices.
package segment

import (
	"sort"

	"docpipe/internal/binarize"
)

// Options tunes the gap thresholds of the segmenter. Zero values select
// the documented defaults.
type Options struct {
	// CellGapFactor scales the line height into the minimum horizontal
	// gap separating two cell groups on the same line. Word gaps in
	// running text stay well below half the line height, so the default
	// of 1.5 only splits genuine column gaps.
	CellGapFactor float64

	// BlockGapFactor scales the median line height into the minimum
	// vertical gap separating two blocks. Default 1.0.
	BlockGapFactor float64
}

// DefaultOptions returns the documented segmenter defaults.
func DefaultOptions() Options {
	return Options{CellGapFactor: 1.5, BlockGapFactor: 1.0}
}

func (o Options) withDefaults() Options {
	if o.CellGapFactor <= 0 {
		o.CellGapFactor = 1.5
	}
	if o.BlockGapFactor <= 0 {
		o.BlockGapFactor = 1.0
	}
	return o
}

// band is a maximal run of mask rows containing foreground, holding the
// cell groups found on it. Connected components never straddle an empty
// row, so each component belongs to exactly one band.
type band struct {
	top, bottom int
	groups      []group
}

func (b band) height() int { return b.bottom - b.top + 1 }

// group is a horizontal cluster of components within a band.
type group struct {
	minX, minY, maxX, maxY int
	pixels                 int
}

// Segment produces the ordered flat region list for a mask. An all-
// background mask yields an empty list, not an error.
func Segment(m *binarize.Mask, opts Options) []Region {
	opts = opts.withDefaults()

	comps := labelComponents(m)
	if len(comps) == 0 {
		return []Region{}
	}

	bands := buildBands(m, comps, opts)
	blocks := groupBlocks(bands, opts)

	// Emit regions in reading order: blocks top-to-bottom (ties broken
	// by left edge), then each block's leaves top-to-bottom and
	// left-to-right. IDs and order indices are both assigned in
	// traversal sequence, so order is a contiguous permutation.
	sort.Slice(blocks, func(i, j int) bool {
		bi, bj := blocks[i], blocks[j]
		if bi[0].top != bj[0].top {
			return bi[0].top < bj[0].top
		}
		return blockMinX(bi) < blockMinX(bj)
	})

	regions := make([]Region, 0, len(blocks)*3)
	for _, blk := range blocks {
		regions = appendBlock(regions, blk, opts)
	}
	return regions
}

// buildBands slices the mask into horizontal bands via the row projection
// profile, assigns components to bands, and splits each band into cell
// groups at large horizontal gaps.
func buildBands(m *binarize.Mask, comps []component, opts Options) []band {
	rowHasFg := make([]bool, m.Height)
	for _, c := range comps {
		for y := c.minY; y <= c.maxY; y++ {
			rowHasFg[y] = true
		}
	}

	var bands []band
	inBand := false
	for y := 0; y < m.Height; y++ {
		switch {
		case rowHasFg[y] && !inBand:
			bands = append(bands, band{top: y, bottom: y})
			inBand = true
		case rowHasFg[y]:
			bands[len(bands)-1].bottom = y
		default:
			inBand = false
		}
	}

	// Assign each component to the band containing its top row.
	byBand := make([][]component, len(bands))
	for _, c := range comps {
		idx := sort.Search(len(bands), func(i int) bool { return bands[i].bottom >= c.minY })
		byBand[idx] = append(byBand[idx], c)
	}

	for i := range bands {
		bands[i].groups = splitGroups(byBand[i], bands[i].height(), opts)
	}
	return bands
}

// splitGroups orders components left-to-right and starts a new group
// whenever the horizontal gap exceeds the cell-gap threshold.
func splitGroups(comps []component, bandHeight int, opts Options) []group {
	sort.Slice(comps, func(i, j int) bool { return comps[i].minX < comps[j].minX })

	gapThreshold := int(opts.CellGapFactor * float64(bandHeight))
	if gapThreshold < 4 {
		gapThreshold = 4
	}

	var groups []group
	for _, c := range comps {
		if len(groups) > 0 {
			g := &groups[len(groups)-1]
			if c.minX-g.maxX-1 <= gapThreshold {
				if c.minX < g.minX {
					g.minX = c.minX
				}
				if c.maxX > g.maxX {
					g.maxX = c.maxX
				}
				if c.minY < g.minY {
					g.minY = c.minY
				}
				if c.maxY > g.maxY {
					g.maxY = c.maxY
				}
				g.pixels += c.pixels
				continue
			}
		}
		groups = append(groups, group{
			minX: c.minX, minY: c.minY,
			maxX: c.maxX, maxY: c.maxY,
			pixels: c.pixels,
		})
	}
	return groups
}

// groupBlocks merges consecutive bands into blocks wherever the vertical
// gap stays below the block-gap threshold.
func groupBlocks(bands []band, opts Options) [][]band {
	if len(bands) == 0 {
		return nil
	}

	gapThreshold := int(opts.BlockGapFactor * float64(medianBandHeight(bands)))
	if gapThreshold < 3 {
		gapThreshold = 3
	}

	blocks := [][]band{{bands[0]}}
	for i := 1; i < len(bands); i++ {
		gap := bands[i].top - bands[i-1].bottom - 1
		if gap > gapThreshold {
			blocks = append(blocks, []band{bands[i]})
		} else {
			blocks[len(blocks)-1] = append(blocks[len(blocks)-1], bands[i])
		}
	}
	return blocks
}

func medianBandHeight(bands []band) int {
	heights := make([]int, len(bands))
	for i, b := range bands {
		heights[i] = b.height()
	}
	sort.Ints(heights)
	return heights[len(heights)/2]
}

func blockMinX(blk []band) int {
	minX := int(^uint(0) >> 1)
	for _, b := range blk {
		for _, g := range b.groups {
			if g.minX < minX {
				minX = g.minX
			}
		}
	}
	return minX
}

// appendBlock emits the block region followed by its leaves, assigning
// ids, order indices and parent references in traversal sequence.
func appendBlock(regions []Region, blk []band, opts Options) []Region {
	blockID := len(regions)

	minX, minY := blk[0].groups[0].minX, blk[0].top
	maxX, maxY := blk[0].groups[0].maxX, blk[len(blk)-1].bottom
	for _, b := range blk {
		for _, g := range b.groups {
			if g.minX < minX {
				minX = g.minX
			}
			if g.maxX > maxX {
				maxX = g.maxX
			}
		}
	}

	regions = append(regions, Region{
		ID:     blockID,
		Kind:   KindBlock,
		X:      minX,
		Y:      minY,
		W:      maxX - minX + 1,
		H:      maxY - minY + 1,
		Order:  blockID,
		Parent: NoParent,
	})

	tabular := isTabular(blk)
	for row, b := range blk {
		if tabular {
			for _, g := range b.groups {
				regions = append(regions, leafRegion(len(regions), KindTableCell, g, blockID, row))
			}
			continue
		}
		// Merge all groups on the band into a single line leaf.
		merged := b.groups[0]
		for _, g := range b.groups[1:] {
			if g.minX < merged.minX {
				merged.minX = g.minX
			}
			if g.maxX > merged.maxX {
				merged.maxX = g.maxX
			}
			if g.minY < merged.minY {
				merged.minY = g.minY
			}
			if g.maxY > merged.maxY {
				merged.maxY = g.maxY
			}
			merged.pixels += g.pixels
		}
		regions = append(regions, leafRegion(len(regions), KindLine, merged, blockID, row))
	}
	return regions
}

func leafRegion(id int, kind RegionKind, g group, parent, row int) Region {
	return Region{
		ID:     id,
		Kind:   kind,
		X:      g.minX,
		Y:      g.minY,
		W:      g.maxX - g.minX + 1,
		H:      g.maxY - g.minY + 1,
		Order:  id,
		Parent: parent,
		Row:    row,
	}
}

// isTabular reports whether a block reads as a table: at least two lines
// split into the same number of columns with vertically aligned gaps.
func isTabular(blk []band) bool {
	if len(blk) < 2 {
		return false
	}

	// Modal group count over multi-group bands.
	counts := map[int]int{}
	for _, b := range blk {
		if len(b.groups) >= 2 {
			counts[len(b.groups)]++
		}
	}
	modal, modalN := 0, 0
	for g, n := range counts {
		if n > modalN {
			modal, modalN = g, n
		}
	}
	if modal < 2 || modalN < 2 || modalN*10 < len(blk)*6 {
		return false
	}

	// Column gap intervals must intersect across every modal band.
	type interval struct{ lo, hi int }
	var gaps []interval
	first := true
	for _, b := range blk {
		if len(b.groups) != modal {
			continue
		}
		for i := 0; i < modal-1; i++ {
			lo := b.groups[i].maxX + 1
			hi := b.groups[i+1].minX - 1
			if first {
				gaps = append(gaps, interval{lo, hi})
				continue
			}
			if lo > gaps[i].lo {
				gaps[i].lo = lo
			}
			if hi < gaps[i].hi {
				gaps[i].hi = hi
			}
		}
		first = false
	}
	for _, g := range gaps {
		if g.lo > g.hi {
			return false
		}
	}
	return true
}
