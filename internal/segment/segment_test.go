package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/binarize"
)

type rect struct{ x0, y0, x1, y1 int }

func maskWith(w, h int, rects ...rect) *binarize.Mask {
	m := binarize.NewMask(w, h)
	for _, r := range rects {
		for y := r.y0; y <= r.y1; y++ {
			for x := r.x0; x <= r.x1; x++ {
				m.Set(x, y, binarize.Foreground)
			}
		}
	}
	return m
}

func TestSegmentEmptyMask(t *testing.T) {
	regions := Segment(binarize.NewMask(50, 50), DefaultOptions())
	require.NotNil(t, regions)
	assert.Empty(t, regions)
}

func TestSegmentSingleParagraph(t *testing.T) {
	// Two text lines separated by a small gap form one block.
	m := maskWith(100, 40,
		rect{5, 5, 60, 8},
		rect{5, 11, 60, 14},
	)

	regions := Segment(m, DefaultOptions())
	require.Len(t, regions, 3)

	blk := regions[0]
	assert.Equal(t, KindBlock, blk.Kind)
	assert.Equal(t, NoParent, blk.Parent)
	assert.False(t, blk.IsLeaf())
	assert.Equal(t, 5, blk.X)
	assert.Equal(t, 5, blk.Y)
	assert.Equal(t, 56, blk.W)
	assert.Equal(t, 10, blk.H)

	for i, r := range regions[1:] {
		assert.Equal(t, KindLine, r.Kind)
		assert.Equal(t, blk.ID, r.Parent)
		assert.Equal(t, i, r.Row)
		assert.True(t, r.IsLeaf())
	}
}

func TestSegmentSeparateBlocks(t *testing.T) {
	// The third line sits far below the first two and starts its own block.
	m := maskWith(100, 60,
		rect{5, 5, 60, 8},
		rect{5, 11, 60, 14},
		rect{10, 40, 80, 43},
	)

	regions := Segment(m, DefaultOptions())
	require.Len(t, regions, 5)

	assert.Equal(t, KindBlock, regions[0].Kind)
	assert.Equal(t, KindLine, regions[1].Kind)
	assert.Equal(t, KindLine, regions[2].Kind)
	assert.Equal(t, KindBlock, regions[3].Kind)
	assert.Equal(t, KindLine, regions[4].Kind)

	assert.Equal(t, regions[0].ID, regions[1].Parent)
	assert.Equal(t, regions[0].ID, regions[2].Parent)
	assert.Equal(t, regions[3].ID, regions[4].Parent)

	// Reading order follows vertical position.
	assert.Less(t, regions[0].Y, regions[3].Y)
}

func TestSegmentReadingOrderIsContiguous(t *testing.T) {
	m := maskWith(100, 60,
		rect{5, 5, 60, 8},
		rect{5, 11, 60, 14},
		rect{10, 40, 80, 43},
	)

	regions := Segment(m, DefaultOptions())
	for i, r := range regions {
		assert.Equal(t, i, r.ID)
		assert.Equal(t, i, r.Order)
	}
}

func TestSegmentLeavesCoverForeground(t *testing.T) {
	m := maskWith(120, 80,
		rect{5, 5, 60, 8},
		rect{5, 11, 60, 14},
		rect{10, 40, 80, 43},
		rect{90, 40, 110, 43},
	)

	regions := Segment(m, DefaultOptions())

	var leaves []Region
	for _, r := range regions {
		if r.IsLeaf() {
			leaves = append(leaves, r)
		}
	}
	require.NotEmpty(t, leaves)

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.At(x, y) != binarize.Foreground {
				continue
			}
			covered := false
			for _, r := range leaves {
				if x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H {
					covered = true
					break
				}
			}
			if !covered {
				t.Fatalf("foreground pixel (%d,%d) not covered by any leaf", x, y)
			}
		}
	}
}

func TestSegmentWordsMergeIntoOneLine(t *testing.T) {
	// Two words on one line, no other lines: no table, one merged line.
	m := maskWith(100, 20,
		rect{5, 5, 20, 8},
		rect{30, 5, 45, 8},
	)

	regions := Segment(m, DefaultOptions())
	require.Len(t, regions, 2)

	line := regions[1]
	assert.Equal(t, KindLine, line.Kind)
	assert.Equal(t, 5, line.X)
	assert.Equal(t, 41, line.W)
}

func TestSegmentDetectsTable(t *testing.T) {
	// Three rows, two vertically aligned columns each.
	m := maskWith(100, 40,
		rect{5, 5, 25, 9}, rect{60, 5, 80, 9},
		rect{5, 15, 25, 19}, rect{60, 15, 80, 19},
		rect{5, 25, 25, 29}, rect{60, 25, 80, 29},
	)

	regions := Segment(m, DefaultOptions())
	require.Len(t, regions, 7)

	assert.Equal(t, KindBlock, regions[0].Kind)
	wantRows := []int{0, 0, 1, 1, 2, 2}
	for i, r := range regions[1:] {
		assert.Equal(t, KindTableCell, r.Kind)
		assert.Equal(t, regions[0].ID, r.Parent)
		assert.Equal(t, wantRows[i], r.Row)
	}

	// Cells on the same row share left-to-right ordering.
	assert.Less(t, regions[1].X, regions[2].X)
}

func TestSegmentMisalignedColumnsAreNotATable(t *testing.T) {
	// Two groups per row, but the gap positions never line up.
	m := maskWith(200, 40,
		rect{5, 5, 40, 9}, rect{60, 5, 100, 9},
		rect{5, 15, 110, 19}, rect{130, 15, 170, 19},
		rect{5, 25, 40, 29}, rect{60, 25, 100, 29},
	)

	regions := Segment(m, DefaultOptions())
	for _, r := range regions {
		assert.NotEqual(t, KindTableCell, r.Kind)
	}
}

func TestSegmentDiagonalPixelsConnect(t *testing.T) {
	// 8-connectivity joins diagonal neighbors into one component.
	m := binarize.NewMask(10, 10)
	m.Set(4, 4, binarize.Foreground)
	m.Set(5, 5, binarize.Foreground)

	regions := Segment(m, DefaultOptions())
	require.Len(t, regions, 2)
	assert.Equal(t, 2, regions[1].W)
	assert.Equal(t, 2, regions[1].H)
}
