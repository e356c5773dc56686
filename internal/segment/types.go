package segment

// RegionKind classifies a text region.
type RegionKind string

const (
	// KindLine is a single line of running text.
	KindLine RegionKind = "line"
	// KindBlock groups lines separated by small vertical gaps.
	KindBlock RegionKind = "block"
	// KindTableCell is a cell in a table-like block with aligned columns.
	KindTableCell RegionKind = "table-cell"
)

// NoParent marks a region without a parent in the layout tree.
const NoParent = -1

// Region is a text region in the document layout tree. Regions are stored
// flat; Parent is a back-reference by id, not an owning relation, so the
// tree can be grouped without cyclic ownership and regions are O(1)
// addressable by id.
type Region struct {
	// ID is unique within one segmentation result.
	ID int `json:"id"`

	// Kind tags the region as a line, block or table cell.
	Kind RegionKind `json:"kind"`

	// Bounding box in mask coordinates. W and H are always positive.
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`

	// Order is the reading-order index: unique, 0-based and contiguous
	// over all regions of a result.
	Order int `json:"order"`

	// Parent is the id of the enclosing block, or NoParent for roots.
	Parent int `json:"parent"`

	// Row is the 0-based row within the parent block for table cells,
	// and the line index within the block for lines.
	Row int `json:"row"`
}

// IsLeaf reports whether the region is recognized directly (lines and
// table cells) rather than a grouping node.
func (r Region) IsLeaf() bool {
	return r.Kind != KindBlock
}

// Area returns the bounding-box area in pixels.
func (r Region) Area() int {
	return r.W * r.H
}
