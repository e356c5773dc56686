package segment

import "docpipe/internal/binarize"

// component is one 8-connected group of foreground pixels with its
// bounding box.
type component struct {
	minX, minY int
	maxX, maxY int
	pixels     int
}

func (c *component) width() int  { return c.maxX - c.minX + 1 }
func (c *component) height() int { return c.maxY - c.minY + 1 }

// labelComponents runs two-pass connected-component labeling with
// union-find over the foreground pixels of the mask.
func labelComponents(m *binarize.Mask) []component {
	w, h := m.Width, m.Height
	labels := make([]int32, w*h)
	parent := []int32{0} // parent[0] unused, labels start at 1

	find := func(x int32) int32 {
		for parent[x] != x {
			parent[x] = parent[parent[x]] // path halving
			x = parent[x]
		}
		return x
	}
	union := func(a, b int32) {
		ra, rb := find(a), find(b)
		if ra != rb {
			if ra < rb {
				parent[rb] = ra
			} else {
				parent[ra] = rb
			}
		}
	}

	// First pass: assign provisional labels, record equivalences between
	// the west, north-west, north and north-east neighbors.
	next := int32(1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if m.Pix[y*w+x] != binarize.Foreground {
				continue
			}
			var neighbors [4]int32
			n := 0
			if x > 0 && labels[y*w+x-1] != 0 {
				neighbors[n] = labels[y*w+x-1]
				n++
			}
			if y > 0 {
				if x > 0 && labels[(y-1)*w+x-1] != 0 {
					neighbors[n] = labels[(y-1)*w+x-1]
					n++
				}
				if labels[(y-1)*w+x] != 0 {
					neighbors[n] = labels[(y-1)*w+x]
					n++
				}
				if x+1 < w && labels[(y-1)*w+x+1] != 0 {
					neighbors[n] = labels[(y-1)*w+x+1]
					n++
				}
			}

			if n == 0 {
				labels[y*w+x] = next
				parent = append(parent, next)
				next++
				continue
			}

			minLabel := neighbors[0]
			for i := 1; i < n; i++ {
				if neighbors[i] < minLabel {
					minLabel = neighbors[i]
				}
			}
			labels[y*w+x] = minLabel
			for i := 0; i < n; i++ {
				union(minLabel, neighbors[i])
			}
		}
	}

	// Second pass: resolve labels and accumulate bounding boxes.
	byRoot := make(map[int32]*component)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := labels[y*w+x]
			if l == 0 {
				continue
			}
			root := find(l)
			c, ok := byRoot[root]
			if !ok {
				c = &component{minX: x, minY: y, maxX: x, maxY: y}
				byRoot[root] = c
			}
			if x < c.minX {
				c.minX = x
			}
			if x > c.maxX {
				c.maxX = x
			}
			if y < c.minY {
				c.minY = y
			}
			if y > c.maxY {
				c.maxY = y
			}
			c.pixels++
		}
	}

	out := make([]component, 0, len(byRoot))
	for _, c := range byRoot {
		out = append(out, *c)
	}
	return out
}
