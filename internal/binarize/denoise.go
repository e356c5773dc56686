package binarize

// Denoise applies a 3x3 median filter followed by a 2x2 morphological
// closing to the mask. The median removes isolated salt-and-pepper
// speckle, the closing bridges single-pixel gaps inside glyph strokes so
// connected-component labeling does not split characters.
func Denoise(m *Mask) *Mask {
	return close2x2(median3x3(m))
}

func median3x3(m *Mask) *Mask {
	out := NewMask(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			fg, total := 0, 0
			for dy := -1; dy <= 1; dy++ {
				yy := y + dy
				if yy < 0 || yy >= m.Height {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					xx := x + dx
					if xx < 0 || xx >= m.Width {
						continue
					}
					total++
					if m.Pix[yy*m.Width+xx] == Foreground {
						fg++
					}
				}
			}
			if fg*2 > total {
				out.Pix[y*m.Width+x] = Foreground
			}
		}
	}
	return out
}

// close2x2 dilates then erodes with a 2x2 structuring element.
func close2x2(m *Mask) *Mask {
	dilated := NewMask(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if anyForeground(m, x-1, y-1, x, y) {
				dilated.Pix[y*m.Width+x] = Foreground
			}
		}
	}

	out := NewMask(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if allForeground(dilated, x, y, x+1, y+1) {
				out.Pix[y*m.Width+x] = Foreground
			}
		}
	}
	return out
}

func anyForeground(m *Mask, x0, y0, x1, y1 int) bool {
	for y := y0; y <= y1; y++ {
		if y < 0 || y >= m.Height {
			continue
		}
		for x := x0; x <= x1; x++ {
			if x < 0 || x >= m.Width {
				continue
			}
			if m.Pix[y*m.Width+x] == Foreground {
				return true
			}
		}
	}
	return false
}

func allForeground(m *Mask, x0, y0, x1, y1 int) bool {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if y < 0 || y >= m.Height || x < 0 || x >= m.Width {
				return false
			}
			if m.Pix[y*m.Width+x] != Foreground {
				return false
			}
		}
	}
	return true
}
