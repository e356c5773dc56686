package binarize

// Foreground and Background are the two mask pixel classes.
const (
	Background uint8 = 0
	Foreground uint8 = 1
)

// Mask is a per-pixel foreground/background classification with the same
// dimensions as its source image. One byte per pixel, values are always
// Foreground or Background, so every pixel is classified exactly once.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask allocates an all-background mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At returns the class of the pixel at (x, y).
func (m *Mask) At(x, y int) uint8 {
	return m.Pix[y*m.Width+x]
}

// Set assigns the class of the pixel at (x, y).
func (m *Mask) Set(x, y int, v uint8) {
	m.Pix[y*m.Width+x] = v
}

// ForegroundCount returns the number of foreground pixels.
func (m *Mask) ForegroundCount() int {
	n := 0
	for _, p := range m.Pix {
		if p == Foreground {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &Mask{Width: m.Width, Height: m.Height, Pix: pix}
}
