// Package raster holds the in-memory decoded image representation shared
// by every pipeline stage.
//
// Each stage receives an *Image, treats it as its own, and produces a new
// buffer for the next stage. No stage mutates a buffer it did not create,
// which keeps concurrent runs over alternate parameter sets safe.
//
// Supported input encodings: PNG, JPEG, BMP and TIFF. BMP/TIFF support
// comes from golang.org/x/image and is registered on import.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"io"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ColorSpace identifies the channel layout of an Image buffer.
type ColorSpace int

const (
	// Gray is a single 8-bit luminance channel per pixel.
	Gray ColorSpace = iota
	// RGB is three 8-bit channels per pixel, no alpha.
	RGB
)

// Channels returns the number of bytes per pixel for the color space.
func (c ColorSpace) Channels() int {
	if c == RGB {
		return 3
	}
	return 1
}

func (c ColorSpace) String() string {
	if c == RGB {
		return "rgb"
	}
	return "grayscale"
}

// Image is an owned, decoded raster buffer.
//
// Invariant: Width > 0, Height > 0 and len(Pix) == Width*Height*channels.
// Validate reports any violation.
type Image struct {
	Width  int
	Height int
	Space  ColorSpace
	Pix    []uint8
}

// New allocates a zeroed image buffer for the given dimensions.
func New(width, height int, space ColorSpace) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("raster: %w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return &Image{
		Width:  width,
		Height: height,
		Space:  space,
		Pix:    make([]uint8, width*height*space.Channels()),
	}, nil
}

// Decode reads an encoded raster image (PNG, JPEG, BMP, TIFF) and converts
// it into an owned buffer in the requested color space.
func Decode(r io.Reader, space ColorSpace) (*Image, error) {
	const op = "Decode"

	src, format, err := image.Decode(r)
	if err != nil {
		return nil, WrapRasterError(op, ErrDecodeFailed, err.Error())
	}

	img, err := FromImage(src, space)
	if err != nil {
		return nil, WrapRasterError(op, err, fmt.Sprintf("format: %s", format))
	}
	return img, nil
}

// FromImage converts a decoded image.Image into an owned buffer.
func FromImage(src image.Image, space ColorSpace) (*Image, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}

	img, err := New(w, h, space)
	if err != nil {
		return nil, err
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			switch space {
			case RGB:
				r, g, b, _ := src.At(x, y).RGBA()
				img.Pix[i] = uint8(r >> 8)
				img.Pix[i+1] = uint8(g >> 8)
				img.Pix[i+2] = uint8(b >> 8)
				i += 3
			default:
				img.Pix[i] = uint8(color.GrayModel.Convert(src.At(x, y)).(color.Gray).Y)
				i++
			}
		}
	}
	return img, nil
}

// Validate checks the buffer invariants.
func (m *Image) Validate() error {
	if m == nil {
		return ErrEmptyImage
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("raster: %w: %dx%d", ErrInvalidDimensions, m.Width, m.Height)
	}
	if want := m.Width * m.Height * m.Space.Channels(); len(m.Pix) != want {
		return fmt.Errorf("raster: %w: have %d bytes, want %d", ErrBufferMismatch, len(m.Pix), want)
	}
	return nil
}

// Clone returns a deep copy with its own pixel buffer.
func (m *Image) Clone() *Image {
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Width: m.Width, Height: m.Height, Space: m.Space, Pix: pix}
}

// GrayAt returns the luminance of the pixel at (x, y). For RGB buffers it
// uses the BT.601 weights, matching image/color.GrayModel.
func (m *Image) GrayAt(x, y int) uint8 {
	if m.Space == RGB {
		i := (y*m.Width + x) * 3
		r, g, b := uint32(m.Pix[i]), uint32(m.Pix[i+1]), uint32(m.Pix[i+2])
		return uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
	}
	return m.Pix[y*m.Width+x]
}

// Grayscale returns a single-channel copy of the image. Gray input is
// deep-copied so the result is always an independently owned buffer.
func (m *Image) Grayscale() *Image {
	if m.Space == Gray {
		return m.Clone()
	}
	out := &Image{
		Width:  m.Width,
		Height: m.Height,
		Space:  Gray,
		Pix:    make([]uint8, m.Width*m.Height),
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			out.Pix[y*m.Width+x] = m.GrayAt(x, y)
		}
	}
	return out
}

// Crop returns a new buffer holding the given sub-rectangle. The rectangle
// is clamped to the image bounds; an empty intersection is an error.
func (m *Image) Crop(x, y, w, h int) (*Image, error) {
	const op = "Crop"

	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > m.Width {
		w = m.Width - x
	}
	if y+h > m.Height {
		h = m.Height - y
	}
	if w <= 0 || h <= 0 {
		return nil, WrapRasterError(op, ErrInvalidDimensions, fmt.Sprintf("crop %d,%d %dx%d outside %dx%d", x, y, w, h, m.Width, m.Height))
	}

	ch := m.Space.Channels()
	out := &Image{Width: w, Height: h, Space: m.Space, Pix: make([]uint8, w*h*ch)}
	for row := 0; row < h; row++ {
		srcOff := ((y+row)*m.Width + x) * ch
		dstOff := row * w * ch
		copy(out.Pix[dstOff:dstOff+w*ch], m.Pix[srcOff:srcOff+w*ch])
	}
	return out, nil
}

// ToImage exposes the buffer as an image.Image for re-encoding. The
// returned value shares the pixel buffer and must not outlive the Image.
func (m *Image) ToImage() image.Image {
	switch m.Space {
	case RGB:
		rgba := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				i := (y*m.Width + x) * 3
				rgba.SetRGBA(x, y, color.RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: 0xff})
			}
		}
		return rgba
	default:
		gray := &image.Gray{Pix: m.Pix, Stride: m.Width, Rect: image.Rect(0, 0, m.Width, m.Height)}
		return gray
	}
}
