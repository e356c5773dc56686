package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestPNG(t *testing.T, w, h int, fill color.Color) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestNewRejectsInvalidDimensions(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 10},
		{"zero height", 10, 0},
		{"negative width", -3, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.w, tt.h, Gray)
			assert.ErrorIs(t, err, ErrInvalidDimensions)
		})
	}
}

func TestDecodeGrayscale(t *testing.T) {
	buf := encodeTestPNG(t, 8, 6, color.RGBA{R: 120, G: 120, B: 120, A: 255})

	img, err := Decode(buf, Gray)
	require.NoError(t, err)

	assert.Equal(t, 8, img.Width)
	assert.Equal(t, 6, img.Height)
	assert.Equal(t, Gray, img.Space)
	require.NoError(t, img.Validate())
	assert.Equal(t, uint8(120), img.GrayAt(3, 3))
}

func TestDecodeRGB(t *testing.T) {
	buf := encodeTestPNG(t, 4, 4, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	img, err := Decode(buf, RGB)
	require.NoError(t, err)

	assert.Equal(t, RGB, img.Space)
	assert.Len(t, img.Pix, 4*4*3)
	assert.Equal(t, uint8(200), img.Pix[0])
	assert.Equal(t, uint8(100), img.Pix[1])
	assert.Equal(t, uint8(50), img.Pix[2])
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not an image")), Gray)
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestValidateBufferMismatch(t *testing.T) {
	img := &Image{Width: 4, Height: 4, Space: Gray, Pix: make([]uint8, 10)}
	assert.ErrorIs(t, img.Validate(), ErrBufferMismatch)
}

func TestGrayscaleFromRGB(t *testing.T) {
	img, err := New(2, 1, RGB)
	require.NoError(t, err)
	// One red pixel, one white pixel.
	copy(img.Pix, []uint8{255, 0, 0, 255, 255, 255})

	gray := img.Grayscale()
	require.NoError(t, gray.Validate())
	assert.Equal(t, Gray, gray.Space)
	assert.Equal(t, uint8(255), gray.Pix[1])
	// BT.601 red weight is ~0.299.
	assert.InDelta(t, 76, int(gray.Pix[0]), 2)
}

func TestGrayscaleOwnsBuffer(t *testing.T) {
	img, err := New(2, 2, Gray)
	require.NoError(t, err)
	img.Pix[0] = 42

	out := img.Grayscale()
	out.Pix[0] = 99
	assert.Equal(t, uint8(42), img.Pix[0], "grayscale must not alias the source buffer")
}

func TestCrop(t *testing.T) {
	img, err := New(10, 10, Gray)
	require.NoError(t, err)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Pix[y*10+x] = uint8(y*10 + x)
		}
	}

	sub, err := img.Crop(2, 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, sub.Width)
	assert.Equal(t, 5, sub.Height)
	assert.Equal(t, uint8(3*10+2), sub.Pix[0])
	require.NoError(t, sub.Validate())
}

func TestCropClampsToBounds(t *testing.T) {
	img, err := New(10, 10, Gray)
	require.NoError(t, err)

	sub, err := img.Crop(-2, 8, 6, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, sub.Width)
	assert.Equal(t, 2, sub.Height)
}

func TestCropOutsideImage(t *testing.T) {
	img, err := New(10, 10, Gray)
	require.NoError(t, err)

	_, err = img.Crop(20, 20, 5, 5)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}
