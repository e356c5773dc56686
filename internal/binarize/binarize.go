// Package binarize converts grayscale document images into binary masks
// with locally-adaptive Sauvola thresholding.
//
// Document photographs rarely have uniform illumination, so a single
// global threshold either drops faint text or floods shadowed regions.
// Sauvola computes a per-pixel threshold from the local window mean and
// standard deviation:
//
//	t(x,y) = m(x,y) * (1 + k * (s(x,y)/R - 1))
//
// Both statistics come from integral images, so cost is independent of
// the window size. When the adaptive pass degenerates into an all-
// foreground or all-background mask on non-degenerate input, the stage
// falls back to global Otsu thresholding and flags the fallback.
package binarize

import (
	"fmt"
	"math"

	"docpipe/internal/raster"
)

// R is the Sauvola dynamic range normalization for 8-bit images.
const R = 128.0

// Options controls the adaptive thresholding pass.
type Options struct {
	// WindowSize is the local neighborhood extent in pixels. Must be odd
	// and at least 3.
	WindowSize int

	// K is the Sauvola sensitivity, typically 0.2 to 0.5.
	K float64

	// Invert treats bright pixels as ink for light-on-dark documents.
	// The luminance is flipped before thresholding.
	Invert bool
}

// DefaultOptions mirrors the documented configuration defaults.
func DefaultOptions() Options {
	return Options{WindowSize: 31, K: 0.34}
}

// Result carries the mask plus fallback diagnostics.
type Result struct {
	Mask *Mask

	// OtsuFallback is set when the adaptive pass produced a degenerate
	// mask and the global Otsu threshold was used instead.
	OtsuFallback bool

	// Threshold is the global threshold used, only set on fallback.
	Threshold uint8
}

// Binarize classifies every pixel of a grayscale image as foreground or
// background. The output mask always has the same dimensions as the input.
func Binarize(img *raster.Image, opts Options) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if img.Space != raster.Gray {
		return nil, fmt.Errorf("binarize: input must be grayscale, got %s", img.Space)
	}
	if opts.WindowSize < 3 || opts.WindowSize%2 == 0 {
		return nil, fmt.Errorf("binarize: window size must be odd and >= 3, got %d", opts.WindowSize)
	}
	if opts.K <= 0 {
		return nil, fmt.Errorf("binarize: k must be positive, got %g", opts.K)
	}

	src := img
	if opts.Invert {
		src = invert(img)
	}

	mask := sauvola(src, opts)

	// A mask that classifies everything one way carries no layout signal.
	// Non-degenerate inputs (more than one distinct gray level) get the
	// global fallback instead.
	fg := mask.ForegroundCount()
	if (fg == 0 || fg == len(mask.Pix)) && !flat(src) {
		threshold := otsuThreshold(src)
		mask = globalThreshold(src, threshold)
		return &Result{Mask: mask, OtsuFallback: true, Threshold: threshold}, nil
	}

	return &Result{Mask: mask}, nil
}

// sauvola runs the adaptive pass over integral images of the pixel values
// and their squares.
func sauvola(img *raster.Image, opts Options) *Mask {
	w, h := img.Width, img.Height
	mask := NewMask(w, h)

	// Integral images with a one-pixel zero border.
	iw := w + 1
	sum := make([]float64, iw*(h+1))
	sqSum := make([]float64, iw*(h+1))
	for y := 1; y <= h; y++ {
		var rowSum, rowSq float64
		for x := 1; x <= w; x++ {
			p := float64(img.Pix[(y-1)*w+(x-1)])
			rowSum += p
			rowSq += p * p
			sum[y*iw+x] = sum[(y-1)*iw+x] + rowSum
			sqSum[y*iw+x] = sqSum[(y-1)*iw+x] + rowSq
		}
	}

	half := opts.WindowSize / 2
	for y := 0; y < h; y++ {
		y0 := max(0, y-half)
		y1 := min(h-1, y+half)
		for x := 0; x < w; x++ {
			x0 := max(0, x-half)
			x1 := min(w-1, x+half)
			area := float64((x1 - x0 + 1) * (y1 - y0 + 1))

			s := sum[(y1+1)*iw+(x1+1)] - sum[y0*iw+(x1+1)] - sum[(y1+1)*iw+x0] + sum[y0*iw+x0]
			sq := sqSum[(y1+1)*iw+(x1+1)] - sqSum[y0*iw+(x1+1)] - sqSum[(y1+1)*iw+x0] + sqSum[y0*iw+x0]

			mean := s / area
			variance := sq/area - mean*mean
			if variance < 0 {
				variance = 0
			}
			stddev := math.Sqrt(variance)

			t := mean * (1 + opts.K*(stddev/R-1))

			if float64(img.Pix[y*w+x]) < t {
				mask.Pix[y*w+x] = Foreground
			}
		}
	}
	return mask
}

// otsuThreshold picks the global threshold maximizing between-class
// variance over the luminance histogram.
func otsuThreshold(img *raster.Image) uint8 {
	var hist [256]int
	for _, p := range img.Pix {
		hist[p]++
	}
	total := len(img.Pix)

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * float64(c)
	}

	var sumBg, wBg float64
	bestT, bestVar := 0, -1.0
	for t := 0; t < 256; t++ {
		wBg += float64(hist[t])
		if wBg == 0 {
			continue
		}
		wFg := float64(total) - wBg
		if wFg == 0 {
			break
		}
		sumBg += float64(t) * float64(hist[t])
		mBg := sumBg / wBg
		mFg := (sumAll - sumBg) / wFg
		between := wBg * wFg * (mBg - mFg) * (mBg - mFg)
		if between > bestVar {
			bestVar = between
			bestT = t
		}
	}
	return uint8(bestT)
}

func globalThreshold(img *raster.Image, threshold uint8) *Mask {
	mask := NewMask(img.Width, img.Height)
	for i, p := range img.Pix {
		if p <= threshold {
			mask.Pix[i] = Foreground
		}
	}
	return mask
}

// invert flips the luminance so light-on-dark input can reuse the
// dark-is-ink classification.
func invert(img *raster.Image) *raster.Image {
	out := img.Clone()
	for i, p := range out.Pix {
		out.Pix[i] = 0xff - p
	}
	return out
}

// flat reports whether the image has a single gray level, in which case
// any threshold is as good as any other and no fallback helps.
func flat(img *raster.Image) bool {
	first := img.Pix[0]
	for _, p := range img.Pix[1:] {
		if p != first {
			return false
		}
	}
	return true
}
