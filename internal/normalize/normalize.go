// Package normalize estimates and corrects document skew.
//
// Skew is estimated by projection-profile variance maximization: dark
// pixels are projected onto rows under a set of candidate rotations, and
// the angle whose profile has the highest variance wins. Text lines
// produce sharply peaked profiles when upright, so the variance maximum
// tracks the true skew closely. A coarse one-degree sweep over (-45, 45]
// is refined at 0.1 degree steps around the best candidate.
package normalize

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"docpipe/internal/raster"
)

const (
	// MinAngle and MaxAngle bound the detectable skew range in degrees.
	MinAngle = -45.0
	MaxAngle = 45.0

	// coarseStep and fineStep are the sweep resolutions in degrees.
	coarseStep = 1.0
	fineStep   = 0.1

	// sampleTarget caps the number of dark pixels fed into the sweep so
	// estimation cost stays flat for large inputs.
	sampleTarget = 20000

	// DefaultSignalThreshold is the minimum relative variance gain over
	// the unrotated profile required to trust the estimate.
	DefaultSignalThreshold = 0.05
)

// Result carries the normalized image plus deskew diagnostics.
type Result struct {
	// Image is the deskewed buffer. When no reliable skew signal is
	// found this is the unmodified input.
	Image *raster.Image

	// Angle is the estimated skew in degrees, 0 when not detected.
	Angle float64

	// Transform is the applied correction; identity when Angle is 0.
	Transform TransformMatrix

	// SignalStrength is the relative variance gain of the best candidate
	// over the unrotated profile.
	SignalStrength float64

	// LowConfidence is set when the signal was below the threshold and
	// the image was passed through unchanged.
	LowConfidence bool
}

// Normalizer estimates skew and resamples the corrected image.
type Normalizer struct {
	// SignalThreshold overrides DefaultSignalThreshold when positive.
	SignalThreshold float64
}

// Normalize deskews a grayscale image. It never fails on weak input: when
// the skew signal is unreliable the original image is returned with a
// low-confidence flag so downstream stages can tolerate residual skew.
func (n *Normalizer) Normalize(img *raster.Image) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	gray := img
	if img.Space != raster.Gray {
		gray = img.Grayscale()
	}

	angle, strength := estimateSkew(gray)

	threshold := n.SignalThreshold
	if threshold <= 0 {
		threshold = DefaultSignalThreshold
	}

	if strength < threshold || angle == 0 {
		return &Result{
			Image:          gray,
			Angle:          0,
			Transform:      Identity(),
			SignalStrength: strength,
			LowConfidence:  strength < threshold,
		}, nil
	}

	// Rotate by the negated estimate to bring text lines level.
	cx := float64(gray.Width) / 2
	cy := float64(gray.Height) / 2
	t := RotationAbout(-angle, cx, cy)

	out := rotate(gray, t)
	return &Result{
		Image:          out,
		Angle:          angle,
		Transform:      t,
		SignalStrength: strength,
	}, nil
}

// estimateSkew returns the best angle in degrees and the relative variance
// gain over the unrotated profile.
func estimateSkew(img *raster.Image) (float64, float64) {
	xs, ys := samplePoints(img)
	if len(xs) < 32 {
		return 0, 0
	}

	base := profileVariance(xs, ys, 0, img.Height)
	if base <= 0 {
		base = 1
	}

	best, bestVar := 0.0, base
	for a := MinAngle + coarseStep; a <= MaxAngle; a += coarseStep {
		if v := profileVariance(xs, ys, a, img.Height); v > bestVar {
			best, bestVar = a, v
		}
	}
	for a := best - coarseStep; a <= best+coarseStep; a += fineStep {
		if a <= MinAngle || a > MaxAngle {
			continue
		}
		if v := profileVariance(xs, ys, a, img.Height); v > bestVar {
			best, bestVar = a, v
		}
	}

	strength := (bestVar - base) / base
	return best, strength
}

// samplePoints collects dark pixel coordinates, subsampled toward
// sampleTarget. Darkness is judged against the global mean luminance.
func samplePoints(img *raster.Image) ([]float64, []float64) {
	var sum uint64
	for _, p := range img.Pix {
		sum += uint64(p)
	}
	mean := uint8(sum / uint64(len(img.Pix)))
	// Bias below the mean so background noise is excluded.
	cutoff := uint8(float64(mean) * 0.7)

	stride := 1
	if total := img.Width * img.Height; total > sampleTarget*4 {
		stride = int(math.Sqrt(float64(total) / float64(sampleTarget)))
	}

	var xs, ys []float64
	for y := 0; y < img.Height; y += stride {
		row := y * img.Width
		for x := 0; x < img.Width; x += stride {
			if img.Pix[row+x] < cutoff {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}
	return xs, ys
}

// profileVariance shears the sample points by angle degrees and measures
// the variance of the resulting row-occupancy histogram.
func profileVariance(xs, ys []float64, angleDeg float64, height int) float64 {
	rad := angleDeg * math.Pi / 180
	tan := math.Tan(rad)

	bins := make([]float64, height)
	n := 0
	for i := range xs {
		// Vertical shear approximates rotation for profile purposes and
		// avoids resampling inside the sweep.
		r := int(ys[i] - xs[i]*tan)
		if r < 0 || r >= height {
			continue
		}
		bins[r]++
		n++
	}
	if n == 0 {
		return 0
	}

	mean := float64(n) / float64(height)
	var v float64
	for _, b := range bins {
		d := b - mean
		v += d * d
	}
	return v / float64(height)
}

// rotate resamples the image through the transform with bilinear
// interpolation. Output dimensions match the input; uncovered pixels are
// filled with white so they read as background downstream.
func rotate(img *raster.Image, t TransformMatrix) *raster.Image {
	src := img.ToImage()
	dst := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	for i := range dst.Pix {
		dst.Pix[i] = 0xff
	}

	draw.BiLinear.Transform(dst, t.Aff3(), src, src.Bounds(), draw.Src, nil)

	return &raster.Image{
		Width:  img.Width,
		Height: img.Height,
		Space:  raster.Gray,
		Pix:    dst.Pix,
	}
}
