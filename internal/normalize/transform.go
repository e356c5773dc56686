package normalize

import (
	"math"

	"golang.org/x/image/math/f64"
)

// TransformMatrix is a 2D affine transform in row-major order:
//
//	| A B C |
//	| D E F |
//
// mapping source coordinates to destination coordinates.
type TransformMatrix struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transform.
func Identity() TransformMatrix {
	return TransformMatrix{A: 1, E: 1}
}

// RotationAbout returns a transform rotating by angle degrees
// counter-clockwise about the point (cx, cy).
func RotationAbout(angleDeg, cx, cy float64) TransformMatrix {
	rad := angleDeg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return TransformMatrix{
		A: cos, B: -sin, C: cx - cx*cos + cy*sin,
		D: sin, E: cos, F: cy - cx*sin - cy*cos,
	}
}

// Det returns the determinant of the linear part. A transform with a zero
// determinant is degenerate and must not be applied.
func (t TransformMatrix) Det() float64 {
	return t.A*t.E - t.B*t.D
}

// Apply maps a source point through the transform.
func (t TransformMatrix) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.B*y + t.C, t.D*x + t.E*y + t.F
}

// Inverse returns the inverse transform. The caller must ensure Det() != 0.
func (t TransformMatrix) Inverse() TransformMatrix {
	det := t.Det()
	ia := t.E / det
	ib := -t.B / det
	id := -t.D / det
	ie := t.A / det
	return TransformMatrix{
		A: ia, B: ib, C: -(ia*t.C + ib*t.F),
		D: id, E: ie, F: -(id*t.C + ie*t.F),
	}
}

// Aff3 converts the matrix into the x/image draw representation.
func (t TransformMatrix) Aff3() f64.Aff3 {
	return f64.Aff3{t.A, t.B, t.C, t.D, t.E, t.F}
}
