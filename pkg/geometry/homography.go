package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateHomography is returned when the correspondences do not
// constrain a homography (too few points or collinear configurations).
var ErrDegenerateHomography = errors.New("degenerate homography")

// Homography is a row-major 3x3 projective transform of the plane.
type Homography [9]float64

// Apply maps p through the homography. ok is false when p maps to infinity.
func (h Homography) Apply(p Point2D) (Point2D, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return Point2D{}, false
	}
	return Point2D{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// Mat3 returns the homography as a matrix.
func (h Homography) Mat3() Mat3 {
	return Mat3{{h[0], h[1], h[2]}, {h[3], h[4], h[5]}, {h[6], h[7], h[8]}}
}

// FitHomography estimates H with dst ~ H·src from four or more
// correspondences using the normalized direct linear transform.
func FitHomography(src, dst []Point2D) (Homography, error) {
	if len(src) != len(dst) {
		return Homography{}, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}
	n := len(src)
	if n < 4 {
		return Homography{}, fmt.Errorf("need at least 4 points, got %d: %w", n, ErrDegenerateHomography)
	}

	srcT, ok := normalizingTransform(src)
	if !ok {
		return Homography{}, fmt.Errorf("source points coincide: %w", ErrDegenerateHomography)
	}
	dstT, ok := normalizingTransform(dst)
	if !ok {
		return Homography{}, fmt.Errorf("target points coincide: %w", ErrDegenerateHomography)
	}

	// Each pairing gives two rows of A·h = 0.
	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		s := srcT.apply(src[i])
		d := dstT.apply(dst[i])
		a.SetRow(2*i, []float64{-s.X, -s.Y, -1, 0, 0, 0, d.X * s.X, d.X * s.Y, d.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, -s.X, -s.Y, -1, d.Y * s.X, d.Y * s.Y, d.Y})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFullV) {
		return Homography{}, fmt.Errorf("svd failed: %w", ErrDegenerateHomography)
	}
	values := svd.Values(nil)
	// A rank below 8 means the null space is not unique (collinear points).
	if len(values) < 8 || values[7] < 1e-9*values[0] {
		return Homography{}, fmt.Errorf("rank deficient system: %w", ErrDegenerateHomography)
	}

	var v mat.Dense
	svd.VTo(&v)
	var hn Homography
	for i := 0; i < 9; i++ {
		hn[i] = v.At(i, 8)
	}

	// Undo normalisation: H = Td⁻¹ · Hn · Ts
	h := dstT.inverse().Mul(hn.Mat3()).Mul(srcT.mat())
	if math.Abs(h[2][2]) < 1e-15 {
		return Homography{}, fmt.Errorf("homography at infinity: %w", ErrDegenerateHomography)
	}
	scale := 1 / h[2][2]
	return Homography{
		h[0][0] * scale, h[0][1] * scale, h[0][2] * scale,
		h[1][0] * scale, h[1][1] * scale, h[1][2] * scale,
		h[2][0] * scale, h[2][1] * scale, 1,
	}, nil
}

// similarity is the isotropic scaling and translation that moves a point
// set to zero mean and mean distance √2 from the origin.
type similarity struct {
	s, tx, ty float64
}

func normalizingTransform(pts []Point2D) (similarity, bool) {
	c := Centroid(pts)
	var meanDist float64
	for _, p := range pts {
		meanDist += p.Distance(c)
	}
	meanDist /= float64(len(pts))
	if meanDist < 1e-12 {
		return similarity{}, false
	}
	s := math.Sqrt2 / meanDist
	return similarity{s: s, tx: -s * c.X, ty: -s * c.Y}, true
}

func (t similarity) apply(p Point2D) Point2D {
	return Point2D{X: t.s*p.X + t.tx, Y: t.s*p.Y + t.ty}
}

func (t similarity) mat() Mat3 {
	return Mat3{{t.s, 0, t.tx}, {0, t.s, t.ty}, {0, 0, 1}}
}

func (t similarity) inverse() Mat3 {
	return Mat3{{1 / t.s, 0, -t.tx / t.s}, {0, 1 / t.s, -t.ty / t.s}, {0, 0, 1}}
}
