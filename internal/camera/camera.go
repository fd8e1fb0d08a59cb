// Package camera holds the fixed optical model of the capture device:
// pinhole intrinsics and Brown-Conrady lens distortion.
package camera

import (
	"math"

	"checkerpose/pkg/geometry"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Model is an immutable pinhole camera with radial (k1, k2, k3) and
// tangential (p1, p2) distortion, using the OpenCV convention.
type Model struct {
	FX, FY float64
	CX, CY float64

	K1, K2, K3 float64
	P1, P2     float64
}

// New builds a camera model from calibration constants. The values are
// trusted and not validated.
func New(fx, fy, cx, cy, k1, k2, p1, p2, k3 float64) Model {
	return Model{
		FX: fx, FY: fy, CX: cx, CY: cy,
		K1: k1, K2: k2, K3: k3,
		P1: p1, P2: p2,
	}
}

// Matrix returns the 3x3 intrinsic matrix.
func (m Model) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m.FX, 0, m.CX,
		0, m.FY, m.CY,
		0, 0, 1,
	})
}

// Distortion returns the coefficients in OpenCV order [k1 k2 p1 p2 k3].
func (m Model) Distortion() []float64 {
	return []float64{m.K1, m.K2, m.P1, m.P2, m.K3}
}

// HasDistortion reports whether any distortion coefficient is non-zero.
func (m Model) HasDistortion() bool {
	return m.K1 != 0 || m.K2 != 0 || m.K3 != 0 || m.P1 != 0 || m.P2 != 0
}

// Distort applies the lens model to undistorted normalized coordinates.
//
//	x_d = x·(1 + k1·r² + k2·r⁴ + k3·r⁶) + 2·p1·x·y + p2·(r² + 2·x²)
//	y_d = y·(1 + k1·r² + k2·r⁴ + k3·r⁶) + p1·(r² + 2·y²) + 2·p2·x·y
func (m Model) Distort(x, y float64) (float64, float64) {
	r2 := x*x + y*y
	radial := 1 + r2*(m.K1+r2*(m.K2+r2*m.K3))
	xd := x*radial + 2*m.P1*x*y + m.P2*(r2+2*x*x)
	yd := y*radial + m.P1*(r2+2*y*y) + 2*m.P2*x*y
	return xd, yd
}

// ToPixel maps undistorted normalized coordinates to pixel coordinates.
func (m Model) ToPixel(x, y float64) geometry.Point2D {
	xd, yd := m.Distort(x, y)
	return geometry.Point2D{X: m.FX*xd + m.CX, Y: m.FY*yd + m.CY}
}

// Project maps a point in the camera frame to pixel coordinates. Points on
// or behind the image plane produce non-finite coordinates.
func (m Model) Project(p r3.Vector) geometry.Point2D {
	if p.Z <= 0 {
		return geometry.Point2D{X: math.NaN(), Y: math.NaN()}
	}
	return m.ToPixel(p.X/p.Z, p.Y/p.Z)
}

// Undistort maps a pixel to undistorted normalized coordinates, inverting
// the distortion model with Newton-Raphson iterations.
func (m Model) Undistort(u, v float64) geometry.Point2D {
	xd := (u - m.CX) / m.FX
	yd := (v - m.CY) / m.FY
	if !m.HasDistortion() {
		return geometry.Point2D{X: xd, Y: yd}
	}

	const (
		maxIterations = 20
		tolerance     = 1e-12
	)

	// Start with the distorted point as initial guess
	x, y := xd, yd
	for i := 0; i < maxIterations; i++ {
		r2 := x*x + y*y
		radial := 1 + r2*(m.K1+r2*(m.K2+r2*m.K3))
		ex := x*radial + 2*m.P1*x*y + m.P2*(r2+2*x*x) - xd
		ey := y*radial + m.P1*(r2+2*y*y) + 2*m.P2*x*y - yd
		if ex*ex+ey*ey < tolerance*tolerance {
			break
		}

		// d(radial)/dx and d(radial)/dy
		dr := 2 * (m.K1 + 2*m.K2*r2 + 3*m.K3*r2*r2)
		drdx, drdy := x*dr, y*dr

		j00 := radial + x*drdx + 2*m.P1*y + 6*m.P2*x
		j01 := x*drdy + 2*m.P1*x + 2*m.P2*y
		j10 := y*drdx + 2*m.P1*x + 2*m.P2*y
		j11 := radial + y*drdy + 6*m.P1*y + 2*m.P2*x

		det := j00*j11 - j01*j10
		if det == 0 || math.IsNaN(det) {
			break
		}
		x -= (j11*ex - j01*ey) / det
		y -= (-j10*ex + j00*ey) / det
	}
	return geometry.Point2D{X: x, Y: y}
}
