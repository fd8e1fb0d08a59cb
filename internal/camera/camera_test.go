package camera

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func deviceModel() Model {
	return New(517.65350405, 518.2757208, 319.06418667, 238.78380146,
		0.209547937, -1.21926310, -0.00129976649, 0.00252504602, 2.26952234)
}

func TestNewKeepsValues(t *testing.T) {
	m := New(1, 2, 3, 4, 5, 6, 7, 8, 9)
	assert.Equal(t, Model{FX: 1, FY: 2, CX: 3, CY: 4, K1: 5, K2: 6, P1: 7, P2: 8, K3: 9}, m)
	assert.Equal(t, []float64{5, 6, 7, 8, 9}, m.Distortion())

	k := m.Matrix()
	assert.Equal(t, 1.0, k.At(0, 0))
	assert.Equal(t, 2.0, k.At(1, 1))
	assert.Equal(t, 3.0, k.At(0, 2))
	assert.Equal(t, 4.0, k.At(1, 2))
	assert.Equal(t, 1.0, k.At(2, 2))
	assert.Equal(t, 0.0, k.At(1, 0))
}

func TestProjectPrincipalPoint(t *testing.T) {
	m := deviceModel()
	p := m.Project(r3.Vector{Z: 10})
	assert.InDelta(t, m.CX, p.X, 1e-9)
	assert.InDelta(t, m.CY, p.Y, 1e-9)
}

func TestProjectBehindCamera(t *testing.T) {
	p := deviceModel().Project(r3.Vector{X: 1, Y: 1, Z: -1})
	assert.False(t, p.IsFinite())
}

func TestProjectWithoutDistortion(t *testing.T) {
	m := New(500, 500, 320, 240, 0, 0, 0, 0, 0)
	p := m.Project(r3.Vector{X: 1, Y: -2, Z: 10})
	assert.InDelta(t, 370, p.X, 1e-9)
	assert.InDelta(t, 140, p.Y, 1e-9)
}

func TestUndistortInvertsProjection(t *testing.T) {
	m := deviceModel()
	for _, pt := range []r3.Vector{
		{X: 0, Y: 0, Z: 1},
		{X: 0.1, Y: -0.05, Z: 1},
		{X: -0.3, Y: 0.2, Z: 1},
		{X: 0.45, Y: 0.3, Z: 1},
		{X: -2, Y: 1.5, Z: 8},
	} {
		px := m.Project(pt)
		n := m.Undistort(px.X, px.Y)
		assert.InDelta(t, pt.X/pt.Z, n.X, 1e-9, "x for %v", pt)
		assert.InDelta(t, pt.Y/pt.Z, n.Y, 1e-9, "y for %v", pt)
	}
}

func TestDistortIdentityWithZeroCoefficients(t *testing.T) {
	m := New(500, 500, 320, 240, 0, 0, 0, 0, 0)
	assert.False(t, m.HasDistortion())
	x, y := m.Distort(0.25, -0.4)
	assert.Equal(t, 0.25, x)
	assert.Equal(t, -0.4, y)

	n := m.Undistort(445, 40)
	assert.InDelta(t, 0.25, n.X, 1e-12)
	assert.InDelta(t, -0.4, n.Y, 1e-12)
	assert.False(t, math.IsNaN(n.X))
}
