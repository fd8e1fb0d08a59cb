package geometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRodriguesRoundTrip(t *testing.T) {
	vecs := []r3.Vector{
		{},
		{X: 0.1},
		{X: 0.3, Y: -0.2, Z: 0.5},
		{Y: 2.5},
		{X: 0, Y: 0, Z: math.Pi},
		{X: math.Pi / math.Sqrt2, Y: -math.Pi / math.Sqrt2},
		{Y: -math.Pi / math.Sqrt2, Z: math.Pi / math.Sqrt2},
		{X: (math.Pi - 1e-7) * 0.6, Z: (math.Pi - 1e-7) * -0.8},
	}
	for _, v := range vecs {
		r := Rodrigues(v)
		assert.InDelta(t, 1, r.Det(), 1e-12)

		back := RotationVector(r)
		again := Rodrigues(back)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				assert.InDelta(t, r[i][j], again[i][j], 1e-9, "rvec %v", v)
			}
		}
	}
}

func TestRodriguesIsOrthonormal(t *testing.T) {
	r := Rodrigues(r3.Vector{X: 0.7, Y: 0.1, Z: -0.4})
	p := r.Mul(r.T())
	id := Identity3()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, id[i][j], p[i][j], 1e-12)
		}
	}
}

func TestNearestRotation(t *testing.T) {
	r := Rodrigues(r3.Vector{X: 0.2, Y: -0.3, Z: 0.1})
	noisy := r
	noisy[0][1] += 0.01
	noisy[2][0] -= 0.02
	noisy[1][1] *= 1.05

	fixed, ok := NearestRotation(noisy)
	require.True(t, ok)
	assert.InDelta(t, 1, fixed.Det(), 1e-9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, r[i][j], fixed[i][j], 0.03)
		}
	}

	// A reflection is turned into a proper rotation.
	reflect := Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, -1}}
	fixed, ok = NearestRotation(reflect)
	require.True(t, ok)
	assert.InDelta(t, 1, fixed.Det(), 1e-9)
}

func TestFitHomographyRecoversTransform(t *testing.T) {
	want := Homography{1.2, 0.1, 30, -0.05, 0.9, 12, 0.0004, -0.0002, 1}
	var src, dst []Point2D
	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			p := Point2D{X: float64(x) * 40, Y: float64(y) * 35}
			q, ok := want.Apply(p)
			require.True(t, ok)
			src = append(src, p)
			dst = append(dst, q)
		}
	}

	h, err := FitHomography(src, dst)
	require.NoError(t, err)
	for i := range want {
		assert.InDelta(t, want[i], h[i], 1e-6, "element %d", i)
	}

	// Points on the vanishing line have no finite image.
	_, ok := want.Apply(Point2D{X: 0, Y: 5000})
	assert.False(t, ok)
}

func TestFitHomographyDegenerate(t *testing.T) {
	square := []Point2D{{0, 0}, {1, 0}, {1, 1}}
	_, err := FitHomography(square, square)
	assert.ErrorIs(t, err, ErrDegenerateHomography)

	line := []Point2D{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}}
	_, err = FitHomography(line, line)
	assert.ErrorIs(t, err, ErrDegenerateHomography)

	_, err = FitHomography(line, line[:4])
	assert.Error(t, err)
}

func TestPolygon(t *testing.T) {
	// Clockwise on screen (y down).
	square := []Point2D{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	assert.True(t, IsConvex(square))
	assert.True(t, IsConvex([]Point2D{{0, 0}, {0, 2}, {2, 2}, {2, 0}}))

	bowtie := []Point2D{{0, 0}, {2, 2}, {2, 0}, {0, 2}}
	assert.False(t, IsConvex(bowtie))

	// Collinear points have no turning direction.
	assert.False(t, IsConvex([]Point2D{{0, 0}, {1, 0}, {2, 0}}))
}

func TestPointHelpers(t *testing.T) {
	a, b := NewPoint2D(1, 2), NewPoint2D(4, 6)
	assert.InDelta(t, 5, a.Distance(b), 1e-12)
	assert.Equal(t, Point2D{X: 5, Y: 8}, a.Add(b))
	assert.InDelta(t, -2, a.Cross(b), 1e-12)
	assert.False(t, Point2D{X: math.NaN()}.IsFinite())

	c := Centroid([]Point2D{{0, 0}, {2, 0}, {2, 2}, {0, 2}})
	assert.Equal(t, Point2D{X: 1, Y: 1}, c)
}
