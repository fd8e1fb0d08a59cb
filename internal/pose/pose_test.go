package pose

import (
	"math"
	"testing"

	"checkerpose/internal/camera"
	"checkerpose/internal/grid"
	"checkerpose/pkg/geometry"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deviceCamera() camera.Model {
	return camera.New(517.65350405, 518.2757208, 319.06418667, 238.78380146,
		0.209547937, -1.21926310, -0.00129976649, 0.00252504602, 2.26952234)
}

var truth = Pose{
	RVec: r3.Vector{X: 0.2, Y: -0.3, Z: 0.1},
	TVec: r3.Vector{X: -3.5, Y: -2.5, Z: 20},
}

func boardGrid(t *testing.T) grid.Grid {
	t.Helper()
	g, err := grid.Build(6, 8)
	require.NoError(t, err)
	return g
}

func iterative() Options {
	opts := DefaultOptions()
	opts.Method = MethodIterative
	return opts
}

func assertPoseNear(t *testing.T, want, got Pose, rotTol, transTol float64) {
	t.Helper()
	assert.InDelta(t, want.RVec.X, got.RVec.X, rotTol)
	assert.InDelta(t, want.RVec.Y, got.RVec.Y, rotTol)
	assert.InDelta(t, want.RVec.Z, got.RVec.Z, rotTol)
	assert.InDelta(t, want.TVec.X, got.TVec.X, transTol)
	assert.InDelta(t, want.TVec.Y, got.TVec.Y, transTol)
	assert.InDelta(t, want.TVec.Z, got.TVec.Z, transTol)
}

func TestSolveRecoversPose(t *testing.T) {
	g := boardGrid(t)
	cam := deviceCamera()
	corners := truth.Project(cam, g.Points())

	for _, method := range []Method{MethodIterative, MethodRANSAC} {
		t.Run(method.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Method = method
			p, err := Solve(g, corners, cam, opts)
			require.NoError(t, err)
			assertPoseNear(t, truth, p, 1e-6, 1e-5)
			assert.Equal(t, 48, p.Inliers)
			assert.Less(t, p.RMSError, 1e-6)
		})
	}
}

func TestSolveWithNoise(t *testing.T) {
	g := boardGrid(t)
	cam := deviceCamera()
	corners := truth.Project(cam, g.Points())
	for i := range corners {
		// Deterministic sub-pixel jitter.
		corners[i].X += 0.2 * math.Sin(float64(7*i))
		corners[i].Y += 0.2 * math.Cos(float64(11*i))
	}

	p, err := Solve(g, corners, cam, iterative())
	require.NoError(t, err)
	assert.InDelta(t, truth.TVec.Z, p.TVec.Z, 0.01*truth.TVec.Z)
	assert.Less(t, p.RMSError, 0.3)
}

func TestRANSACRejectsOutliers(t *testing.T) {
	g := boardGrid(t)
	cam := deviceCamera()
	corners := truth.Project(cam, g.Points())
	for _, i := range []int{3, 20, 41} {
		corners[i] = corners[i].Add(geometry.Point2D{X: 40, Y: -25})
	}

	p, err := Solve(g, corners, cam, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 45, p.Inliers)
	assertPoseNear(t, truth, p, 1e-5, 1e-4)

	plain, err := Solve(g, corners, cam, iterative())
	require.NoError(t, err)
	assert.Greater(t, plain.RMSError, 1.0)
}

func TestSolveIsRepeatable(t *testing.T) {
	g := boardGrid(t)
	cam := deviceCamera()
	corners := truth.Project(cam, g.Points())
	corners[5] = corners[5].Add(geometry.Point2D{X: 30})

	a, err := Solve(g, corners, cam, DefaultOptions())
	require.NoError(t, err)
	b, err := Solve(g, corners, cam, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSolveCorrespondenceMismatch(t *testing.T) {
	g := boardGrid(t)
	cam := deviceCamera()
	corners := truth.Project(cam, g.Points())

	_, err := Solve(g, corners[:47], cam, DefaultOptions())
	assert.ErrorIs(t, err, ErrCorrespondenceMismatch)

	_, err = Solve(g, append(corners, corners[0]), cam, DefaultOptions())
	assert.ErrorIs(t, err, ErrCorrespondenceMismatch)
}

func TestSolveDegenerate(t *testing.T) {
	cam := deviceCamera()

	t.Run("too few points", func(t *testing.T) {
		g, err := grid.Build(1, 3)
		require.NoError(t, err)
		_, err = Solve(g, truth.Project(cam, g.Points()), cam, iterative())
		assert.ErrorIs(t, err, ErrDegenerate)
	})

	t.Run("collinear", func(t *testing.T) {
		g, err := grid.Build(1, 8)
		require.NoError(t, err)
		for _, opts := range []Options{iterative(), DefaultOptions()} {
			_, err = Solve(g, truth.Project(cam, g.Points()), cam, opts)
			assert.ErrorIs(t, err, ErrDegenerate)
		}
	})

	t.Run("non-finite corner", func(t *testing.T) {
		g := boardGrid(t)
		corners := truth.Project(cam, g.Points())
		corners[9] = geometry.Point2D{X: math.NaN(), Y: 1}
		_, err := Solve(g, corners, cam, iterative())
		assert.ErrorIs(t, err, ErrDegenerate)
	})

	t.Run("no consensus", func(t *testing.T) {
		g := boardGrid(t)
		corners := make([]geometry.Point2D, g.Len())
		for i := range corners {
			// Scrambled positions that fit no projective view of the grid.
			corners[i] = geometry.Point2D{
				X: 320 + 200*math.Sin(float64(i*i)),
				Y: 240 + 150*math.Cos(float64(3*i*i+1)),
			}
		}
		opts := DefaultOptions()
		opts.RansacThreshold = 0.5
		_, err := Solve(g, corners, cam, opts)
		assert.ErrorIs(t, err, ErrDegenerate)
	})
}

func TestSolveNonPlanarObject(t *testing.T) {
	cam := camera.New(500, 500, 320, 240, 0, 0, 0, 0, 0)
	obj := []r3.Vector{
		{}, {X: 2}, {Y: 2}, {X: 2, Y: 2},
		{Z: 2}, {X: 2, Z: 2}, {Y: 2, Z: 2}, {X: 2, Y: 2, Z: 2},
		{X: 1, Y: 0.5, Z: 1.5},
	}
	want := Pose{RVec: r3.Vector{X: -0.1, Y: 0.4, Z: 0.05}, TVec: r3.Vector{X: -1, Y: -1, Z: 12}}

	p, err := SolvePoints(obj, want.Project(cam, obj), cam, iterative())
	require.NoError(t, err)
	assertPoseNear(t, want, p, 1e-6, 1e-5)
}

func TestPoseProjectAndError(t *testing.T) {
	g := boardGrid(t)
	cam := deviceCamera()
	corners := truth.Project(cam, g.Points())

	assert.InDelta(t, 0, truth.ReprojectionError(g, corners, cam), 1e-9)

	origin := truth.Project(cam, []r3.Vector{{}})[0]
	assert.Equal(t, corners[0], origin)

	cam0 := truth.Transform(r3.Vector{})
	assert.Equal(t, truth.TVec, cam0)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("RANSAC")
	require.NoError(t, err)
	assert.Equal(t, MethodRANSAC, m)

	m, err = ParseMethod("iterative")
	require.NoError(t, err)
	assert.Equal(t, MethodIterative, m)

	_, err = ParseMethod("epnp")
	assert.Error(t, err)
}
