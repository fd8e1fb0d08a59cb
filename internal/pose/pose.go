// Package pose recovers the camera pose relative to the reference grid from
// detected image corners.
package pose

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"checkerpose/internal/camera"
	"checkerpose/internal/grid"
	"checkerpose/pkg/geometry"

	"github.com/golang/geo/r3"
)

var (
	// ErrCorrespondenceMismatch means the corner and grid point counts differ.
	ErrCorrespondenceMismatch = errors.New("corner count does not match grid")
	// ErrDegenerate means no pose could be recovered from the correspondences.
	ErrDegenerate = errors.New("degenerate pose")
)

// Method selects the solver.
type Method int

const (
	// MethodIterative fits all correspondences: linear initialisation
	// followed by Levenberg-Marquardt refinement.
	MethodIterative Method = iota
	// MethodRANSAC fits minimal subsets, keeps the largest consensus set and
	// refits on it.
	MethodRANSAC
)

func (m Method) String() string {
	switch m {
	case MethodIterative:
		return "iterative"
	case MethodRANSAC:
		return "ransac"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses a method name as used in configuration files.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "iterative", "":
		return MethodIterative, nil
	case "ransac":
		return MethodRANSAC, nil
	}
	return 0, fmt.Errorf("unknown pose method %q", s)
}

// Options tunes Solve.
type Options struct {
	Method Method

	RansacIterations int
	RansacThreshold  float64 // inlier reprojection error, pixels
	Seed             int64   // RANSAC sampling seed; fixed so results are repeatable

	MaxIterations int // Levenberg-Marquardt iterations
}

// DefaultOptions returns RANSAC with 100 iterations and an 8 px inlier
// threshold.
func DefaultOptions() Options {
	return Options{
		Method:           MethodRANSAC,
		RansacIterations: 100,
		RansacThreshold:  8,
		Seed:             1,
		MaxIterations:    50,
	}
}

// Pose maps grid coordinates into the camera frame: X_cam = R·X + t.
type Pose struct {
	RVec r3.Vector // Rodrigues rotation vector
	TVec r3.Vector

	RMSError float64 // pixels, over the correspondences used for the final fit
	Inliers  int
}

// Rotation returns the rotation matrix.
func (p Pose) Rotation() geometry.Mat3 {
	return geometry.Rodrigues(p.RVec)
}

// Transform maps a grid point into the camera frame.
func (p Pose) Transform(x r3.Vector) r3.Vector {
	return p.Rotation().MulVec(x).Add(p.TVec)
}

// Project maps object points to pixels through the camera model.
func (p Pose) Project(m camera.Model, pts []r3.Vector) []geometry.Point2D {
	r := p.Rotation()
	out := make([]geometry.Point2D, len(pts))
	for i, x := range pts {
		out[i] = m.Project(r.MulVec(x).Add(p.TVec))
	}
	return out
}

// ReprojectionError returns the RMS pixel distance between the projected
// grid and the corners.
func (p Pose) ReprojectionError(g grid.Grid, corners []geometry.Point2D, m camera.Model) float64 {
	return rms(p.Project(m, g.Points()), corners)
}

func rms(a, b []geometry.Point2D) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.NaN()
	}
	var sum float64
	for i := range a {
		d := a[i].Sub(b[i])
		sum += d.Dot(d)
	}
	return math.Sqrt(sum / float64(len(a)))
}

// Solve estimates the pose of the grid from corners index-aligned with it.
// A count mismatch returns ErrCorrespondenceMismatch; configurations that
// do not determine a pose return ErrDegenerate.
func Solve(g grid.Grid, corners []geometry.Point2D, m camera.Model, opts Options) (Pose, error) {
	if len(corners) != g.Len() {
		return Pose{}, fmt.Errorf("%d corners for %d grid points: %w", len(corners), g.Len(), ErrCorrespondenceMismatch)
	}
	return SolvePoints(g.Points(), corners, m, opts)
}

// SolvePoints is Solve for arbitrary object points.
func SolvePoints(obj []r3.Vector, img []geometry.Point2D, m camera.Model, opts Options) (Pose, error) {
	if len(obj) != len(img) {
		return Pose{}, fmt.Errorf("%d image points for %d object points: %w", len(img), len(obj), ErrCorrespondenceMismatch)
	}
	if len(obj) < 4 {
		return Pose{}, fmt.Errorf("need at least 4 points, got %d: %w", len(obj), ErrDegenerate)
	}
	for i, p := range img {
		if !p.IsFinite() {
			return Pose{}, fmt.Errorf("corner %d is not finite: %w", i, ErrDegenerate)
		}
	}

	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}

	switch opts.Method {
	case MethodIterative:
		return solveIterative(obj, img, m, opts.MaxIterations)
	case MethodRANSAC:
		return solveRANSAC(obj, img, m, opts)
	default:
		return Pose{}, fmt.Errorf("unknown pose method %v", opts.Method)
	}
}

func solveIterative(obj []r3.Vector, img []geometry.Point2D, m camera.Model, maxIter int) (Pose, error) {
	norm := make([]geometry.Point2D, len(img))
	for i, p := range img {
		norm[i] = m.Undistort(p.X, p.Y)
	}

	init, err := initialPose(obj, norm)
	if err != nil {
		return Pose{}, err
	}

	p := refine(obj, img, m, init, maxIter)
	if err := check(p, obj); err != nil {
		return Pose{}, err
	}
	p.RMSError = rms(p.Project(m, obj), img)
	p.Inliers = len(obj)
	return p, nil
}

// check rejects non-finite solutions and ones that put the object behind
// the camera.
func check(p Pose, obj []r3.Vector) error {
	for _, v := range []float64{p.RVec.X, p.RVec.Y, p.RVec.Z, p.TVec.X, p.TVec.Y, p.TVec.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite solution: %w", ErrDegenerate)
		}
	}
	r := p.Rotation()
	for _, x := range obj {
		if r.MulVec(x).Add(p.TVec).Z <= 0 {
			return fmt.Errorf("object behind camera: %w", ErrDegenerate)
		}
	}
	return nil
}
