// Package detect finds the interior corners of a checkerboard marker in a
// camera frame and returns them in the reference grid's row-major order.
package detect

import (
	"image"
	"math"

	"checkerpose/internal/frame"
	"checkerpose/internal/grid"
	"checkerpose/pkg/geometry"
)

// Corners holds detected corner positions in pixels, index-aligned with the
// reference grid.
type Corners []geometry.Point2D

// Detector finds a checkerboard of the given interior-corner shape.
// Detect returns false when the pattern is not visible in full.
type Detector interface {
	Detect(f frame.Frame, shape grid.Shape) (Corners, bool)
}

// Options tunes the native detector. Pixel quantities are measured at the
// search scale unless noted.
type Options struct {
	Downscale     int // search on an image reduced by this factor
	MinSearchSize int // do not downscale below this many pixels on the short side

	BlurSigma         float64
	MinResponse       float64 // absolute saddle response floor
	RelativeThreshold float64 // fraction of the strongest response
	RingRadius        int
	MinContrast       float64 // grey levels between dark and bright squares
	MaxCandidates     int
	MaxSeeds          int
	GrowTolerance     float64 // accepted distance from a prediction, as a fraction of the local step

	SubPix SubPixOptions // at full resolution
}

// DefaultOptions returns settings tuned for VGA frames, searched at half
// resolution.
func DefaultOptions() Options {
	return Options{
		Downscale:         2,
		MinSearchSize:     160,
		BlurSigma:         1.2,
		MinResponse:       25,
		RelativeThreshold: 0.1,
		RingRadius:        3,
		MinContrast:       20,
		MaxCandidates:     400,
		MaxSeeds:          16,
		GrowTolerance:     0.4,
		SubPix:            DefaultSubPixOptions(),
	}
}

// Chessboard is the pure-Go detector: saddle-point candidates, X-junction
// filtering, lattice growth and sub-pixel refinement. It holds no per-frame
// state and is safe for concurrent use.
type Chessboard struct {
	opts Options
}

// NewChessboard returns a detector with the given options.
func NewChessboard(opts Options) *Chessboard {
	return &Chessboard{opts: opts}
}

// Detect converts the frame to intensity and searches it.
func (d *Chessboard) Detect(f frame.Frame, shape grid.Shape) (Corners, bool) {
	g, err := f.Gray()
	if err != nil {
		return nil, false
	}
	return d.DetectGray(g, shape)
}

// DetectGray searches an intensity image.
func (d *Chessboard) DetectGray(g *image.Gray, shape grid.Shape) (Corners, bool) {
	if shape.Validate() != nil {
		return nil, false
	}
	opts := d.opts

	factor := opts.Downscale
	b := g.Bounds()
	short := min(b.Dx(), b.Dy())
	for factor > 1 && short/factor < opts.MinSearchSize {
		factor--
	}
	if factor < 1 {
		factor = 1
	}

	search := frame.Downscale(g, factor)
	smooth := planeFromGray(search).blur(opts.BlurSigma)
	response := saddleResponse(smooth)

	cands := findCandidates(smooth, response, opts)
	lat, nRows, nCols, ok := findLattice(cands, shape, opts)
	if !ok {
		return nil, false
	}
	if !validateChecker(smooth, lat, nRows, nCols, opts.MinContrast) {
		return nil, false
	}
	if quad := outline(lat, nRows, nCols); shape.Rows > 1 && shape.Cols > 1 && !geometry.IsConvex(quad) {
		return nil, false
	}

	ordered, ok := Canonicalize(lat, nRows, nCols, shape)
	if !ok {
		return nil, false
	}

	full := make([]geometry.Point2D, len(ordered))
	scale := float64(factor)
	for i, p := range ordered {
		full[i] = geometry.Point2D{X: (p.X+0.5)*scale - 0.5, Y: (p.Y+0.5)*scale - 0.5}
	}

	sub := opts.SubPix
	if spacing := minSpacing(full, shape); !math.IsInf(spacing, 1) && int(0.5*spacing) < sub.HalfWindow {
		sub.HalfWindow = max(int(0.5*spacing), 2)
	}
	return Corners(RefineCorners(g, full, sub)), true
}

// minSpacing returns the smallest distance between grid neighbours.
func minSpacing(pts []geometry.Point2D, shape grid.Shape) float64 {
	best := math.Inf(1)
	for r := 0; r < shape.Rows; r++ {
		for c := 0; c < shape.Cols; c++ {
			p := pts[r*shape.Cols+c]
			if c+1 < shape.Cols {
				best = math.Min(best, p.Distance(pts[r*shape.Cols+c+1]))
			}
			if r+1 < shape.Rows {
				best = math.Min(best, p.Distance(pts[(r+1)*shape.Cols+c]))
			}
		}
	}
	return best
}
