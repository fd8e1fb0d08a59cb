package opencv

import (
	"image"

	"checkerpose/internal/detect"
	"checkerpose/internal/frame"
	"checkerpose/internal/grid"
	"checkerpose/pkg/geometry"

	"gocv.io/x/gocv"
)

// Options tunes the OpenCV detector.
type Options struct {
	Downscale     int // findChessboardCorners runs on an image reduced by this factor
	HalfWindow    int // cornerSubPix winSize
	MaxIterations int
	Epsilon       float64
	Flags         gocv.CalibCBFlag
}

// DefaultOptions returns the device pipeline settings:
// nearest-neighbour half-resolution search with the fast check, then
// refinement at full resolution with an 11 px half window and (30, 0.1)
// termination.
func DefaultOptions() Options {
	return Options{
		Downscale:     2,
		HalfWindow:    11,
		MaxIterations: 30,
		Epsilon:       0.1,
		Flags:         gocv.CalibCBFastCheck,
	}
}

// Detector implements detect.Detector with findChessboardCorners and
// cornerSubPix. Corners are reordered with detect.Canonicalize so both
// backends report the same grid order.
type Detector struct {
	opts Options
}

var _ detect.Detector = (*Detector)(nil)

// NewDetector returns an OpenCV corner detector.
func NewDetector(opts Options) *Detector {
	if opts.Downscale < 1 {
		opts.Downscale = 1
	}
	return &Detector{opts: opts}
}

// Detect finds the shape.Rows x shape.Cols interior corners in f.
func (d *Detector) Detect(f frame.Frame, shape grid.Shape) (detect.Corners, bool) {
	if shape.Validate() != nil {
		return nil, false
	}
	src, err := ToMat(f)
	if err != nil {
		return nil, false
	}
	defer src.Close()
	return d.DetectMat(src, f.Format, shape)
}

// DetectMat searches a Mat directly, avoiding a copy for capture loops that
// already hold one.
func (d *Detector) DetectMat(src gocv.Mat, format frame.Format, shape grid.Shape) (detect.Corners, bool) {
	gray := gocv.NewMat()
	defer gray.Close()
	grayMat(src, format, &gray)

	search := gray
	factor := float64(d.opts.Downscale)
	if d.opts.Downscale > 1 {
		small := gocv.NewMat()
		defer small.Close()
		gocv.Resize(gray, &small, image.Point{}, 1/factor, 1/factor, gocv.InterpolationNearestNeighbor)
		search = small
	}

	found := gocv.NewMat()
	defer found.Close()
	if !gocv.FindChessboardCorners(search, image.Pt(shape.Cols, shape.Rows), &found, d.opts.Flags) {
		return nil, false
	}
	if found.Rows() != shape.Len() {
		return nil, false
	}

	full, err := pointsMat(fromSearch(matPoints(found), factor))
	if err != nil {
		return nil, false
	}
	defer full.Close()
	criteria := gocv.NewTermCriteria(gocv.Count+gocv.EPS, d.opts.MaxIterations, d.opts.Epsilon)
	gocv.CornerSubPix(gray, &full, image.Pt(d.opts.HalfWindow, d.opts.HalfWindow), image.Pt(-1, -1), criteria)

	// findChessboardCorners reports rows of shape.Cols corners.
	ordered, ok := detect.Canonicalize(matPoints(full), shape.Rows, shape.Cols, shape)
	if !ok {
		return nil, false
	}
	return detect.Corners(ordered), true
}

// fromSearch maps corners found on the nearest-neighbour downscaled image
// back to full resolution. Search pixel x samples source pixel x*factor.
func fromSearch(pts []geometry.Point2D, factor float64) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = p.Scale(factor)
	}
	return out
}
