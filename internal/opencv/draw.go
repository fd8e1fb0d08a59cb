package opencv

import (
	"fmt"
	"image"
	"image/color"

	"checkerpose/internal/camera"
	"checkerpose/internal/grid"
	"checkerpose/internal/pose"
	"checkerpose/internal/session"
	"checkerpose/pkg/colorutil"
	"checkerpose/pkg/geometry"

	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"
)

// DrawCorners draws the detected grid the way OpenCV's calibration samples
// do: coloured rows joined in detection order.
func DrawCorners(img *gocv.Mat, shape grid.Shape, corners []geometry.Point2D) error {
	m, err := pointsMat(corners)
	if err != nil {
		return err
	}
	defer m.Close()
	gocv.DrawChessboardCorners(img, image.Pt(shape.Cols, shape.Rows), m, len(corners) == shape.Len())
	return nil
}

// DrawAxes draws the grid's x (red), y (green) and z (blue) axes from its
// origin, length in grid units. z points towards the camera for a marker
// seen from its printed side.
func DrawAxes(img *gocv.Mat, cam camera.Model, p pose.Pose, length float64) {
	pts := p.Project(cam, []r3.Vector{
		{},
		{X: length},
		{Y: length},
		{Z: -length},
	})
	for i, c := range []color.RGBA{colorutil.AxisX, colorutil.AxisY, colorutil.AxisZ} {
		a, b := pts[0], pts[i+1]
		if !a.IsFinite() || !b.IsFinite() {
			continue
		}
		gocv.Line(img, toImagePoint(a), toImagePoint(b), colorutil.Scale(c, 0.35), 4)
		gocv.Line(img, toImagePoint(a), toImagePoint(b), c, 2)
	}
}

// Annotate draws a frame result onto img: a status line, and for detected
// markers the corner grid and pose axes.
func Annotate(img *gocv.Mat, shape grid.Shape, cam camera.Model, res session.Result, squareSize float64) error {
	drawStatus(img, res)
	if res.Status != session.StatusDetected {
		return nil
	}
	if err := DrawCorners(img, shape, res.Corners); err != nil {
		return err
	}
	if squareSize <= 0 {
		squareSize = 1
	}
	DrawAxes(img, cam, res.Pose, 3*squareSize)
	return nil
}

func toImagePoint(p geometry.Point2D) image.Point {
	return image.Pt(int(p.X+0.5), int(p.Y+0.5))
}

func drawStatus(img *gocv.Mat, res session.Result) {
	c := colorutil.Skipped
	text := res.Status.String()
	switch res.Status {
	case session.StatusDetected:
		c = colorutil.Detected
		text = fmt.Sprintf("t = [%.2f %.2f %.2f]  rms %.2f px", res.Pose.TVec.X, res.Pose.TVec.Y, res.Pose.TVec.Z, res.Pose.RMSError)
	case session.StatusNotDetected:
		c = colorutil.NotDetected
	}
	gocv.PutText(img, text, image.Pt(10, 24), gocv.FontHersheySimplex, 0.6, c, 2)
}
