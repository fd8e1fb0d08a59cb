// Package synth renders checkerboard frames with known ground truth through
// a camera model, including lens distortion. It backs the package tests and
// the markerpose self-check.
package synth

import (
	"image"
	"math"

	"checkerpose/internal/camera"
	"checkerpose/internal/frame"
	"checkerpose/internal/grid"
	"checkerpose/pkg/geometry"

	"github.com/golang/geo/r3"
)

// Scene places a printed checkerboard in front of a camera. Rotation and
// Translation map board coordinates into the camera frame.
type Scene struct {
	Width, Height int
	Camera        camera.Model
	Shape         grid.Shape
	SquareSize    float64

	Rotation    geometry.Mat3
	Translation r3.Vector

	Dark, Light, Background uint8
	Supersample             int
}

// Frontal returns a scene with the board parallel to the image plane,
// centred on the optical axis at the given distance (in square units).
func Frontal(cam camera.Model, shape grid.Shape, distance float64, width, height int) Scene {
	return Scene{
		Width:      width,
		Height:     height,
		Camera:     cam,
		Shape:      shape,
		SquareSize: 1,
		Rotation:   geometry.Identity3(),
		Translation: r3.Vector{
			X: -float64(shape.Cols-1) / 2,
			Y: -float64(shape.Rows-1) / 2,
			Z: distance,
		},
		Dark:        30,
		Light:       220,
		Background:  120,
		Supersample: 3,
	}
}

// Render draws the scene as an intensity image. Each pixel averages a
// Supersample² grid of rays so edges are anti-aliased.
func (s Scene) Render() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, s.Width, s.Height))
	ss := max(s.Supersample, 1)
	sq := s.SquareSize
	if sq <= 0 {
		sq = 1
	}
	normal := r3.Vector{X: s.Rotation[0][2], Y: s.Rotation[1][2], Z: s.Rotation[2][2]}
	rt := s.Rotation.T()
	planeDist := normal.Dot(s.Translation)

	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			var acc float64
			for sy := 0; sy < ss; sy++ {
				for sx := 0; sx < ss; sx++ {
					u := float64(x) + (float64(sx)+0.5)/float64(ss) - 0.5
					v := float64(y) + (float64(sy)+0.5)/float64(ss) - 0.5
					acc += float64(s.shade(u, v, normal, planeDist, rt, sq))
				}
			}
			img.Pix[y*img.Stride+x] = uint8(math.Round(acc / float64(ss*ss)))
		}
	}
	return img
}

func (s Scene) shade(u, v float64, normal r3.Vector, planeDist float64, rt geometry.Mat3, sq float64) uint8 {
	n := s.Camera.Undistort(u, v)
	ray := r3.Vector{X: n.X, Y: n.Y, Z: 1}
	denom := normal.Dot(ray)
	if math.Abs(denom) < 1e-12 {
		return s.Background
	}
	lambda := planeDist / denom
	if lambda <= 0 {
		return s.Background
	}
	b := rt.MulVec(ray.Mul(lambda).Sub(s.Translation))
	bx, by := b.X/sq, b.Y/sq

	rows, cols := float64(s.Shape.Rows), float64(s.Shape.Cols)
	switch {
	case bx >= -1 && bx < cols && by >= -1 && by < rows:
		if (int(math.Floor(bx))+int(math.Floor(by)))%2 == 0 {
			return s.Dark
		}
		return s.Light
	case bx >= -2 && bx < cols+1 && by >= -2 && by < rows+1:
		return s.Light
	default:
		return s.Background
	}
}

// Frame renders the scene as a single-channel frame.
func (s Scene) Frame() frame.Frame {
	return frame.FromImage(s.Render())
}

// Corners returns the exact image positions of the interior corners in
// row-major order.
func (s Scene) Corners() []geometry.Point2D {
	sq := s.SquareSize
	if sq <= 0 {
		sq = 1
	}
	out := make([]geometry.Point2D, 0, s.Shape.Len())
	for r := 0; r < s.Shape.Rows; r++ {
		for c := 0; c < s.Shape.Cols; c++ {
			p := s.Rotation.MulVec(r3.Vector{X: float64(c) * sq, Y: float64(r) * sq}).Add(s.Translation)
			out = append(out, s.Camera.Project(p))
		}
	}
	return out
}

// Blank returns a frame with a smooth gradient and no marker.
func Blank(width, height int) frame.Frame {
	img := image.NewGray(image.Rect(0, 0, width, height))
	cx, cy := float64(width)/3, float64(height)/2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := 60 + 100*float64(x)/float64(width)
			d := math.Hypot(float64(x)-cx, float64(y)-cy)
			v += 60 * math.Exp(-d*d/(2*40*40))
			img.Pix[y*img.Stride+x] = uint8(math.Min(255, v))
		}
	}
	return frame.FromImage(img)
}
