// Package opencv is the OpenCV-backed corner detector plus the helpers that
// move frames between gocv.Mat and frame.Frame. It needs cgo and an OpenCV
// installation; the rest of the module does not.
package opencv

import (
	"encoding/binary"
	"fmt"
	"math"

	"checkerpose/internal/frame"
	"checkerpose/pkg/geometry"

	"gocv.io/x/gocv"
)

// FromMat copies an 8-bit BGR, BGRA or grey Mat into a frame.
func FromMat(m gocv.Mat) (frame.Frame, error) {
	if m.Empty() {
		return frame.Frame{}, fmt.Errorf("empty mat: %w", frame.ErrInvalidFrame)
	}
	var format frame.Format
	switch m.Type() {
	case gocv.MatTypeCV8UC1:
		format = frame.FormatGray
	case gocv.MatTypeCV8UC3:
		format = frame.FormatBGR
	case gocv.MatTypeCV8UC4:
		format = frame.FormatBGRA
	default:
		return frame.Frame{}, fmt.Errorf("unsupported mat type %v: %w", m.Type(), frame.ErrInvalidFrame)
	}
	return frame.New(m.Cols(), m.Rows(), format, m.ToBytes()), nil
}

// ToMat copies a frame into a new Mat with the frame's channel layout. The
// caller owns the result; on error no Mat is allocated.
func ToMat(f frame.Frame) (gocv.Mat, error) {
	if err := f.Validate(); err != nil {
		return gocv.Mat{}, err
	}
	var mt gocv.MatType
	switch f.Format.Channels() {
	case 1:
		mt = gocv.MatTypeCV8UC1
	case 3:
		mt = gocv.MatTypeCV8UC3
	default:
		mt = gocv.MatTypeCV8UC4
	}

	rowBytes := f.Width * f.Format.Channels()
	data := f.Pix
	if f.Stride != rowBytes {
		data = make([]byte, rowBytes*f.Height)
		for y := 0; y < f.Height; y++ {
			copy(data[y*rowBytes:(y+1)*rowBytes], f.Pix[y*f.Stride:])
		}
	}

	m, err := gocv.NewMatFromBytes(f.Height, f.Width, mt, data)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to create mat: %w", err)
	}
	defer m.Close()
	// The Mat above aliases data; own the pixels before returning.
	return m.Clone(), nil
}

// grayMat converts a BGR/BGRA/RGB/RGBA/grey Mat to single-channel grey.
func grayMat(src gocv.Mat, format frame.Format, dst *gocv.Mat) {
	switch format {
	case frame.FormatBGR:
		gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
	case frame.FormatRGB:
		gocv.CvtColor(src, dst, gocv.ColorRGBToGray)
	case frame.FormatBGRA:
		gocv.CvtColor(src, dst, gocv.ColorBGRAToGray)
	case frame.FormatRGBA:
		gocv.CvtColor(src, dst, gocv.ColorRGBAToGray)
	default:
		src.CopyTo(dst)
	}
}

// pointsMat packs points into an n×1 CV_32FC2 Mat as used by the calib3d
// corner functions. The caller owns the result.
func pointsMat(pts []geometry.Point2D) (gocv.Mat, error) {
	buf := make([]byte, 8*len(pts))
	for i, p := range pts {
		binary.LittleEndian.PutUint32(buf[8*i:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(buf[8*i+4:], math.Float32bits(float32(p.Y)))
	}
	m, err := gocv.NewMatFromBytes(len(pts), 1, gocv.MatTypeCV32FC2, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to create point mat: %w", err)
	}
	defer m.Close()
	return m.Clone(), nil
}

// matPoints reads an n×1 CV_32FC2 Mat.
func matPoints(m gocv.Mat) []geometry.Point2D {
	pts := make([]geometry.Point2D, m.Rows())
	for i := range pts {
		v := m.GetVecfAt(i, 0)
		pts[i] = geometry.Point2D{X: float64(v[0]), Y: float64(v[1])}
	}
	return pts
}
