package opencv

import (
	"testing"

	"checkerpose/internal/frame"
	"checkerpose/internal/grid"
	"checkerpose/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestToMatInvalidFrameAllocatesNothing(t *testing.T) {
	m, err := ToMat(frame.New(10, 10, frame.FormatRGBA, nil))
	assert.ErrorIs(t, err, frame.ErrInvalidFrame)
	assert.Equal(t, gocv.Mat{}, m)

	_, ok := NewDetector(DefaultOptions()).Detect(frame.New(10, 10, frame.FormatRGBA, nil), grid.Shape{Rows: 6, Cols: 8})
	assert.False(t, ok)
}

func TestFrameMatRoundTrip(t *testing.T) {
	pix := make([]byte, 4*3*3)
	for i := range pix {
		pix[i] = byte(i)
	}
	f := frame.New(4, 3, frame.FormatBGR, pix)

	m, err := ToMat(f)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 4, m.Cols())

	back, err := FromMat(m)
	require.NoError(t, err)
	assert.Equal(t, frame.FormatBGR, back.Format)
	assert.Equal(t, pix, back.Pix)
}

func TestPointsMatRoundTrip(t *testing.T) {
	pts := []geometry.Point2D{{X: 1.5, Y: 2.25}, {X: 640, Y: 0.125}}
	m, err := pointsMat(pts)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, pts, matPoints(m))
}

func TestFromSearchScalesNearestSamples(t *testing.T) {
	got := fromSearch([]geometry.Point2D{{X: 0, Y: 0}, {X: 10.25, Y: 7}}, 2)
	assert.Equal(t, []geometry.Point2D{{X: 0, Y: 0}, {X: 20.5, Y: 14}}, got)
}
