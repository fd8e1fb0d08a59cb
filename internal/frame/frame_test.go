package frame

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrayConvertsEachFormat(t *testing.T) {
	tests := []struct {
		format Format
		pixel  []byte
	}{
		{FormatRGBA, []byte{200, 100, 50, 255}},
		{FormatBGRA, []byte{50, 100, 200, 255}},
		{FormatRGB, []byte{200, 100, 50}},
		{FormatBGR, []byte{50, 100, 200}},
	}

	// 0.299*200 + 0.587*100 + 0.114*50 = 124.2
	for _, tt := range tests {
		f := New(1, 1, tt.format, tt.pixel)
		g, err := f.Gray()
		require.NoError(t, err, tt.format.String())
		assert.Equal(t, uint8(124), g.GrayAt(0, 0).Y, tt.format.String())
	}
}

func TestGrayCopiesIntensity(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6}
	f := New(3, 2, FormatGray, pix)
	g, err := f.Gray()
	require.NoError(t, err)
	assert.Equal(t, pix, g.Pix)

	g.Pix[0] = 99
	assert.Equal(t, byte(1), pix[0], "source buffer must stay untouched")
}

func TestGrayHonoursStride(t *testing.T) {
	f := Frame{Width: 2, Height: 2, Stride: 4, Format: FormatGray, Pix: []byte{10, 20, 0, 0, 30, 40}}
	g, err := f.Gray()
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 40}, g.Pix)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, New(2, 2, FormatRGB, make([]byte, 12)).Validate())
	assert.ErrorIs(t, New(2, 2, FormatRGB, make([]byte, 11)).Validate(), ErrInvalidFrame)
	assert.ErrorIs(t, New(0, 2, FormatGray, nil).Validate(), ErrInvalidFrame)
	assert.ErrorIs(t, New(2, 2, FormatUnknown, make([]byte, 16)).Validate(), ErrInvalidFrame)
	assert.ErrorIs(t, Frame{Width: 4, Height: 1, Stride: 2, Format: FormatGray, Pix: make([]byte, 4)}.Validate(), ErrInvalidFrame)
}

func TestFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(5, 5, 8, 7))
	img.Set(5, 5, color.NRGBA{R: 255, A: 255})

	f := FromImage(img)
	assert.Equal(t, 3, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, FormatRGBA, f.Format)
	assert.Equal(t, []byte{255, 0, 0, 255}, f.Pix[:4])

	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	gray.SetGray(1, 1, color.Gray{Y: 77})
	gf := FromImage(gray)
	assert.Equal(t, FormatGray, gf.Format)
	assert.Equal(t, byte(77), gf.Pix[1*gf.Stride+1])
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")

	img := image.NewGray(image.Rect(0, 0, 6, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 10)
	}
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(out, img))
	require.NoError(t, out.Close())

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, f.Width)
	assert.Equal(t, 4, f.Height)

	g, err := f.Gray()
	require.NoError(t, err)
	assert.Equal(t, img.Pix, g.Pix)

	_, err = Load(filepath.Join(dir, "frame.bmp"))
	assert.Error(t, err)
	_, err = Load(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestDownscale(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 41, 30))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	dst := Downscale(src, 2)
	assert.Equal(t, 20, dst.Bounds().Dx())
	assert.Equal(t, 15, dst.Bounds().Dy())
	assert.InDelta(t, 128, int(dst.GrayAt(10, 7).Y), 1)

	assert.Same(t, src, Downscale(src, 1))
}
