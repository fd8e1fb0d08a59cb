package frame

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// FromImage copies an image into an RGBA frame. Gray images keep a single
// channel.
func FromImage(img image.Image) Frame {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok {
		out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Copy(out, image.Point{}, g, b, draw.Src, nil)
		return Frame{Width: b.Dx(), Height: b.Dy(), Stride: out.Stride, Format: FormatGray, Pix: out.Pix}
	}

	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(out, image.Point{}, img, b, draw.Src, nil)
	return Frame{Width: b.Dx(), Height: b.Dy(), Stride: out.Stride, Format: FormatRGBA, Pix: out.Pix}
}

// Load decodes a PNG, JPEG or TIFF file into a frame.
func Load(path string) (Frame, error) {
	if !IsSupportedFormat(path) {
		return Frame{}, fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}

	file, err := os.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// Downscale shrinks an intensity image by an integer factor with an
// anti-aliased bilinear kernel. A pixel centre (x, y) of the result lies at
// ((x+0.5)·factor − 0.5, (y+0.5)·factor − 0.5) in the source.
func Downscale(src *image.Gray, factor int) *image.Gray {
	if factor <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx()/factor, b.Dy()/factor))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, image.Rect(b.Min.X, b.Min.Y, b.Min.X+dst.Rect.Dx()*factor, b.Min.Y+dst.Rect.Dy()*factor), draw.Src, nil)
	return dst
}

// SupportedFormats returns the list of supported image file extensions.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
