// Package frame defines the raw pixel buffers handed to the pipeline by the
// capture layer, plus conversions to the intensity images the detector needs.
package frame

import (
	"errors"
	"fmt"
	"image"
)

// ErrInvalidFrame is returned when a buffer does not match its declared
// geometry.
var ErrInvalidFrame = errors.New("invalid frame")

// Format is the pixel layout of a frame buffer.
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA           // 4 bytes: R G B A
	FormatBGRA           // 4 bytes: B G R A
	FormatRGB            // 3 bytes: R G B
	FormatBGR            // 3 bytes: B G R (OpenCV default)
	FormatGray           // 1 byte intensity
)

func (f Format) String() string {
	switch f {
	case FormatRGBA:
		return "RGBA"
	case FormatBGRA:
		return "BGRA"
	case FormatRGB:
		return "RGB"
	case FormatBGR:
		return "BGR"
	case FormatGray:
		return "Gray"
	default:
		return "Unknown"
	}
}

// Channels returns the number of bytes per pixel.
func (f Format) Channels() int {
	switch f {
	case FormatRGBA, FormatBGRA:
		return 4
	case FormatRGB, FormatBGR:
		return 3
	case FormatGray:
		return 1
	default:
		return 0
	}
}

// Frame is a borrowed, read-only pixel buffer. The pipeline never writes to
// Pix.
type Frame struct {
	Width  int
	Height int
	Stride int // bytes between the starts of consecutive rows
	Format Format
	Pix    []byte

	Seq uint64 // capture sequence number, assigned by the source
}

// New wraps a tightly packed buffer.
func New(width, height int, format Format, pix []byte) Frame {
	return Frame{
		Width:  width,
		Height: height,
		Stride: width * format.Channels(),
		Format: format,
		Pix:    pix,
	}
}

// Validate checks that the buffer is large enough for the declared geometry.
func (f Frame) Validate() error {
	ch := f.Format.Channels()
	if ch == 0 {
		return fmt.Errorf("format %s: %w", f.Format, ErrInvalidFrame)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("size %dx%d: %w", f.Width, f.Height, ErrInvalidFrame)
	}
	if f.Stride < f.Width*ch {
		return fmt.Errorf("stride %d below row size %d: %w", f.Stride, f.Width*ch, ErrInvalidFrame)
	}
	need := f.Stride*(f.Height-1) + f.Width*ch
	if len(f.Pix) < need {
		return fmt.Errorf("buffer has %d bytes, need %d: %w", len(f.Pix), need, ErrInvalidFrame)
	}
	return nil
}

// Bounds returns the frame rectangle.
func (f Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Gray converts the frame to a freshly allocated 8-bit intensity image using
// the Rec. 601 luma weights.
func (f Frame) Gray() (*image.Gray, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	g := image.NewGray(f.Bounds())
	ch := f.Format.Channels()

	var ri, gi, bi int
	switch f.Format {
	case FormatRGBA, FormatRGB:
		ri, gi, bi = 0, 1, 2
	case FormatBGRA, FormatBGR:
		ri, gi, bi = 2, 1, 0
	}

	for y := 0; y < f.Height; y++ {
		src := f.Pix[y*f.Stride : y*f.Stride+f.Width*ch]
		dst := g.Pix[y*g.Stride : y*g.Stride+f.Width]
		if f.Format == FormatGray {
			copy(dst, src)
			continue
		}
		for x := 0; x < f.Width; x++ {
			px := src[x*ch : x*ch+ch]
			// Fixed-point 0.299 R + 0.587 G + 0.114 B
			l := 19595*uint32(px[ri]) + 38470*uint32(px[gi]) + 7471*uint32(px[bi]) + 1<<15
			dst[x] = uint8(l >> 16)
		}
	}
	return g, nil
}
