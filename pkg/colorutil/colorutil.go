// Package colorutil holds the overlay colours used when annotating frames.
package colorutil

import "image/color"

// Axis colours follow the usual x/y/z = red/green/blue convention.
var (
	AxisX = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	AxisY = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	AxisZ = color.RGBA{R: 0, G: 0, B: 255, A: 255}
)

// Status colours for the detection banner.
var (
	Detected    = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	NotDetected = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	Skipped     = color.RGBA{R: 160, G: 160, B: 160, A: 255}
)

// Scale returns c with its colour channels multiplied by f, clamped to
// [0, 255]. Alpha is unchanged.
func Scale(c color.RGBA, f float64) color.RGBA {
	ch := func(v uint8) uint8 {
		x := float64(v) * f
		if x < 0 {
			return 0
		}
		if x > 255 {
			return 255
		}
		return uint8(x + 0.5)
	}
	return color.RGBA{R: ch(c.R), G: ch(c.G), B: ch(c.B), A: c.A}
}
