package detect

import (
	"image"
	"math"

	"checkerpose/pkg/geometry"
)

// SubPixOptions controls corner refinement.
type SubPixOptions struct {
	HalfWindow    int     // search window is (2·HalfWindow+1)² pixels
	MaxIterations int     // per corner
	Epsilon       float64 // stop when a step moves less than this (pixels)
}

// DefaultSubPixOptions stops after 30 iterations or a 0.1 px step.
func DefaultSubPixOptions() SubPixOptions {
	return SubPixOptions{HalfWindow: 5, MaxIterations: 30, Epsilon: 0.1}
}

// RefineCorners moves each corner to the point where the image gradients in
// a Gaussian-weighted window are most nearly orthogonal to the vectors from
// the corner, i.e. it solves Σ g·gᵀ·(p − q) = 0 for q. Corners that would
// leave their window keep their initial position.
func RefineCorners(img *image.Gray, corners []geometry.Point2D, opts SubPixOptions) []geometry.Point2D {
	return refineCorners(planeFromGray(img), corners, opts)
}

func refineCorners(p *plane, corners []geometry.Point2D, opts SubPixOptions) []geometry.Point2D {
	w := opts.HalfWindow
	if w < 1 {
		w = 1
	}
	size := 2*w + 3 // window plus a one-pixel border for differences

	weights := make([]float64, (2*w+1)*(2*w+1))
	for dy := -w; dy <= w; dy++ {
		for dx := -w; dx <= w; dx++ {
			fx, fy := float64(dx)/float64(w), float64(dy)/float64(w)
			weights[(dy+w)*(2*w+1)+dx+w] = math.Exp(-fx*fx - fy*fy)
		}
	}

	patch := make([]float64, size*size)
	out := make([]geometry.Point2D, len(corners))

	for n, start := range corners {
		q := start
		for iter := 0; iter < opts.MaxIterations; iter++ {
			// Sample the window around the current estimate.
			for yy := 0; yy < size; yy++ {
				for xx := 0; xx < size; xx++ {
					patch[yy*size+xx] = p.sample(q.X+float64(xx-w-1), q.Y+float64(yy-w-1))
				}
			}

			var a, b, c, bx, by float64
			for dy := -w; dy <= w; dy++ {
				for dx := -w; dx <= w; dx++ {
					xx, yy := dx+w+1, dy+w+1
					gx := (patch[yy*size+xx+1] - patch[yy*size+xx-1]) / 2
					gy := (patch[(yy+1)*size+xx] - patch[(yy-1)*size+xx]) / 2
					m := weights[(dy+w)*(2*w+1)+dx+w]

					gxx, gxy, gyy := gx*gx*m, gx*gy*m, gy*gy*m
					px, py := float64(dx), float64(dy)
					a += gxx
					b += gxy
					c += gyy
					bx += gxx*px + gxy*py
					by += gxy*px + gyy*py
				}
			}

			det := a*c - b*b
			if math.Abs(det) <= 1e-9*(a*c+1e-12) {
				break
			}
			// Offset of the solution relative to q.
			ox := (c*bx - b*by) / det
			oy := (a*by - b*bx) / det
			q = geometry.Point2D{X: q.X + ox, Y: q.Y + oy}
			if ox*ox+oy*oy < opts.Epsilon*opts.Epsilon {
				break
			}
		}

		if math.Abs(q.X-start.X) > float64(w) || math.Abs(q.Y-start.Y) > float64(w) || !q.IsFinite() {
			q = start
		}
		out[n] = q
	}
	return out
}
