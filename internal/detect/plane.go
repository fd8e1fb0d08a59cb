package detect

import (
	"image"
	"math"
)

// plane is a single-channel float image used for filtering.
type plane struct {
	w, h int
	pix  []float32
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, pix: make([]float32, w*h)}
}

func planeFromGray(g *image.Gray) *plane {
	b := g.Bounds()
	p := newPlane(b.Dx(), b.Dy())
	for y := 0; y < p.h; y++ {
		row := g.Pix[(y)*g.Stride : (y)*g.Stride+p.w]
		for x, v := range row {
			p.pix[y*p.w+x] = float32(v)
		}
	}
	return p
}

// at returns the pixel value with coordinates clamped to the image.
func (p *plane) at(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= p.w {
		x = p.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.h {
		y = p.h - 1
	}
	return p.pix[y*p.w+x]
}

// sample returns the bilinearly interpolated value at (x, y).
func (p *plane) sample(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	v00 := float64(p.at(x0, y0))
	v10 := float64(p.at(x0+1, y0))
	v01 := float64(p.at(x0, y0+1))
	v11 := float64(p.at(x0+1, y0+1))

	top := v00 + (v10-v00)*fx
	bottom := v01 + (v11-v01)*fx
	return top + (bottom-top)*fy
}

// blur returns a Gaussian-smoothed copy using a separable kernel.
func (p *plane) blur(sigma float64) *plane {
	if sigma <= 0 {
		out := newPlane(p.w, p.h)
		copy(out.pix, p.pix)
		return out
	}

	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float32, 2*radius+1)
	var sum float32
	for i := -radius; i <= radius; i++ {
		v := float32(math.Exp(-float64(i*i) / (2 * sigma * sigma)))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	tmp := newPlane(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var acc float32
			for k := -radius; k <= radius; k++ {
				acc += kernel[k+radius] * p.at(x+k, y)
			}
			tmp.pix[y*p.w+x] = acc
		}
	}

	out := newPlane(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var acc float32
			for k := -radius; k <= radius; k++ {
				acc += kernel[k+radius] * tmp.at(x, y+k)
			}
			out.pix[y*p.w+x] = acc
		}
	}
	return out
}

// saddleResponse computes Ixy² − Ixx·Iyy from finite differences of a
// smoothed image. The value is positive at X-junctions and close to zero on
// straight edges and flat regions.
func saddleResponse(p *plane) *plane {
	r := newPlane(p.w, p.h)
	for y := 1; y < p.h-1; y++ {
		for x := 1; x < p.w-1; x++ {
			c := p.pix[y*p.w+x]
			ixx := p.pix[y*p.w+x+1] - 2*c + p.pix[y*p.w+x-1]
			iyy := p.pix[(y+1)*p.w+x] - 2*c + p.pix[(y-1)*p.w+x]
			ixy := (p.pix[(y+1)*p.w+x+1] - p.pix[(y-1)*p.w+x+1] -
				p.pix[(y+1)*p.w+x-1] + p.pix[(y-1)*p.w+x-1]) / 4
			if v := ixy*ixy - ixx*iyy; v > 0 {
				r.pix[y*p.w+x] = v
			}
		}
	}
	return r
}
