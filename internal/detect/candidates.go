package detect

import (
	"math"
	"sort"

	"checkerpose/pkg/geometry"
)

const ringSamples = 16

type candidate struct {
	pos      geometry.Point2D
	response float32
}

// findCandidates returns X-junction candidates in descending response order.
func findCandidates(smooth, response *plane, opts Options) []candidate {
	var maxResp float32
	for _, v := range response.pix {
		if v > maxResp {
			maxResp = v
		}
	}
	if maxResp < float32(opts.MinResponse) {
		return nil
	}
	threshold := float32(math.Max(opts.MinResponse, opts.RelativeThreshold*float64(maxResp)))

	const nms = 2
	margin := opts.RingRadius + 2
	var out []candidate

	for y := margin; y < response.h-margin; y++ {
		for x := margin; x < response.w-margin; x++ {
			v := response.pix[y*response.w+x]
			if v < threshold || !isLocalMax(response, x, y, nms) {
				continue
			}
			pos := refinePeak(response, x, y)
			if !isXJunction(smooth, pos, float64(opts.RingRadius), opts.MinContrast) {
				continue
			}
			out = append(out, candidate{pos: pos, response: v})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].response > out[j].response })
	if len(out) > opts.MaxCandidates {
		out = out[:opts.MaxCandidates]
	}
	return out
}

// isLocalMax reports whether (x, y) is the maximum of its neighbourhood.
// Ties are broken in scan order so plateaus yield a single peak.
func isLocalMax(p *plane, x, y, radius int) bool {
	v := p.pix[y*p.w+x]
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := p.at(x+dx, y+dy)
			before := dy < 0 || (dy == 0 && dx < 0)
			if n > v || (before && n == v) {
				return false
			}
		}
	}
	return true
}

// refinePeak fits a parabola through the response along each axis.
func refinePeak(p *plane, x, y int) geometry.Point2D {
	offset := func(l, c, r float32) float64 {
		den := float64(l - 2*c + r)
		if den >= 0 {
			return 0
		}
		d := 0.5 * float64(l-r) / den
		return math.Max(-0.5, math.Min(0.5, d))
	}
	c := p.at(x, y)
	return geometry.Point2D{
		X: float64(x) + offset(p.at(x-1, y), c, p.at(x+1, y)),
		Y: float64(y) + offset(p.at(x, y-1), c, p.at(x, y+1)),
	}
}

// isXJunction samples a ring around pos. A checkerboard corner shows four
// dark/bright transitions and antipodal samples of equal polarity; edges
// show two transitions and the board's outer L-corners fail the antipodal
// test.
func isXJunction(p *plane, pos geometry.Point2D, radius, minContrast float64) bool {
	var values [ringSamples]float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for k := 0; k < ringSamples; k++ {
		a := 2 * math.Pi * float64(k) / ringSamples
		v := p.sample(pos.X+radius*math.Cos(a), pos.Y+radius*math.Sin(a))
		values[k] = v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < minContrast {
		return false
	}
	mid := (hi + lo) / 2

	// Samples close to the midpoint sit on an edge and carry no polarity.
	deadband := 0.15 * (hi - lo)
	var polarity [ringSamples]int
	var seq []int
	for k, v := range values {
		switch {
		case v > mid+deadband:
			polarity[k] = 1
		case v < mid-deadband:
			polarity[k] = -1
		default:
			continue
		}
		seq = append(seq, polarity[k])
	}
	if len(seq) < ringSamples/2 {
		return false
	}

	transitions := 0
	for k := range seq {
		if seq[k] != seq[(k+1)%len(seq)] {
			transitions++
		}
	}
	if transitions != 4 {
		return false
	}

	compared, mismatched := 0, 0
	for k := 0; k < ringSamples/2; k++ {
		a, b := polarity[k], polarity[k+ringSamples/2]
		if a == 0 || b == 0 {
			continue
		}
		compared++
		if a != b {
			mismatched++
		}
	}
	return compared >= 4 && mismatched <= 1
}
