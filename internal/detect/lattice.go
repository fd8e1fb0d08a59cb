package detect

import (
	"math"
	"sort"

	"checkerpose/internal/grid"
	"checkerpose/pkg/geometry"
)

type cell [2]int // (i, j) lattice index

var steps = [4]cell{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}

// lattice is a set of candidates arranged on integer (i, j) indices.
type lattice struct {
	pos  map[cell]geometry.Point2D
	used []bool

	axisJ, axisI geometry.Point2D // seed steps for +j and +i
}

// findLattice tries seeds near the centre of the candidate cloud and returns
// the first lattice whose extent matches the requested shape. The result is
// a row-major grid of nRows x nCols points in lattice order.
func findLattice(cands []candidate, shape grid.Shape, opts Options) ([]geometry.Point2D, int, int, bool) {
	if len(cands) < shape.Len() || len(cands) < 2 {
		return nil, 0, 0, false
	}

	pts := make([]geometry.Point2D, len(cands))
	for i, c := range cands {
		pts[i] = c.pos
	}
	centre := geometry.Centroid(pts)

	order := make([]int, len(pts))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return pts[order[a]].Distance(centre) < pts[order[b]].Distance(centre)
	})

	seeds := opts.MaxSeeds
	if seeds > len(order) {
		seeds = len(order)
	}
	for _, seed := range order[:seeds] {
		l, ok := growLattice(pts, seed, shape, opts.GrowTolerance)
		if !ok {
			continue
		}
		if out, rows, cols, ok := l.extract(shape); ok {
			return out, rows, cols, true
		}
	}
	return nil, 0, 0, false
}

// growLattice builds a lattice outwards from seed by predicting each
// neighbour position and accepting the nearest unused candidate.
func growLattice(pts []geometry.Point2D, seed int, shape grid.Shape, tolerance float64) (*lattice, bool) {
	axisJ, axisI, ok := seedAxes(pts, seed)
	if !ok {
		return nil, false
	}

	l := &lattice{
		pos:   map[cell]geometry.Point2D{{0, 0}: pts[seed]},
		used:  make([]bool, len(pts)),
		axisJ: axisJ,
		axisI: axisI,
	}
	l.used[seed] = true

	maxSpan := shape.Rows
	if shape.Cols > maxSpan {
		maxSpan = shape.Cols
	}
	minI, maxI, minJ, maxJ := 0, 0, 0, 0

	queue := []cell{{0, 0}}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		for _, d := range steps {
			t := cell{c[0] + d[0], c[1] + d[1]}
			if _, ok := l.pos[t]; ok {
				continue
			}
			pred, step := l.predict(c, d)
			idx := nearestUnused(pts, l.used, pred, tolerance*step.Norm())
			if idx < 0 {
				continue
			}
			l.pos[t] = pts[idx]
			l.used[idx] = true
			queue = append(queue, t)

			minI, maxI = min(minI, t[0]), max(maxI, t[0])
			minJ, maxJ = min(minJ, t[1]), max(maxJ, t[1])
			if maxI-minI+1 > maxSpan || maxJ-minJ+1 > maxSpan || len(l.pos) > shape.Len() {
				return nil, false
			}
		}
	}
	return l, true
}

// seedAxes picks the two lattice directions at a seed: the nearest neighbour
// and the closest-to-perpendicular neighbour of similar length.
func seedAxes(pts []geometry.Point2D, seed int) (geometry.Point2D, geometry.Point2D, bool) {
	type neighbour struct {
		vec  geometry.Point2D
		dist float64
	}
	var near []neighbour
	for i, p := range pts {
		if i == seed {
			continue
		}
		v := p.Sub(pts[seed])
		near = append(near, neighbour{v, v.Norm()})
	}
	if len(near) < 2 {
		return geometry.Point2D{}, geometry.Point2D{}, false
	}
	sort.Slice(near, func(a, b int) bool { return near[a].dist < near[b].dist })
	if len(near) > 6 {
		near = near[:6]
	}

	a := near[0]
	if a.dist < 1 {
		return geometry.Point2D{}, geometry.Point2D{}, false
	}
	best, bestCos := -1, 0.5
	for k, n := range near[1:] {
		ratio := n.dist / a.dist
		if ratio > 2 {
			continue
		}
		cos := math.Abs(a.vec.Dot(n.vec)) / (a.dist * n.dist)
		if cos < bestCos {
			best, bestCos = k+1, cos
		}
	}
	if best < 0 {
		return geometry.Point2D{}, geometry.Point2D{}, false
	}
	return a.vec, near[best].vec, true
}

// predict estimates the position of c+d and the local step length.
func (l *lattice) predict(c, d cell) (geometry.Point2D, geometry.Point2D) {
	p := l.pos[c]

	// Continue the straight line through the previous node.
	if prev, ok := l.pos[cell{c[0] - d[0], c[1] - d[1]}]; ok {
		step := p.Sub(prev)
		return p.Add(step), step
	}

	// Complete a parallelogram with a perpendicular neighbour.
	perp := [2]cell{{d[1], d[0]}, {-d[1], -d[0]}}
	for _, e := range perp {
		side, ok := l.pos[cell{c[0] + e[0], c[1] + e[1]}]
		if !ok {
			continue
		}
		if diag, ok := l.pos[cell{c[0] + e[0] + d[0], c[1] + e[1] + d[1]}]; ok {
			step := diag.Sub(side)
			return p.Add(step), step
		}
	}

	step := l.axisJ.Scale(float64(d[1])).Add(l.axisI.Scale(float64(d[0])))
	return p.Add(step), step
}

func nearestUnused(pts []geometry.Point2D, used []bool, target geometry.Point2D, radius float64) int {
	best, bestDist := -1, radius
	for i, p := range pts {
		if used[i] {
			continue
		}
		if d := p.Distance(target); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// extract checks that the lattice is a completely filled rectangle with the
// requested shape (in either orientation) and returns it row-major.
func (l *lattice) extract(shape grid.Shape) ([]geometry.Point2D, int, int, bool) {
	if len(l.pos) != shape.Len() {
		return nil, 0, 0, false
	}

	minI, minJ := math.MaxInt, math.MaxInt
	maxI, maxJ := math.MinInt, math.MinInt
	for c := range l.pos {
		minI, maxI = min(minI, c[0]), max(maxI, c[0])
		minJ, maxJ = min(minJ, c[1]), max(maxJ, c[1])
	}
	rows, cols := maxI-minI+1, maxJ-minJ+1

	fits := (rows == shape.Rows && cols == shape.Cols) || (rows == shape.Cols && cols == shape.Rows)
	if !fits || rows*cols != len(l.pos) {
		return nil, 0, 0, false
	}

	out := make([]geometry.Point2D, 0, rows*cols)
	for i := minI; i <= maxI; i++ {
		for j := minJ; j <= maxJ; j++ {
			p, ok := l.pos[cell{i, j}]
			if !ok {
				return nil, 0, 0, false
			}
			out = append(out, p)
		}
	}
	return out, rows, cols, true
}

// validateChecker samples the centre of every square between corners and
// requires the squares to alternate between dark and bright.
func validateChecker(p *plane, pts []geometry.Point2D, rows, cols int, minContrast float64) bool {
	if rows < 2 || cols < 2 {
		return true
	}

	type sample struct {
		v      float64
		parity int
	}
	var samples []sample
	var sum [2]float64
	var count [2]int
	for i := 0; i < rows-1; i++ {
		for j := 0; j < cols-1; j++ {
			c := geometry.Centroid([]geometry.Point2D{
				pts[i*cols+j], pts[i*cols+j+1], pts[(i+1)*cols+j], pts[(i+1)*cols+j+1],
			})
			v := p.sample(c.X, c.Y)
			parity := (i + j) % 2
			samples = append(samples, sample{v, parity})
			sum[parity] += v
			count[parity]++
		}
	}

	var mean [2]float64
	for k := range mean {
		if count[k] == 0 {
			return true
		}
		mean[k] = sum[k] / float64(count[k])
	}
	if math.Abs(mean[0]-mean[1]) < minContrast {
		return false
	}

	mid := (mean[0] + mean[1]) / 2
	high := 0
	if mean[1] > mean[0] {
		high = 1
	}
	wrong := 0
	for _, s := range samples {
		if (s.v > mid) != (s.parity == high) {
			wrong++
		}
	}
	return float64(wrong) <= 0.1*float64(len(samples))
}

// outline returns the four extreme corners of a row-major lattice in
// traversal order.
func outline(pts []geometry.Point2D, rows, cols int) []geometry.Point2D {
	return []geometry.Point2D{
		pts[0],
		pts[cols-1],
		pts[rows*cols-1],
		pts[(rows-1)*cols],
	}
}
