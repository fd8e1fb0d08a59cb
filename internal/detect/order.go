package detect

import (
	"checkerpose/internal/grid"
	"checkerpose/pkg/geometry"
)

// Canonicalize reorders a row-major lattice of nRows x nCols corners so that
// corner r*shape.Cols+c corresponds to reference point (c, r, 0).
//
// The column axis (the one holding shape.Cols corners) is oriented towards
// the image's +x direction and the row axis is chosen so the two form a
// right-handed frame with y pointing down, which is how the grid appears
// when the marker is seen from its printed side. The ordering then depends
// only on the marker's pose, never on the order corners were found in.
func Canonicalize(pts []geometry.Point2D, nRows, nCols int, shape grid.Shape) ([]geometry.Point2D, bool) {
	if nRows*nCols != len(pts) || len(pts) != shape.Len() {
		return nil, false
	}
	if !((nRows == shape.Rows && nCols == shape.Cols) || (nRows == shape.Cols && nCols == shape.Rows)) {
		return nil, false
	}
	if len(pts) == 1 {
		return []geometry.Point2D{pts[0]}, true
	}

	at := func(i, j int) geometry.Point2D { return pts[i*nCols+j] }

	// Mean step along the lattice's own column (j) and row (i) directions.
	var stepJ, stepI geometry.Point2D
	for i := 0; i < nRows; i++ {
		for j := 0; j < nCols; j++ {
			if j+1 < nCols {
				stepJ = stepJ.Add(at(i, j+1).Sub(at(i, j)))
			}
			if i+1 < nRows {
				stepI = stepI.Add(at(i+1, j).Sub(at(i, j)))
			}
		}
	}
	if nCols == 1 {
		stepJ = geometry.Point2D{X: -stepI.Y, Y: stepI.X}
	}
	if nRows == 1 {
		stepI = geometry.Point2D{X: -stepJ.Y, Y: stepJ.X}
	}

	type layout struct {
		transposed bool // column axis runs along the lattice's i direction
		flipU      bool
		flipV      bool
		u          geometry.Point2D
	}

	var options []layout
	consider := func(transposed bool, u, v geometry.Point2D) {
		for _, flipU := range []bool{false, true} {
			uu := u
			if flipU {
				uu = u.Scale(-1)
			}
			cross := uu.Cross(v)
			if cross == 0 {
				continue
			}
			options = append(options, layout{transposed: transposed, flipU: flipU, flipV: cross < 0, u: uu})
		}
	}
	if nRows == shape.Rows && nCols == shape.Cols {
		consider(false, stepJ, stepI)
	}
	if nRows == shape.Cols && nCols == shape.Rows {
		consider(true, stepI, stepJ)
	}
	if len(options) == 0 {
		return nil, false
	}

	best := options[0]
	for _, o := range options[1:] {
		if better(o.u, best.u) {
			best = o
		}
	}

	out := make([]geometry.Point2D, 0, len(pts))
	nu, nv := shape.Cols, shape.Rows
	for r := 0; r < shape.Rows; r++ {
		for c := 0; c < shape.Cols; c++ {
			ku, kv := c, r
			if best.flipU {
				ku = nu - 1 - c
			}
			if best.flipV {
				kv = nv - 1 - r
			}
			if best.transposed {
				out = append(out, at(ku, kv))
			} else {
				out = append(out, at(kv, ku))
			}
		}
	}
	return out, true
}

// better prefers the column direction pointing most to the right, then the
// one pointing up.
func better(a, b geometry.Point2D) bool {
	sa, sb := a.X/a.Norm(), b.X/b.Norm()
	if d := sa - sb; d > 1e-9 || d < -1e-9 {
		return d > 0
	}
	return a.Y < b.Y
}
