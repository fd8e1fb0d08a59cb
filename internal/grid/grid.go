// Package grid models the physical checkerboard marker: the object-space
// coordinates of its interior corners on the z = 0 plane.
package grid

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
)

// ErrInvalidShape is returned for non-positive grid dimensions.
var ErrInvalidShape = errors.New("grid dimensions must be positive")

// Shape is the interior-corner count of a checkerboard pattern.
type Shape struct {
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

// Len returns Rows*Cols.
func (s Shape) Len() int {
	return s.Rows * s.Cols
}

// Validate checks that both dimensions are positive.
func (s Shape) Validate() error {
	if s.Rows <= 0 || s.Cols <= 0 {
		return fmt.Errorf("%dx%d: %w", s.Rows, s.Cols, ErrInvalidShape)
	}
	return nil
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Rows, s.Cols)
}

// Grid is the ordered set of reference points of a checkerboard marker.
// Point at row i, column j is (j*spacing, i*spacing, 0); points are stored
// row-major. A Grid is immutable once built.
type Grid struct {
	shape   Shape
	spacing float64
	points  []r3.Vector
}

// Build constructs the unit-spacing reference grid for a rows x cols
// interior-corner pattern.
func Build(rows, cols int) (Grid, error) {
	shape := Shape{Rows: rows, Cols: cols}
	if err := shape.Validate(); err != nil {
		return Grid{}, err
	}
	return build(shape, 1), nil
}

func build(shape Shape, spacing float64) Grid {
	points := make([]r3.Vector, 0, shape.Len())
	for i := 0; i < shape.Rows; i++ {
		for j := 0; j < shape.Cols; j++ {
			points = append(points, r3.Vector{X: float64(j) * spacing, Y: float64(i) * spacing})
		}
	}
	return Grid{shape: shape, spacing: spacing, points: points}
}

// Scaled returns a copy of the grid with the given square size, so pose
// translations come out in the same physical unit.
func (g Grid) Scaled(squareSize float64) Grid {
	return build(g.shape, squareSize)
}

// Shape returns the grid dimensions.
func (g Grid) Shape() Shape { return g.shape }

// Rows returns the number of corner rows.
func (g Grid) Rows() int { return g.shape.Rows }

// Cols returns the number of corners per row.
func (g Grid) Cols() int { return g.shape.Cols }

// Spacing returns the distance between neighbouring corners.
func (g Grid) Spacing() float64 { return g.spacing }

// Len returns the number of points.
func (g Grid) Len() int { return len(g.points) }

// At returns the point at row-major index i.
func (g Grid) At(i int) r3.Vector { return g.points[i] }

// Points returns a copy of the reference points in row-major order.
func (g Grid) Points() []r3.Vector {
	out := make([]r3.Vector, len(g.points))
	copy(out, g.points)
	return out
}
