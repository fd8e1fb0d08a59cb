package pose

import (
	"math"

	"checkerpose/internal/camera"
	"checkerpose/pkg/geometry"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// reprojection evaluates pixel residuals for a parameter vector
// (rx, ry, rz, tx, ty, tz).
type reprojection struct {
	obj []r3.Vector
	img []geometry.Point2D
	cam camera.Model
}

func params(p Pose) []float64 {
	return []float64{p.RVec.X, p.RVec.Y, p.RVec.Z, p.TVec.X, p.TVec.Y, p.TVec.Z}
}

func fromParams(x []float64) Pose {
	return Pose{
		RVec: r3.Vector{X: x[0], Y: x[1], Z: x[2]},
		TVec: r3.Vector{X: x[3], Y: x[4], Z: x[5]},
	}
}

// Residuals writes the 2n residual vector into y.
func (rp *reprojection) Residuals(y, x []float64) {
	r := geometry.Rodrigues(r3.Vector{X: x[0], Y: x[1], Z: x[2]})
	t := r3.Vector{X: x[3], Y: x[4], Z: x[5]}
	for i, p := range rp.obj {
		q := rp.cam.Project(r.MulVec(p).Add(t))
		y[2*i] = q.X - rp.img[i].X
		y[2*i+1] = q.Y - rp.img[i].Y
	}
}

// Func is the sum of squared residuals.
func (rp *reprojection) Func(x []float64) float64 {
	y := make([]float64, 2*len(rp.obj))
	rp.Residuals(y, x)
	var sum float64
	for _, v := range y {
		sum += v * v
	}
	if math.IsNaN(sum) {
		return math.Inf(1)
	}
	return sum
}

// refine minimises the reprojection error starting from init. It runs
// Levenberg-Marquardt and, when that cannot make progress from a poor
// start, Nelder-Mead.
func refine(obj []r3.Vector, img []geometry.Point2D, cam camera.Model, init Pose, maxIter int) Pose {
	rp := &reprojection{obj: obj, img: img, cam: cam}
	x0 := params(init)

	x, cost, improved := levenbergMarquardt(rp, x0, maxIter)
	if improved || cost < 1e-12*float64(len(obj)) {
		return fromParams(x)
	}

	result, err := optimize.Minimize(optimize.Problem{Func: rp.Func}, x0, &optimize.Settings{
		FuncEvaluations: 20000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 200,
		},
	}, &optimize.NelderMead{})
	if err == nil && result.F < cost {
		return fromParams(result.X)
	}
	return fromParams(x)
}

// levenbergMarquardt returns the refined parameters, their cost and whether
// any step was accepted.
func levenbergMarquardt(rp *reprojection, x0 []float64, maxIter int) ([]float64, float64, bool) {
	const np = 6
	m := 2 * len(rp.obj)

	x := append([]float64(nil), x0...)
	cost := rp.Func(x)
	if math.IsInf(cost, 1) {
		return x, cost, false
	}

	res := make([]float64, m)
	jac := mat.NewDense(m, np, nil)
	settings := &fd.JacobianSettings{Formula: fd.Central}
	lambda := 1e-3
	improved := false

	var jtj mat.Dense
	var grad, step mat.VecDense

	for iter := 0; iter < maxIter; iter++ {
		rp.Residuals(res, x)
		fd.Jacobian(jac, rp.Residuals, x, settings)

		jtj.Mul(jac.T(), jac)
		grad.MulVec(jac.T(), mat.NewVecDense(m, res))

		accepted := false
		for lambda < 1e10 {
			a := mat.DenseCopyOf(&jtj)
			for i := 0; i < np; i++ {
				a.Set(i, i, jtj.At(i, i)*(1+lambda))
			}
			if err := step.SolveVec(a, &grad); err != nil {
				lambda *= 10
				continue
			}

			cand := make([]float64, np)
			for i := range cand {
				cand[i] = x[i] - step.AtVec(i)
			}
			if c := rp.Func(cand); c < cost {
				rel := (cost - c) / cost
				x, cost = cand, c
				lambda = math.Max(lambda/10, 1e-12)
				accepted, improved = true, true
				if rel < 1e-12 {
					return x, cost, improved
				}
				break
			}
			lambda *= 10
		}
		if !accepted || cost < 1e-20 {
			break
		}
	}
	return x, cost, improved
}
