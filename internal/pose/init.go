package pose

import (
	"fmt"
	"math"

	"checkerpose/pkg/geometry"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// planeFrame describes the best-fit plane of a point set: X = Origin + Basis·(u, v, w).
type planeFrame struct {
	Origin r3.Vector
	Basis  geometry.Mat3 // columns: in-plane axes, then the normal
	Planar bool
}

// fitPlane finds the principal axes of the points. Collinear or coincident
// points return ErrDegenerate.
func fitPlane(obj []r3.Vector) (planeFrame, error) {
	var c r3.Vector
	for _, x := range obj {
		c = c.Add(x)
	}
	c = c.Mul(1 / float64(len(obj)))

	scatter := mat.NewSymDense(3, nil)
	for _, x := range obj {
		d := x.Sub(c)
		v := []float64{d.X, d.Y, d.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				scatter.SetSym(i, j, scatter.At(i, j)+v[i]*v[j])
			}
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(scatter, true) {
		return planeFrame{}, fmt.Errorf("object point eigen decomposition failed: %w", ErrDegenerate)
	}
	values := eig.Values(nil) // ascending
	if values[2] <= 0 || values[1] < 1e-10*values[2] {
		return planeFrame{}, fmt.Errorf("object points are collinear: %w", ErrDegenerate)
	}

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	col := func(j int) r3.Vector {
		return r3.Vector{X: vecs.At(0, j), Y: vecs.At(1, j), Z: vecs.At(2, j)}
	}
	e1, e2 := col(2), col(1)
	e3 := e1.Cross(e2)

	return planeFrame{
		Origin: c,
		Basis:  geometry.Mat3FromColumns(e1, e2, e3),
		Planar: values[0] < 1e-10*values[2],
	}, nil
}

// initialPose returns a linear pose estimate from object points and
// undistorted normalized image coordinates.
func initialPose(obj []r3.Vector, norm []geometry.Point2D) (Pose, error) {
	pf, err := fitPlane(obj)
	if err != nil {
		return Pose{}, err
	}
	if pf.Planar {
		return planarPose(obj, norm, pf)
	}
	if len(obj) < 6 {
		return Pose{}, fmt.Errorf("non-planar object needs at least 6 points, got %d: %w", len(obj), ErrDegenerate)
	}
	return dltPose(obj, norm)
}

// planarPose decomposes the plane-to-image homography. With the object in
// plane coordinates q, norm ~ [r1 r2 t]·(q, 1).
func planarPose(obj []r3.Vector, norm []geometry.Point2D, pf planeFrame) (Pose, error) {
	bt := pf.Basis.T()
	src := make([]geometry.Point2D, len(obj))
	for i, x := range obj {
		q := bt.MulVec(x.Sub(pf.Origin))
		src[i] = geometry.Point2D{X: q.X, Y: q.Y}
	}

	h, err := geometry.FitHomography(src, norm)
	if err != nil {
		return Pose{}, fmt.Errorf("plane homography: %v: %w", err, ErrDegenerate)
	}
	for _, q := range src {
		if _, ok := h.Apply(q); !ok {
			return Pose{}, fmt.Errorf("object plane maps through the horizon: %w", ErrDegenerate)
		}
	}

	h1 := r3.Vector{X: h[0], Y: h[3], Z: h[6]}
	h2 := r3.Vector{X: h[1], Y: h[4], Z: h[7]}
	h3 := r3.Vector{X: h[2], Y: h[5], Z: h[8]}

	lambda := 2 / (h1.Norm() + h2.Norm())
	if h3.Z < 0 {
		lambda = -lambda
	}
	r1, r2 := h1.Mul(lambda), h2.Mul(lambda)
	rPlane, ok := geometry.NearestRotation(geometry.Mat3FromColumns(r1, r2, r1.Cross(r2)))
	if !ok {
		return Pose{}, fmt.Errorf("rotation orthonormalisation failed: %w", ErrDegenerate)
	}
	tPlane := h3.Mul(lambda)

	// X_cam = rPlane·Bᵀ·(X − c) + tPlane
	r := rPlane.Mul(bt)
	t := tPlane.Sub(r.MulVec(pf.Origin))
	return Pose{RVec: geometry.RotationVector(r), TVec: t}, nil
}

// dltPose estimates the 3x4 projection [R|t] from six or more non-coplanar
// points with the normalized direct linear transform.
func dltPose(obj []r3.Vector, norm []geometry.Point2D) (Pose, error) {
	n := len(obj)
	var c r3.Vector
	for _, x := range obj {
		c = c.Add(x)
	}
	c = c.Mul(1 / float64(n))
	var meanDist float64
	for _, x := range obj {
		meanDist += x.Sub(c).Norm()
	}
	meanDist /= float64(n)
	if meanDist < 1e-12 {
		return Pose{}, fmt.Errorf("object points coincide: %w", ErrDegenerate)
	}
	s := math.Sqrt(3) / meanDist

	a := mat.NewDense(2*n, 12, nil)
	for i := range obj {
		x := obj[i].Sub(c).Mul(s)
		u, v := norm[i].X, norm[i].Y
		a.SetRow(2*i, []float64{x.X, x.Y, x.Z, 1, 0, 0, 0, 0, -u * x.X, -u * x.Y, -u * x.Z, -u})
		a.SetRow(2*i+1, []float64{0, 0, 0, 0, x.X, x.Y, x.Z, 1, -v * x.X, -v * x.Y, -v * x.Z, -v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFullV) {
		return Pose{}, fmt.Errorf("dlt svd failed: %w", ErrDegenerate)
	}
	values := svd.Values(nil)
	if len(values) < 11 || values[10] < 1e-9*values[0] {
		return Pose{}, fmt.Errorf("dlt system is rank deficient: %w", ErrDegenerate)
	}
	var vt mat.Dense
	svd.VTo(&vt)

	// Undo the object normalisation: P = P'·[sI  −s·c; 0 1].
	var m geometry.Mat3
	var p4 r3.Vector
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m[row][col] = vt.At(row*4+col, 11) * s
		}
	}
	p4 = r3.Vector{X: vt.At(3, 11), Y: vt.At(7, 11), Z: vt.At(11, 11)}
	p4 = p4.Sub(m.MulVec(c))

	var msvd mat.SVD
	if !msvd.Factorize(m.Dense(), mat.SVDNone) {
		return Pose{}, fmt.Errorf("dlt scale recovery failed: %w", ErrDegenerate)
	}
	sv := msvd.Values(nil)
	scale := (sv[0] + sv[1] + sv[2]) / 3
	if scale < 1e-15 {
		return Pose{}, fmt.Errorf("dlt projection is singular: %w", ErrDegenerate)
	}
	lambda := 1 / scale
	if m.Det() < 0 {
		lambda = -lambda
	}

	var scaled geometry.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			scaled[i][j] = m[i][j] * lambda
		}
	}
	r, ok := geometry.NearestRotation(scaled)
	if !ok {
		return Pose{}, fmt.Errorf("rotation orthonormalisation failed: %w", ErrDegenerate)
	}
	return Pose{RVec: geometry.RotationVector(r), TVec: p4.Mul(lambda)}, nil
}
