package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// MulVec returns m·v.
func (m Mat3) MulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Mul returns m·o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return out
}

// T returns the transpose.
func (m Mat3) T() Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// Det returns the determinant.
func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Dense copies m into a gonum matrix.
func (m Mat3) Dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})
}

// Mat3FromColumns builds a matrix whose columns are a, b and c.
func Mat3FromColumns(a, b, c r3.Vector) Mat3 {
	return Mat3{
		{a.X, b.X, c.X},
		{a.Y, b.Y, c.Y},
		{a.Z, b.Z, c.Z},
	}
}

// Rodrigues converts an axis-angle rotation vector (angle = norm) into a
// rotation matrix.
func Rodrigues(rvec r3.Vector) Mat3 {
	theta := rvec.Norm()
	if theta < 1e-12 {
		// First-order expansion: I + [r]x
		return Mat3{
			{1, -rvec.Z, rvec.Y},
			{rvec.Z, 1, -rvec.X},
			{-rvec.Y, rvec.X, 1},
		}
	}

	k := rvec.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	v := 1 - c

	return Mat3{
		{c + k.X*k.X*v, k.X*k.Y*v - k.Z*s, k.X*k.Z*v + k.Y*s},
		{k.Y*k.X*v + k.Z*s, c + k.Y*k.Y*v, k.Y*k.Z*v - k.X*s},
		{k.Z*k.X*v - k.Y*s, k.Z*k.Y*v + k.X*s, c + k.Z*k.Z*v},
	}
}

// RotationVector converts a rotation matrix into its axis-angle vector.
// The input is assumed orthonormal with determinant +1.
func RotationVector(m Mat3) r3.Vector {
	cosTheta := (m[0][0] + m[1][1] + m[2][2] - 1) / 2
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	theta := math.Acos(cosTheta)

	skew := r3.Vector{
		X: m[2][1] - m[1][2],
		Y: m[0][2] - m[2][0],
		Z: m[1][0] - m[0][1],
	}

	switch {
	case theta < 1e-9:
		return skew.Mul(0.5)
	case math.Pi-theta < 1e-6:
		// sin(theta) ~ 0: recover the axis from the symmetric part,
		// (R+Rᵀ)/2 = cI + (1-c)kkᵀ, anchored on its largest diagonal term.
		v := 1 - cosTheta
		i := 0
		for j := 1; j < 3; j++ {
			if m[j][j] > m[i][i] {
				i = j
			}
		}
		var k [3]float64
		k[i] = math.Sqrt(math.Max(0, (m[i][i]-cosTheta)/v))
		for j := 0; j < 3; j++ {
			if j != i {
				k[j] = (m[i][j] + m[j][i]) / (2 * v * k[i])
			}
		}
		axis := r3.Vector{X: k[0], Y: k[1], Z: k[2]}.Normalize()
		if axis.Dot(skew) < 0 {
			axis = axis.Mul(-1)
		}
		return axis.Mul(theta)
	default:
		return skew.Mul(theta / (2 * math.Sin(theta)))
	}
}

// NearestRotation returns the rotation matrix closest to m in the Frobenius
// sense (U·Vᵀ from the SVD of m, with the sign of the last column fixed so
// the result is a proper rotation). ok is false when the SVD fails.
func NearestRotation(m Mat3) (Mat3, bool) {
	var svd mat.SVD
	if !svd.Factorize(m.Dense(), mat.SVDFull) {
		return Mat3{}, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		// Flip the column of U belonging to the smallest singular value.
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}

	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = r.At(i, j)
		}
	}
	return out, true
}
