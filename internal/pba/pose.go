package pba

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vec3 is a 3-D point or direction.
type Vec3 [3]float64

// Mat44 is a 4x4 rigid transform stored row-major:
// m00,m01,m02,m03, m10,... Translation sits in elements 3, 7, 11.
type Mat44 [16]float64

// MatrixValidationTolerance is the tolerance for checking rotation matrix
// validity in IsValidTransform.
const MatrixValidationTolerance = 0.01

// Mat44Identity returns the identity transform.
func Mat44Identity() Mat44 {
	var T Mat44
	T[0], T[5], T[10], T[15] = 1, 1, 1, 1
	return T
}

// Apply transforms point p by T. Hot path during projection; kept as
// straight-line arithmetic.
func (T Mat44) Apply(p Vec3) Vec3 {
	return Vec3{
		T[0]*p[0] + T[1]*p[1] + T[2]*p[2] + T[3],
		T[4]*p[0] + T[5]*p[1] + T[6]*p[2] + T[7],
		T[8]*p[0] + T[9]*p[1] + T[10]*p[2] + T[11],
	}
}

// Translation returns the translation column of T.
func (T Mat44) Translation() Vec3 {
	return Vec3{T[3], T[7], T[11]}
}

// Mul returns T*o.
func (T Mat44) Mul(o Mat44) Mat44 {
	var prod mat.Dense
	prod.Mul(mat.NewDense(4, 4, T[:]), mat.NewDense(4, 4, o[:]))
	var out Mat44
	copy(out[:], prod.RawMatrix().Data)
	return out
}

// Inverse returns T^-1, or an error if the matrix is singular. Rigid
// transforms accepted by IsValidTransform are always invertible; the error
// path exists for garbage input.
func (T Mat44) Inverse() (Mat44, error) {
	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(4, 4, T[:])); err != nil {
		return Mat44{}, fmt.Errorf("transform not invertible: %w", err)
	}
	var out Mat44
	copy(out[:], inv.RawMatrix().Data)
	return out, nil
}

// IsValidTransform checks that T is a proper rigid transform:
// 1. Orthonormal rotation submatrix (det ≈ 1)
// 2. Last row is [0 0 0 1]
func (T Mat44) IsValidTransform() bool {
	r00, r01, r02 := T[0], T[1], T[2]
	r10, r11, r12 := T[4], T[5], T[6]
	r20, r21, r22 := T[8], T[9], T[10]

	// Determinant ≈ 1 rules out reflections and scaled rotations.
	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > MatrixValidationTolerance {
		return false
	}

	if T[12] != 0 || T[13] != 0 || T[14] != 0 || math.Abs(T[15]-1.0) > 0.001 {
		return false
	}

	return true
}
