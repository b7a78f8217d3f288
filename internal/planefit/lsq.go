package planefit

import (
	"fmt"
	"math"

	"github.com/andresmejia3/fitlab/internal/pointcloud"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// rankTolerance is the smallest ratio of the middle to the largest singular
// value for which the centered points still span a plane.
const rankTolerance = 1e-12

// Fit dispatches to StandardLS or TotalLS.
func Fit(method Method, pts []r3.Vector) (Plane, error) {
	switch method {
	case SLS:
		return StandardLS(pts)
	case TLS:
		return TotalLS(pts)
	}
	return Plane{}, fmt.Errorf("%q: %w", method, ErrInvalidMethod)
}

// StandardLS solves the normal equations (AᵗA)c = Aᵗ1 for the plane
// Ax + By + Cz = 1.
func StandardLS(pts []r3.Vector) (Plane, error) {
	if len(pts) < 3 {
		return Plane{}, fmt.Errorf("standard LS on %d points: %w", len(pts), ErrTooFewPoints)
	}
	a := pointcloud.Matrix(pts)

	ones := make([]float64, len(pts))
	for i := range ones {
		ones[i] = 1
	}
	b := mat.NewVecDense(len(pts), ones)

	var ata mat.Dense
	ata.Mul(a.T(), a)
	var atb mat.VecDense
	atb.MulVec(a.T(), b)

	var c mat.VecDense
	if err := c.SolveVec(&ata, &atb); err != nil {
		return Plane{}, fmt.Errorf("standard LS: %w: %v", ErrDegenerate, err)
	}

	coeff := r3.Vector{X: c.AtVec(0), Y: c.AtVec(1), Z: c.AtVec(2)}
	if !finite(coeff) {
		return Plane{}, fmt.Errorf("standard LS: %w: non-finite coefficients", ErrDegenerate)
	}
	return Plane{Method: SLS, Coeff: coeff}, nil
}

// TotalLS centers the points and takes the right singular vector of the
// smallest singular value as the plane normal. The returned plane carries the
// centroid it was fitted around.
func TotalLS(pts []r3.Vector) (Plane, error) {
	if len(pts) < 3 {
		return Plane{}, fmt.Errorf("total LS on %d points: %w", len(pts), ErrTooFewPoints)
	}
	centroid := pointcloud.Centroid(pts)

	centered := mat.NewDense(len(pts), 3, nil)
	for i, p := range pts {
		d := p.Sub(centroid)
		centered.SetRow(i, []float64{d.X, d.Y, d.Z})
	}

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThinV) {
		return Plane{}, fmt.Errorf("total LS: %w: SVD did not converge", ErrDegenerate)
	}
	s := svd.Values(nil)
	if s[0] == 0 || s[1] <= rankTolerance*s[0] {
		return Plane{}, fmt.Errorf("total LS: %w: points do not span a plane", ErrDegenerate)
	}

	var v mat.Dense
	svd.VTo(&v)
	normal := r3.Vector{X: v.At(0, 2), Y: v.At(1, 2), Z: v.At(2, 2)}

	return Plane{Method: TLS, Coeff: normal.Normalize(), Centroid: centroid}, nil
}

func finite(v r3.Vector) bool {
	for _, x := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
