package planefit

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrShape is returned by GramSVD for matrices with fewer rows than columns.
var ErrShape = errors.New("the matrix must have at least as many rows as columns")

// GramSVD computes the singular value decomposition A = U S Vᵀ from the
// eigendecomposition of the Gram matrix AᵗA.
//
// Singular values are returned in descending order as the square roots of the
// absolute eigenvalues. Left singular vectors are recovered as A vᵢ / sᵢ; a
// column whose singular value is exactly zero is left as zeros.
func GramSVD(a mat.Matrix) (u *mat.Dense, s []float64, vt *mat.Dense, err error) {
	m, n := a.Dims()
	if m < n {
		return nil, nil, nil, fmt.Errorf("%d×%d: %w", m, n, ErrShape)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, a.T())

	var eig mat.EigenSym
	if !eig.Factorize(&gram, true) {
		return nil, nil, nil, fmt.Errorf("gram SVD: %w: eigendecomposition failed", ErrDegenerate)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return vals[order[i]] > vals[order[j]] })

	s = make([]float64, n)
	v := mat.NewDense(n, n, nil)
	for i, idx := range order {
		s[i] = math.Sqrt(math.Abs(vals[idx]))
		v.SetCol(i, mat.Col(nil, idx, &vecs))
	}

	u = mat.NewDense(m, n, nil)
	for i := 0; i < n; i++ {
		if s[i] == 0 {
			continue
		}
		var col mat.VecDense
		col.MulVec(a, v.ColView(i))
		col.ScaleVec(1/s[i], &col)
		u.SetCol(i, mat.Col(nil, 0, &col))
	}

	vt = mat.DenseCopyOf(v.T())
	return u, s, vt, nil
}
