package planefit

import (
	"fmt"

	"github.com/andresmejia3/fitlab/internal/pointcloud"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// CovarianceAnalysis is the eigen-analysis of a point cloud's covariance.
type CovarianceAnalysis struct {
	Mean        r3.Vector
	Covariance  *mat.SymDense
	Eigenvalues []float64  // ascending
	Vectors     *mat.Dense // column i belongs to Eigenvalues[i]
	// Normal is the unit eigenvector of the smallest eigenvalue.
	Normal r3.Vector
	// NormalVariance is the variance of the cloud along Normal.
	NormalVariance float64
}

// AnalyzeCovariance computes the population covariance (means over N) of pts
// and its eigendecomposition.
func AnalyzeCovariance(pts []r3.Vector) (*CovarianceAnalysis, error) {
	if len(pts) < 3 {
		return nil, fmt.Errorf("covariance of %d points: %w", len(pts), ErrTooFewPoints)
	}
	mean := pointcloud.Centroid(pts)

	centered := mat.NewDense(len(pts), 3, nil)
	for i, p := range pts {
		d := p.Sub(mean)
		centered.SetRow(i, []float64{d.X, d.Y, d.Z})
	}

	cov := mat.NewSymDense(3, nil)
	cov.SymOuterK(1/float64(len(pts)), centered.T())

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, fmt.Errorf("covariance: %w: eigendecomposition failed", ErrDegenerate)
	}
	vals := eig.Values(nil)
	vecs := mat.NewDense(3, 3, nil)
	eig.VectorsTo(vecs)

	normal := r3.Vector{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}
	return &CovarianceAnalysis{
		Mean:           mean,
		Covariance:     cov,
		Eigenvalues:    vals,
		Vectors:        vecs,
		Normal:         normal,
		NormalVariance: vals[0],
	}, nil
}
