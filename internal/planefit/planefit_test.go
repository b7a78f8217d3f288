package planefit

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const tol = 1e-9

// planarCloud samples z = 0.5x - 0.25y + 2 on an 11×11 grid.
// In standard form: -0.25x + 0.125y + 0.5z = 1.
func planarCloud() []r3.Vector {
	var pts []r3.Vector
	for i := -5; i <= 5; i++ {
		for j := -5; j <= 5; j++ {
			x, y := float64(i), float64(j)
			pts = append(pts, r3.Vector{X: x, Y: y, Z: 0.5*x - 0.25*y + 2})
		}
	}
	return pts
}

var planarNormal = r3.Vector{X: -0.5, Y: 0.25, Z: 1}.Normalize()

func collinear(n int) []r3.Vector {
	pts := make([]r3.Vector, n)
	for i := range pts {
		pts[i] = r3.Vector{X: float64(i + 1)}
	}
	return pts
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"SLS", SLS, false},
		{"TLS", TLS, false},
		{"sls", "", true},
		{"", "", true},
		{"OLS", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMethod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStandardLSExactPlane(t *testing.T) {
	pts := planarCloud()
	p, err := StandardLS(pts)
	require.NoError(t, err)

	assert.Equal(t, SLS, p.Method)
	assert.InDelta(t, -0.25, p.Coeff.X, tol)
	assert.InDelta(t, 0.125, p.Coeff.Y, tol)
	assert.InDelta(t, 0.5, p.Coeff.Z, tol)
	for _, pt := range pts {
		assert.InDelta(t, 1, p.Coeff.Dot(pt), tol)
		assert.InDelta(t, 0, p.Distance(pt), tol)
	}
}

func TestStandardLSDegenerate(t *testing.T) {
	_, err := StandardLS(collinear(3))
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = StandardLS(collinear(2))
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestTotalLS(t *testing.T) {
	pts := planarCloud()
	p, err := TotalLS(pts)
	require.NoError(t, err)

	assert.Equal(t, TLS, p.Method)
	assert.InDelta(t, 1, p.Coeff.Norm(), tol, "normal must have unit magnitude")
	assert.InDelta(t, 1, math.Abs(p.Coeff.Dot(planarNormal)), tol)
	assert.InDelta(t, 0, p.Centroid.X, tol)
	assert.InDelta(t, 0, p.Centroid.Y, tol)
	assert.InDelta(t, 2, p.Centroid.Z, tol)
	for _, pt := range pts {
		assert.InDelta(t, 0, p.Distance(pt), 1e-8)
	}
}

func TestTotalLSDeterministic(t *testing.T) {
	pts := planarCloud()
	// Perturb so the fit is not exact.
	r := rand.New(rand.NewSource(3))
	for i := range pts {
		pts[i].Z += r.NormFloat64() * 0.05
	}

	a, err := TotalLS(pts)
	require.NoError(t, err)
	b, err := TotalLS(pts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTotalLSDegenerate(t *testing.T) {
	_, err := TotalLS(collinear(5))
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestFitDispatch(t *testing.T) {
	pts := planarCloud()
	p, err := Fit(SLS, pts)
	require.NoError(t, err)
	assert.Equal(t, SLS, p.Method)

	p, err = Fit(TLS, pts)
	require.NoError(t, err)
	assert.Equal(t, TLS, p.Method)

	_, err = Fit("WLS", pts)
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestPlaneZ(t *testing.T) {
	sls := Plane{Method: SLS, Coeff: r3.Vector{X: -0.25, Y: 0.125, Z: 0.5}}
	tls := Plane{Method: TLS, Coeff: planarNormal, Centroid: r3.Vector{Z: 2}}

	for _, xy := range [][2]float64{{0, 0}, {1, 2}, {-10, 10}} {
		want := 0.5*xy[0] - 0.25*xy[1] + 2
		assert.InDelta(t, want, sls.Z(xy[0], xy[1]), tol)
		assert.InDelta(t, want, tls.Z(xy[0], xy[1]), tol)
	}
}

func TestEvaluators(t *testing.T) {
	pts := []r3.Vector{
		{X: 0, Y: 0, Z: 1},    // on z = 1
		{X: 3, Y: 4, Z: 1.05}, // 0.05 away
		{X: 1, Y: 1, Z: 1.1},  // exactly at threshold
		{X: 0, Y: 0, Z: 2},    // far
	}
	assert.Equal(t, 3, EvalSLS(r3.Vector{Z: 1}, pts, 0.1+1e-12))
	assert.Equal(t, 3, EvalTLS(r3.Vector{Z: 2}, r3.Vector{Z: 1}, pts, 0.1+1e-12))
	assert.Equal(t, 1, EvalSLS(r3.Vector{Z: 1}, pts, 0.01))
}

func TestGramSVDMatchesLibrary(t *testing.T) {
	a := mat.NewDense(5, 3, []float64{
		1, 2, 3,
		4, 5, 6.5,
		-1, 0, 2,
		3, -2, 1,
		0.5, 1, -1,
	})

	u, s, vt, err := GramSVD(a)
	require.NoError(t, err)

	var ref mat.SVD
	require.True(t, ref.Factorize(a, mat.SVDThin))
	want := ref.Values(nil)
	require.Len(t, s, 3)
	for i := range want {
		assert.InDelta(t, want[i], s[i], 1e-9)
	}
	assert.True(t, s[0] >= s[1] && s[1] >= s[2], "singular values must be descending")

	// U S Vᵀ reconstructs A.
	var us, rec mat.Dense
	us.Mul(u, mat.NewDiagDense(3, s))
	rec.Mul(&us, vt)
	assert.True(t, mat.EqualApprox(a, &rec, 1e-9), "reconstruction mismatch:\n%v", mat.Formatted(&rec))

	// V is orthonormal.
	var vtv mat.Dense
	vtv.Mul(vt, vt.T())
	assert.True(t, mat.EqualApprox(&vtv, eye(3), 1e-9))
}

func TestGramSVDZeroSingularValue(t *testing.T) {
	a := mat.NewDense(4, 2, nil)
	u, s, _, err := GramSVD(a)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, s)
	assert.True(t, mat.Equal(u, mat.NewDense(4, 2, nil)), "left vectors of zero singular values stay zero")
}

func TestGramSVDShape(t *testing.T) {
	_, _, _, err := GramSVD(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}))
	assert.ErrorIs(t, err, ErrShape)
}

func TestGramSVDNormalMatchesTotalLS(t *testing.T) {
	pts := planarCloud()
	p, err := TotalLS(pts)
	require.NoError(t, err)

	centered := mat.NewDense(len(pts), 3, nil)
	for i, pt := range pts {
		d := pt.Sub(p.Centroid)
		centered.SetRow(i, []float64{d.X, d.Y, d.Z})
	}
	_, _, vt, err := GramSVD(centered)
	require.NoError(t, err)

	n := r3.Vector{X: vt.At(2, 0), Y: vt.At(2, 1), Z: vt.At(2, 2)}
	assert.InDelta(t, 1, math.Abs(n.Dot(p.Coeff)), 1e-9)
}

func noisyScene(r *rand.Rand) []r3.Vector {
	pts := planarCloud()
	for i := 0; i < 40; i++ {
		x, y := r.Float64()*10-5, r.Float64()*10-5
		// Outliers sit well off the plane.
		pts = append(pts, r3.Vector{X: x, Y: y, Z: 0.5*x - 0.25*y + 2 + 3 + r.Float64()*5})
	}
	return pts
}

func TestRANSAC(t *testing.T) {
	for _, method := range []Method{SLS, TLS} {
		t.Run(string(method), func(t *testing.T) {
			pts := noisyScene(rand.New(rand.NewSource(11)))

			var seen []Hypothesis
			res, err := RANSAC(pts, Options{
				Method:     method,
				Iterations: 300,
				Rand:       rand.New(rand.NewSource(5)),
				Observe:    func(trial int, h Hypothesis) { seen = append(seen, h) },
			})
			require.NoError(t, err)
			require.Len(t, seen, 300)

			assert.Equal(t, 300, res.Iterations)
			assert.GreaterOrEqual(t, res.Inliers, 121, "all planar points should be inliers")
			firstBest := -1
			for i, h := range seen {
				assert.GreaterOrEqual(t, res.Inliers, h.Inliers, "trial %d beat the returned hypothesis", i)
				if firstBest < 0 && !h.Degenerate && h.Inliers == res.Inliers {
					firstBest = i
				}
			}
			assert.Equal(t, firstBest, res.Trial, "ties go to the first hypothesis seen")
			assert.Equal(t, seen[res.Trial].Plane, res.Plane)
			assert.InDelta(t, 1, math.Abs(res.Plane.Normal().Dot(planarNormal)), 1e-6)
		})
	}
}

func TestRANSACDefaults(t *testing.T) {
	pts := planarCloud()
	n := 0
	res, err := RANSAC(pts, Options{Method: TLS, Observe: func(int, Hypothesis) { n++ }})
	require.NoError(t, err)
	assert.Equal(t, DefaultIterations, n)
	assert.Equal(t, len(pts), res.Inliers)
}

func TestRANSACErrors(t *testing.T) {
	_, err := RANSAC(planarCloud(), Options{Method: "tls"})
	assert.ErrorIs(t, err, ErrInvalidMethod)

	_, err = RANSAC(collinear(2), Options{Method: SLS})
	assert.ErrorIs(t, err, ErrTooFewPoints)

	for _, m := range []Method{SLS, TLS} {
		res, err := RANSAC(collinear(10), Options{Method: m, Iterations: 20})
		assert.ErrorIs(t, err, ErrNoConsensus)
		assert.Nil(t, res)
	}
}

func TestAnalyzeCovariance(t *testing.T) {
	pts := []r3.Vector{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}, {X: 2, Y: 2}}
	a, err := AnalyzeCovariance(pts)
	require.NoError(t, err)

	want := mat.NewSymDense(3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 0,
	})
	assert.True(t, mat.EqualApprox(want, a.Covariance, tol), "covariance:\n%v", mat.Formatted(a.Covariance))
	assert.Equal(t, r3.Vector{X: 1, Y: 1}, a.Mean)
	assert.InDelta(t, 0, a.NormalVariance, tol)
	assert.InDelta(t, 1, math.Abs(a.Normal.Z), tol)
	assert.InDelta(t, 1, a.Normal.Norm(), tol)
}

func TestAnalyzeCovariancePlane(t *testing.T) {
	a, err := AnalyzeCovariance(planarCloud())
	require.NoError(t, err)
	assert.InDelta(t, 1, a.Normal.Norm(), tol)
	assert.InDelta(t, 1, math.Abs(a.Normal.Dot(planarNormal)), 1e-9)
	assert.InDelta(t, 0, a.NormalVariance, 1e-9)
	assert.True(t, a.Eigenvalues[0] <= a.Eigenvalues[1] && a.Eigenvalues[1] <= a.Eigenvalues[2])
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
