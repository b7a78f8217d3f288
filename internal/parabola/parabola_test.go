package parabola

import (
	"math"
	"testing"

	"github.com/andresmejia3/fitlab/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(c Curve, xs []float64) []types.Position {
	track := make([]types.Position, len(xs))
	for i, x := range xs {
		track[i] = types.Position{Frame: i, X: x, Y: c.Eval(x)}
	}
	return track
}

func TestFitExact(t *testing.T) {
	tests := []struct {
		name string
		gen  Curve
	}{
		{"Opening down", Curve{A: 0.002, B: -1.5, C: 700}},
		{"Opening up", Curve{A: -0.01, B: 3, C: 12}},
		{"Line", Curve{A: 0, B: 0.5, C: 1}},
	}
	var xs []float64
	for x := 10.0; x < 600; x += 13 {
		xs = append(xs, x)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fit(sample(tt.gen, xs))
			require.NoError(t, err)
			assert.InDelta(t, tt.gen.A, got.A, 1e-9)
			assert.InDelta(t, tt.gen.B, got.B, 1e-6)
			assert.InDelta(t, tt.gen.C, got.C, 1e-3)
		})
	}
}

func TestFitDegenerate(t *testing.T) {
	track := []types.Position{{X: 1, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 3}, {X: 2, Y: 3}}
	_, err := Fit(track)
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = Fit(nil)
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestSolve(t *testing.T) {
	c := Curve{A: 1, B: 0, C: 0}
	assert.Equal(t, []float64{-2, 2}, c.Solve(4))
	assert.Equal(t, []float64{0}, c.Solve(0))
	assert.Nil(t, c.Solve(-1))

	line := Curve{B: 2, C: 1}
	assert.Equal(t, []float64{1.5}, line.Solve(4))
	assert.Nil(t, Curve{C: 3}.Solve(4))
}

func TestLanding(t *testing.T) {
	// Image rows grow downward, so a thrown ball follows a curve with A > 0.
	c := Curve{A: 0.01, B: -4, C: 500} // apex at x = 200, y = 100
	right := sample(c, []float64{50, 100, 150, 200, 250})
	left := sample(c, []float64{250, 200, 150, 100, 50})

	p, err := Landing(c, right, 300)
	require.NoError(t, err)
	assert.InDelta(t, right[0].Y+300, p.Y, 1e-12)
	require.Len(t, p.Roots, 2)
	assert.Equal(t, p.Roots[1], p.X, "moving right picks the larger root")
	assert.InDelta(t, p.Y, c.Eval(p.X), 1e-6)

	p, err = Landing(c, left, 300)
	require.NoError(t, err)
	assert.Equal(t, p.Roots[0], p.X, "moving left picks the smaller root")
	assert.InDelta(t, p.Y, c.Eval(p.X), 1e-6)
}

func TestLandingMatchesPositiveRoot(t *testing.T) {
	// For A > 0 and a rightward throw the pick equals (-B + sqrt(B²-4A(C-y)))/2A.
	c := Curve{A: 0.003, B: -2.1, C: 650}
	track := sample(c, []float64{20, 200, 400})
	p, err := Landing(c, track, DefaultLandingOffset)
	require.NoError(t, err)

	y := track[0].Y + DefaultLandingOffset
	disc := c.B*c.B - 4*c.A*(c.C-y)
	want := (-c.B + math.Sqrt(disc)) / (2 * c.A)
	assert.InDelta(t, want, p.X, 1e-9)
}

func TestLandingUnreachable(t *testing.T) {
	// Opening downward in image space: the curve never gets 300 px below the start.
	c := Curve{A: -0.01, B: 0, C: 0}
	track := sample(c, []float64{-10, 0, 10})
	_, err := Landing(c, track, 300)
	assert.ErrorIs(t, err, ErrNoLanding)

	_, err = Landing(c, nil, 300)
	assert.Error(t, err)
}

func TestLandingLinear(t *testing.T) {
	// A = 0 is a line with a single crossing, returned directly.
	c := Curve{B: 2, C: 10}
	track := []types.Position{{Frame: 0, X: 0, Y: 10}, {Frame: 1, X: 5, Y: 20}}
	p, err := Landing(c, track, 30)
	require.NoError(t, err)
	assert.Equal(t, 40.0, p.Y)
	assert.Equal(t, 15.0, p.X)
	assert.Equal(t, []float64{15}, p.Roots)

	_, err = Landing(Curve{C: 10}, track, 30)
	assert.ErrorIs(t, err, ErrNoLanding, "a flat line never reaches the target")
	assert.NotErrorIs(t, err, ErrDegenerate)
}
