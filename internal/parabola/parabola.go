// Package parabola fits y = Ax² + Bx + C to a tracked trajectory and predicts
// where it crosses a target row.
package parabola

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/andresmejia3/fitlab/internal/types"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDegenerate is returned when the points do not determine a parabola.
	ErrDegenerate = errors.New("parabola: need at least 3 distinct x values")
	// ErrNoLanding is returned when the curve never reaches the target row.
	ErrNoLanding = errors.New("parabola: curve does not reach the landing row")
)

// DefaultLandingOffset is how far below the first tracked row the landing row lies, in pixels.
const DefaultLandingOffset = 300.0

// Curve is y = A x² + B x + C.
type Curve struct {
	A, B, C float64
}

// Eval returns the curve height at x.
func (c Curve) Eval(x float64) float64 {
	return c.A*x*x + c.B*x + c.C
}

// Solve returns the real x values, ascending, where the curve equals y.
func (c Curve) Solve(y float64) []float64 {
	a, b, cc := c.A, c.B, c.C-y
	if a == 0 {
		if b == 0 {
			return nil
		}
		return []float64{-cc / b}
	}
	disc := b*b - 4*a*cc
	if disc < 0 {
		return nil
	}
	sq := math.Sqrt(disc)
	roots := []float64{(-b + sq) / (2 * a), (-b - sq) / (2 * a)}
	if disc == 0 {
		return roots[:1]
	}
	sort.Float64s(roots)
	return roots
}

func (c Curve) String() string {
	return fmt.Sprintf("y = %g x^2 + %g x + %g", c.A, c.B, c.C)
}

// Fit solves the ordinary least squares problem with design rows [x², x, 1].
func Fit(track []types.Position) (Curve, error) {
	distinct := make(map[float64]struct{})
	for _, p := range track {
		distinct[p.X] = struct{}{}
	}
	if len(distinct) < 3 {
		return Curve{}, fmt.Errorf("%w (got %d)", ErrDegenerate, len(distinct))
	}

	n := len(track)
	a := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i, p := range track {
		a.SetRow(i, []float64{p.X * p.X, p.X, 1})
		y.SetVec(i, p.Y)
	}

	// Tall systems are solved in the least squares sense via QR.
	var sol mat.VecDense
	if err := sol.SolveVec(a, y); err != nil {
		return Curve{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	return Curve{A: sol.AtVec(0), B: sol.AtVec(1), C: sol.AtVec(2)}, nil
}

// Prediction is where the curve meets the landing row.
type Prediction struct {
	Y     float64 // landing row
	X     float64 // chosen crossing
	Roots []float64
}

// Landing finds where curve crosses the row offset pixels below the first
// tracked point. With two crossings it picks the one in the direction of
// travel: the larger root when the track moves toward +x, the smaller otherwise.
func Landing(curve Curve, track []types.Position, offset float64) (Prediction, error) {
	if len(track) == 0 {
		return Prediction{}, fmt.Errorf("landing: empty trajectory")
	}
	target := track[0].Y + offset
	roots := curve.Solve(target)
	if len(roots) == 0 {
		return Prediction{Y: target}, fmt.Errorf("%w (y = %g)", ErrNoLanding, target)
	}

	x := roots[0]
	if len(roots) == 2 && track[len(track)-1].X >= track[0].X {
		x = roots[1]
	}
	return Prediction{Y: target, X: x, Roots: roots}, nil
}
