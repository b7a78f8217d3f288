// Package planefit fits planes to 3-D point clouds with standard least squares,
// total least squares and RANSAC.
package planefit

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

var (
	// ErrInvalidMethod is returned for a method name other than SLS or TLS.
	ErrInvalidMethod = errors.New("invalid method: use 'SLS' for standard least squares or 'TLS' for total least squares (case sensitive)")
	// ErrDegenerate is returned when the points do not determine a plane.
	ErrDegenerate = errors.New("degenerate point configuration")
	// ErrTooFewPoints is returned when fewer than 3 points are given.
	ErrTooFewPoints = errors.New("at least 3 points are required")
)

// Method selects the least squares formulation.
type Method string

const (
	// SLS is standard least squares, plane Ax + By + Cz = 1.
	SLS Method = "SLS"
	// TLS is total least squares, plane A(x-x̄) + B(y-ȳ) + C(z-z̄) = 0.
	TLS Method = "TLS"
)

// ParseMethod accepts exactly "SLS" or "TLS".
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case SLS, TLS:
		return Method(s), nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidMethod)
}

// Plane is a plane hypothesis. For TLS planes Coeff is only meaningful
// together with Centroid.
type Plane struct {
	Method   Method
	Coeff    r3.Vector
	Centroid r3.Vector
}

// Normal returns the unit normal of the plane.
func (p Plane) Normal() r3.Vector {
	return p.Coeff.Normalize()
}

// Distance returns the perpendicular distance from pt to the plane.
func (p Plane) Distance(pt r3.Vector) float64 {
	norm := p.Coeff.Norm()
	if p.Method == TLS {
		return math.Abs(p.Coeff.Dot(pt.Sub(p.Centroid))) / norm
	}
	return math.Abs(p.Coeff.Dot(pt)-1) / norm
}

// Z returns the height of the plane above (x, y).
func (p Plane) Z(x, y float64) float64 {
	c := p.Coeff
	if p.Method == TLS {
		m := p.Centroid
		return (-c.X*(x-m.X)-c.Y*(y-m.Y))/c.Z + m.Z
	}
	return (1 - c.X*x - c.Y*y) / c.Z
}

func (p Plane) String() string {
	c := p.Coeff
	if p.Method == TLS {
		m := p.Centroid
		return fmt.Sprintf("%.6f(x - %.6f) + %.6f(y - %.6f) + %.6f(z - %.6f) = 0", c.X, m.X, c.Y, m.Y, c.Z, m.Z)
	}
	return fmt.Sprintf("%.6fx + %.6fy + %.6fz = 1", c.X, c.Y, c.Z)
}

// EvalSLS counts the points within thresh of the plane coeff·p = 1.
func EvalSLS(coeff r3.Vector, pts []r3.Vector, thresh float64) int {
	return CountInliers(Plane{Method: SLS, Coeff: coeff}, pts, thresh)
}

// EvalTLS counts the points within thresh of the plane coeff·(p - means) = 0.
func EvalTLS(coeff, means r3.Vector, pts []r3.Vector, thresh float64) int {
	return CountInliers(Plane{Method: TLS, Coeff: coeff, Centroid: means}, pts, thresh)
}

// CountInliers returns how many points lie at distance <= thresh from the plane.
func CountInliers(p Plane, pts []r3.Vector, thresh float64) int {
	n := 0
	for _, pt := range pts {
		if p.Distance(pt) <= thresh {
			n++
		}
	}
	return n
}
