package planefit

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/golang/geo/r3"
)

// ErrNoConsensus is returned when every RANSAC trial drew a degenerate sample.
var ErrNoConsensus = errors.New("no non-degenerate hypothesis found")

const (
	// DefaultThreshold is the inlier distance used when none is given.
	DefaultThreshold = 0.1
	// DefaultIterations is the number of hypotheses sampled when none is given.
	DefaultIterations = 1000
	// sampleSize is the minimal sample for a plane.
	sampleSize = 3
)

// Hypothesis is one RANSAC trial.
type Hypothesis struct {
	Plane      Plane
	Inliers    int
	Degenerate bool
}

// Options configures RANSAC.
type Options struct {
	Method     Method
	Threshold  float64
	Iterations int
	// Rand is the sampling source. A fixed seed is used when nil.
	Rand *rand.Rand
	// Observe, if set, is called after every trial.
	Observe func(trial int, h Hypothesis)
}

// Result is the best hypothesis of a RANSAC run.
type Result struct {
	Plane      Plane
	Inliers    int
	Trial      int // trial that produced Plane
	Iterations int
	Degenerate int // trials whose sample did not determine a plane
}

// RANSAC samples opt.Iterations minimal subsets of pts, fits an exact plane
// through each one and keeps the plane with the most inliers. The best
// hypothesis only changes on a strictly higher count, so ties go to the
// earliest trial. There is no early termination.
func RANSAC(pts []r3.Vector, opt Options) (*Result, error) {
	if _, err := ParseMethod(string(opt.Method)); err != nil {
		return nil, err
	}
	if len(pts) < sampleSize {
		return nil, fmt.Errorf("ransac on %d points: %w", len(pts), ErrTooFewPoints)
	}
	if opt.Threshold <= 0 {
		opt.Threshold = DefaultThreshold
	}
	if opt.Iterations <= 0 {
		opt.Iterations = DefaultIterations
	}
	r := opt.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}

	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}
	sample := make([]r3.Vector, sampleSize)

	res := &Result{Iterations: opt.Iterations, Inliers: -1}
	for trial := 0; trial < opt.Iterations; trial++ {
		// Partial Fisher-Yates: the first sampleSize entries are distinct indices.
		for j := 0; j < sampleSize; j++ {
			k := j + r.Intn(len(idx)-j)
			idx[j], idx[k] = idx[k], idx[j]
			sample[j] = pts[idx[j]]
		}

		var h Hypothesis
		plane, err := Fit(opt.Method, sample)
		if err != nil {
			if !errors.Is(err, ErrDegenerate) {
				return nil, err
			}
			h.Degenerate = true
			res.Degenerate++
		} else {
			h.Plane = plane
			h.Inliers = CountInliers(plane, pts, opt.Threshold)
		}

		if opt.Observe != nil {
			opt.Observe(trial, h)
		}
		if !h.Degenerate && h.Inliers > res.Inliers {
			res.Plane = h.Plane
			res.Inliers = h.Inliers
			res.Trial = trial
		}
	}

	if res.Inliers < 0 {
		return nil, ErrNoConsensus
	}
	return res, nil
}
