// Package pointcloud loads and holds immutable 3-D point clouds.
package pointcloud

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrEmpty is returned when an input contains no points.
var ErrEmpty = errors.New("point cloud is empty")

// Cloud is an ordered sequence of 3-D points. It is never modified after construction.
type Cloud struct {
	pts []r3.Vector
}

// New builds a cloud from a copy of pts.
func New(pts []r3.Vector) *Cloud {
	c := &Cloud{pts: make([]r3.Vector, len(pts))}
	copy(c.pts, pts)
	return c
}

// Load reads a comma-delimited N×3 file (x,y,z per row).
func Load(path string) (*Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Read parses comma-delimited x,y,z rows from r.
func Read(r io.Reader) (*Cloud, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var pts []r3.Vector
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		var xyz [3]float64
		for i, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			xyz[i] = v
		}
		pts = append(pts, r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}

	if len(pts) == 0 {
		return nil, ErrEmpty
	}
	return &Cloud{pts: pts}, nil
}

// Len returns the number of points.
func (c *Cloud) Len() int { return len(c.pts) }

// At returns the i-th point.
func (c *Cloud) At(i int) r3.Vector { return c.pts[i] }

// Points returns a copy of the points.
func (c *Cloud) Points() []r3.Vector {
	out := make([]r3.Vector, len(c.pts))
	copy(out, c.pts)
	return out
}

// Subset returns a new cloud with the points at the given indices, in that order.
func (c *Cloud) Subset(indices []int) *Cloud {
	out := &Cloud{pts: make([]r3.Vector, len(indices))}
	for i, idx := range indices {
		out.pts[i] = c.pts[idx]
	}
	return out
}

// Centroid returns the per-axis mean of the cloud.
func (c *Cloud) Centroid() r3.Vector {
	return Centroid(c.pts)
}

// Matrix returns the cloud as an N×3 matrix, one point per row.
func (c *Cloud) Matrix() *mat.Dense {
	return Matrix(c.pts)
}

// Centroid returns the per-axis mean of pts.
func Centroid(pts []r3.Vector) r3.Vector {
	xs, ys, zs := Columns(pts)
	return r3.Vector{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Z: stat.Mean(zs, nil)}
}

// Columns splits pts into x, y and z slices.
func Columns(pts []r3.Vector) (xs, ys, zs []float64) {
	xs = make([]float64, len(pts))
	ys = make([]float64, len(pts))
	zs = make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	return xs, ys, zs
}

// Matrix packs pts into an N×3 matrix.
func Matrix(pts []r3.Vector) *mat.Dense {
	m := mat.NewDense(len(pts), 3, nil)
	for i, p := range pts {
		m.SetRow(i, []float64{p.X, p.Y, p.Z})
	}
	return m
}
