// Package render draws fit results to PNG files with gonum/plot.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/fitlab/internal/parabola"
	"github.com/andresmejia3/fitlab/internal/planefit"
	"github.com/andresmejia3/fitlab/internal/pointcloud"
	"github.com/andresmejia3/fitlab/internal/types"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	width  = 8 * vg.Inch
	height = 6 * vg.Inch

	// The plane surface is drawn over the same grid the analysis scripts used.
	gridMin   = -10.0
	gridMax   = 10.0
	gridSteps = 50
)

// ErrVerticalPlane is returned for planes with no finite height over the XY grid.
var ErrVerticalPlane = errors.New("plane is vertical, cannot draw its height map")

var (
	red  = color.RGBA{R: 220, A: 255}
	blue = color.RGBA{B: 220, A: 255}
)

// planeGrid samples the plane height on a regular grid for the heat map.
type planeGrid struct {
	plane planefit.Plane
}

func (g planeGrid) Dims() (c, r int)   { return gridSteps, gridSteps }
func (g planeGrid) X(c int) float64    { return g.at(c) }
func (g planeGrid) Y(r int) float64    { return g.at(r) }
func (g planeGrid) Z(c, r int) float64 { return g.plane.Z(g.X(c), g.Y(r)) }

func (planeGrid) at(i int) float64 {
	return gridMin + float64(i)*(gridMax-gridMin)/float64(gridSteps-1)
}

// PlanePlot draws the fitted plane as a height map with the cloud's points on top.
func PlanePlot(cloud *pointcloud.Cloud, plane planefit.Plane, title, path string) error {
	if plane.Coeff.Z == 0 {
		return ErrVerticalPlane
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X coordinates"
	p.Y.Label.Text = "Y coordinates"

	p.Add(plotter.NewHeatMap(planeGrid{plane: plane}, palette.Heat(16, 0.6)))

	xys := make(plotter.XYs, cloud.Len())
	for i := range xys {
		pt := cloud.At(i)
		xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = red
	sc.GlyphStyle.Radius = vg.Points(0.8)
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(sc)
	p.Legend.Add("point cloud", sc)
	p.Legend.Top = true

	return save(p, path)
}

// TrajectoryPlot draws the tracked positions over the first frame.
func TrajectoryPlot(first *image.RGBA, track []types.Position, title, path string) error {
	p, h := framePlot(first, title)
	sc, err := trackScatter(track, h, red)
	if err != nil {
		return err
	}
	p.Add(sc)
	return save(p, path)
}

// ParabolaPlot draws the tracked positions and the fitted curve over the first frame.
func ParabolaPlot(first *image.RGBA, track []types.Position, curve parabola.Curve, path string) error {
	p, h := framePlot(first, "Estimated ball trajectory vs fit parabola")

	fitted := make([]types.Position, len(track))
	for i, pos := range track {
		fitted[i] = types.Position{Frame: pos.Frame, X: pos.X, Y: curve.Eval(pos.X)}
	}
	fit, err := trackScatter(fitted, h, blue)
	if err != nil {
		return err
	}
	data, err := trackScatter(track, h, red)
	if err != nil {
		return err
	}
	p.Add(fit, data)
	p.Legend.Add("Fitted parabola", fit)
	p.Legend.Add("Tracked data", data)
	p.Legend.Top = true
	p.Legend.Left = true
	return save(p, path)
}

// framePlot sets up a plot in pixel coordinates with the frame as background.
// Rows are flipped so the picture reads top-down; it returns the frame height
// used for the flip.
func framePlot(first *image.RGBA, title string) (*plot.Plot, float64) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X coordinates"
	p.Y.Label.Text = "Y coordinates (flipped)"

	var h float64
	if first != nil {
		b := first.Bounds()
		h = float64(b.Dy())
		p.Add(plotter.NewImage(first, 0, 0, float64(b.Dx()), h))
		p.X.Min, p.X.Max = 0, float64(b.Dx())
		p.Y.Min, p.Y.Max = 0, h
	}
	return p, h
}

func trackScatter(track []types.Position, h float64, c color.Color) (*plotter.Scatter, error) {
	xys := make(plotter.XYs, len(track))
	for i, pos := range track {
		xys[i] = plotter.XY{X: pos.X, Y: h - pos.Y}
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Color = c
	sc.GlyphStyle.Radius = vg.Points(1.5)
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	return sc, nil
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	return p.Save(width, height, path)
}

// SaveFrame writes a single frame as PNG.
func SaveFrame(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Slug turns a plot title into a file name stem.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
