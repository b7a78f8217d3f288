package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andresmejia3/fitlab/internal/parabola"
	"github.com/andresmejia3/fitlab/internal/render"
	"github.com/spf13/cobra"
)

var parabolaOpts Options

var parabolaCmd = &cobra.Command{
	Use:   "parabola",
	Short: "Fit a parabola to a tracked ball and predict where it lands",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runParabola(cmd.Context(), parabolaOpts, cmd.OutOrStdout())
	},
}

func init() {
	addTrackFlags(parabolaCmd, &parabolaOpts)
	parabolaCmd.Flags().Float64Var(&parabolaOpts.LandingOffset, "landing-offset", parabola.DefaultLandingOffset, "Landing height in pixels below the first tracked position")
	rootCmd.AddCommand(parabolaCmd)
}

func runParabola(ctx context.Context, opts Options, out io.Writer) error {
	if err := validateTrackFlags(&opts); err != nil {
		return fail("Invalid parabola flags", err, nil)
	}
	input := opts.Inputs[0]

	res, err := trackVideo(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Tracked %d positions over %d frames\n", res.Matched, res.Frames)

	curve, err := parabola.Fit(res.Trajectory)
	if err != nil {
		return fail("Parabola fit failed", err, nil)
	}
	reportParabola(out, curve)

	path := plotPath("Parabola fit " + filepath.Base(input))
	if err := render.ParabolaPlot(res.First, res.Trajectory, curve, path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to plot parabola: %v\n", err)
	}

	var landing *parabola.Prediction
	pred, err := parabola.Landing(curve, res.Trajectory, opts.LandingOffset)
	switch {
	case err == nil:
		landing = &pred
		fmt.Fprintf(out, "Predicted landing pixel: (%.2f, %.2f)\n", pred.X, pred.Y)
	case errors.Is(err, parabola.ErrNoLanding):
		fmt.Fprintf(os.Stderr, "⚠️  No landing point: %v\n", err)
	default:
		return fail("Landing prediction failed", err, nil)
	}

	runID, err := saveTrack(ctx, "parabola", input, res)
	if err != nil || DB == nil {
		return err
	}
	if err := DB.InsertParabolaFit(ctx, runID, curve, landing); err != nil {
		return fail("Failed to save parabola fit", err, nil)
	}
	return nil
}

func reportParabola(out io.Writer, c parabola.Curve) {
	fmt.Fprintf(out, "A = %.6g\n", c.A)
	fmt.Fprintf(out, "B = %.6g\n", c.B)
	fmt.Fprintf(out, "C = %.6g\n", c.C)
	fmt.Fprintf(out, "Equation: %s\n", c)
}
