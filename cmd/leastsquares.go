package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/andresmejia3/fitlab/internal/planefit"
	"github.com/andresmejia3/fitlab/internal/render"
	"github.com/andresmejia3/fitlab/internal/store"
	"github.com/spf13/cobra"
)

var lsqOpts Options

var leastSquaresCmd = &cobra.Command{
	Use:     "leastsquares",
	Aliases: []string{"lsq"},
	Short:   "Fit planes with standard and total least squares",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLeastSquares(cmd.Context(), lsqOpts, cmd.OutOrStdout())
	},
}

func init() {
	leastSquaresCmd.Flags().StringArrayVarP(&lsqOpts.Inputs, "input", "i", nil, "Point cloud CSV (x,y,z per row), repeatable")
	leastSquaresCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(leastSquaresCmd)
}

func runLeastSquares(ctx context.Context, opts Options, out io.Writer) error {
	if err := validateInputs(opts.Inputs); err != nil {
		return fail("Invalid input", err, nil)
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "INPUT\tMETHOD\tEQUATION")
	fmt.Fprintln(w, "-----\t------\t--------")

	for _, input := range opts.Inputs {
		cloud, err := loadCloud(input)
		if err != nil {
			return err
		}
		runID, err := startRun(ctx, "leastsquares", input)
		if err != nil {
			return err
		}

		for _, method := range []planefit.Method{planefit.SLS, planefit.TLS} {
			plane, err := planefit.Fit(method, cloud.Points())
			if err != nil {
				return fail(fmt.Sprintf("%s fit failed for %s", method, input), err, nil)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", input, method, plane)

			title := fmt.Sprintf("%s fit %s", method, filepath.Base(input))
			if err := render.PlanePlot(cloud, plane, title, plotPath(title)); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Failed to plot %s: %v\n", title, err)
			}

			if DB != nil {
				if err := DB.InsertPlaneFit(ctx, runID, store.PlaneFit{Input: input, Plane: plane}); err != nil {
					return fail("Failed to save plane fit", err, nil)
				}
			}
		}
	}
	w.Flush()
	fmt.Fprintf(os.Stderr, "🖼️  Plots written to %s\n", outDir)
	return nil
}
