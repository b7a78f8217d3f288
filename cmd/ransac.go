package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/fitlab/internal/planefit"
	"github.com/andresmejia3/fitlab/internal/render"
	"github.com/andresmejia3/fitlab/internal/store"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var ransacOpts Options

var ransacCmd = &cobra.Command{
	Use:   "ransac",
	Short: "Fit planes robustly with RANSAC",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("seed") {
			ransacOpts.Seed = time.Now().UnixNano()
		}
		return runRANSAC(cmd.Context(), ransacOpts, cmd.OutOrStdout())
	},
}

func init() {
	ransacCmd.Flags().StringArrayVarP(&ransacOpts.Inputs, "input", "i", nil, "Point cloud CSV (x,y,z per row), repeatable")
	ransacCmd.Flags().StringVarP(&ransacOpts.Method, "method", "m", "both", "Plane model per sample: SLS, TLS or both")
	ransacCmd.Flags().Float64VarP(&ransacOpts.Threshold, "threshold", "t", planefit.DefaultThreshold, "Inlier distance threshold")
	ransacCmd.Flags().IntVarP(&ransacOpts.Iterations, "iterations", "n", planefit.DefaultIterations, "Number of sampled hypotheses")
	ransacCmd.Flags().Int64Var(&ransacOpts.Seed, "seed", 0, "Random seed (default: current time)")

	ransacCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(ransacCmd)
}

func runRANSAC(ctx context.Context, opts Options, out io.Writer) error {
	methods, err := validateRANSACFlags(&opts)
	if err != nil {
		return fail("Invalid RANSAC flags", err, nil)
	}
	fmt.Fprintf(os.Stderr, "🎲 Seed %d, %d iterations, threshold %g\n", opts.Seed, opts.Iterations, opts.Threshold)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "INPUT\tMETHOD\tINLIERS\tTRIAL\tEQUATION")
	fmt.Fprintln(w, "-----\t------\t-------\t-----\t--------")

	for _, input := range opts.Inputs {
		cloud, err := loadCloud(input)
		if err != nil {
			return err
		}
		runID, err := startRun(ctx, "ransac", input)
		if err != nil {
			return err
		}

		for _, method := range methods {
			if err := ctx.Err(); err != nil {
				return fail("Interrupted", err, nil)
			}

			bar := progressbar.NewOptions(opts.Iterations,
				progressbar.OptionSetDescription(fmt.Sprintf("🎲 RANSAC %s", method)),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
			)
			res, err := planefit.RANSAC(cloud.Points(), planefit.Options{
				Method:     method,
				Threshold:  opts.Threshold,
				Iterations: opts.Iterations,
				// Each method sees the same samples for a given seed.
				Rand:    rand.New(rand.NewSource(opts.Seed)),
				Observe: func(int, planefit.Hypothesis) { bar.Add(1) },
			})
			bar.Finish()
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fail(fmt.Sprintf("RANSAC %s failed for %s", method, input), err, nil)
			}
			if res.Degenerate > 0 {
				fmt.Fprintf(os.Stderr, "⚠️  %d of %d samples were degenerate\n", res.Degenerate, res.Iterations)
			}

			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\n", input, method, res.Inliers, cloud.Len(), res.Trial, res.Plane)

			title := fmt.Sprintf("RANSAC %s fit %s", method, filepath.Base(input))
			if err := render.PlanePlot(cloud, res.Plane, title, plotPath(title)); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Failed to plot %s: %v\n", title, err)
			}

			if DB != nil {
				fit := store.PlaneFit{Input: input, Plane: res.Plane, Inliers: res.Inliers, Threshold: opts.Threshold}
				if err := DB.InsertPlaneFit(ctx, runID, fit); err != nil {
					return fail("Failed to save plane fit", err, nil)
				}
			}
		}
	}
	w.Flush()
	return nil
}

// validateRANSACFlags checks the flags and resolves the methods to run.
func validateRANSACFlags(opts *Options) ([]planefit.Method, error) {
	if err := validateInputs(opts.Inputs); err != nil {
		return nil, err
	}
	if opts.Threshold <= 0 {
		return nil, fmt.Errorf("threshold must be > 0, got %g", opts.Threshold)
	}
	if opts.Iterations < 1 {
		return nil, fmt.Errorf("iterations must be >= 1, got %d", opts.Iterations)
	}
	if opts.Method == "both" {
		return []planefit.Method{planefit.SLS, planefit.TLS}, nil
	}
	m, err := planefit.ParseMethod(opts.Method)
	if err != nil {
		return nil, err
	}
	return []planefit.Method{m}, nil
}
