package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/fitlab/internal/planefit"
	"github.com/andresmejia3/fitlab/internal/pointcloud"
	"github.com/andresmejia3/fitlab/internal/store"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var covarOpts Options

var covarCmd = &cobra.Command{
	Use:   "covar",
	Short: "Estimate the surface normal of a point cloud from its covariance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCovar(cmd.Context(), covarOpts, cmd.OutOrStdout())
	},
}

func init() {
	covarCmd.Flags().StringArrayVarP(&covarOpts.Inputs, "input", "i", nil, "Point cloud CSV (x,y,z per row), repeatable")
	covarCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(covarCmd)
}

func runCovar(ctx context.Context, opts Options, out io.Writer) error {
	if err := validateInputs(opts.Inputs); err != nil {
		return fail("Invalid input", err, nil)
	}

	for _, input := range opts.Inputs {
		cloud, err := loadCloud(input)
		if err != nil {
			return err
		}
		an, err := planefit.AnalyzeCovariance(cloud.Points())
		if err != nil {
			return fail("Covariance analysis failed for "+input, err, nil)
		}

		fmt.Fprintf(out, "== %s (%d points)\n", input, cloud.Len())
		fmt.Fprintf(out, "Covariance matrix:\n%v\n", mat.Formatted(an.Covariance, mat.Prefix(""), mat.Squeeze()))
		n := an.Normal
		fmt.Fprintf(out, "Surface normal: (%.6f, %.6f, %.6f)\n", n.X, n.Y, n.Z)
		fmt.Fprintf(out, "Normal magnitude: %.6f\n", n.Norm())
		fmt.Fprintf(out, "Variance along normal: %.6g\n", an.NormalVariance)

		runID, err := startRun(ctx, "covar", input)
		if err != nil {
			return err
		}
		if DB != nil {
			// The normal through the mean is the centered (TLS) form of the plane.
			fit := store.PlaneFit{Input: input, Plane: planefit.Plane{Method: planefit.TLS, Coeff: n, Centroid: an.Mean}}
			if err := DB.InsertPlaneFit(ctx, runID, fit); err != nil {
				return fail("Failed to save covariance normal", err, nil)
			}
		}
	}
	return nil
}

// validateInputs checks every input file before any work starts.
func validateInputs(inputs []string) error {
	if len(inputs) == 0 {
		return validateInputFile("")
	}
	for _, in := range inputs {
		if err := validateInputFile(in); err != nil {
			return err
		}
	}
	return nil
}

func loadCloud(path string) (*pointcloud.Cloud, error) {
	cloud, err := pointcloud.Load(path)
	if err != nil {
		return nil, fail("Failed to load point cloud", err, nil)
	}
	fmt.Fprintf(os.Stderr, "📂 Loaded %d points from %s\n", cloud.Len(), path)
	return cloud, nil
}
