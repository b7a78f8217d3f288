package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs stored in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd.Context(), listLimit, cmd.OutOrStdout())
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(listCmd)
}

var errNoDB = errors.New("no database configured (use --db or POSTGRES_HOST)")

func runList(ctx context.Context, limit int, out io.Writer) error {
	if DB == nil {
		return fail("Cannot list runs", errNoDB, nil)
	}
	if limit < 1 {
		return fail("Invalid limit", fmt.Errorf("must be >= 1, got %d", limit), nil)
	}
	runs, err := DB.ListRuns(ctx, limit)
	if err != nil {
		return fail("Failed to list runs", err, nil)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found in database.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMMAND\tINPUT\tPLANES\tPOINTS\tCREATED")
	fmt.Fprintln(w, "--\t-------\t-----\t------\t------\t-------")

	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", r.ID.String()[:8], r.Command, r.Input, r.Planes, r.Points, r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
