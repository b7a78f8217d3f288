package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	resetDB    bool
	resetFiles bool
	resetYes   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (Database, Plots)",
	Long:  "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReset(cmd, resetDB, resetFiles)
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "database", false, "Clear PostgreSQL database (connect with --db or POSTGRES_HOST)")
	resetCmd.Flags().BoolVar(&resetFiles, "files", false, "Clear generated plots in the --out directory")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, db, files bool) error {
	// If no flags are set, default to clearing EVERYTHING
	if !db && !files {
		db, files = true, true
	}

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	if db {
		switch {
		case DB == nil:
			fmt.Fprintf(os.Stderr, "⚠️  Skipping database: %v\n", errNoDB)
		case confirm(reader, out, "⚠️  Are you sure you want to DROP all database tables?"):
			fmt.Fprintln(out, "🗑️  Clearing Database...")
			if err := DB.Reset(cmd.Context()); err != nil {
				return fail("Failed to reset database", err, nil)
			}
		}
	}

	if files {
		if confirm(reader, out, fmt.Sprintf("⚠️  Are you sure you want to delete all plots in %s?", outDir)) {
			fmt.Fprintln(out, "🗑️  Clearing Output Files (Plots)...")
			removePlots(outDir)
		}
	}

	fmt.Fprintln(out, "✨ System Reset Complete.")
	return nil
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	if resetYes {
		return true
	}
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

// removePlots deletes the PNG files in dir and then dir itself if nothing else is left.
func removePlots(dir string) {
	plots, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to list plots in %s: %v\n", dir, err)
		return
	}
	for _, p := range plots {
		if err := os.Remove(p); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", p, err)
		}
	}
	// Fails harmlessly when dir holds other files.
	os.Remove(dir)
}
