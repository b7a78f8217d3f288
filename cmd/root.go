package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/andresmejia3/fitlab/internal/render"
	"github.com/andresmejia3/fitlab/internal/store"
	"github.com/andresmejia3/fitlab/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Options holds shared configuration for the fitting and tracking commands
type Options struct {
	Inputs        []string
	Method        string
	Threshold     float64
	Iterations    int
	Seed          int64
	NumEngines    int
	DebugFrames   string
	LandingOffset float64
	MinRed        uint8
	MaxGreen      uint8
	MaxBlue       uint8
}

var (
	// DB is the optional database connection shared by subcommands
	DB *store.Store
	// dbURL is the connection string
	dbURL string
	// outDir is where plots are written
	outDir string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "fitlab",
	Short:   "Plane fitting, ball tracking and trajectory fitting toolkit",
	Version: Version,
	// Failures are reported by the commands themselves.
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dbURL == "" {
			dbURL = dbURLFromEnv()
		}
		// Persistence is optional: without a connection string results are only printed and plotted.
		if dbURL == "" {
			return nil
		}

		var err error
		DB, err = store.New(cmd.Context(), dbURL)
		if err != nil {
			return fail("Failed to connect to database", err, nil)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// The main context might be cancelled already (Ctrl+C) and we still need to close.
			DB.Close(context.Background())
		}
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var r reportedError
		if !errors.As(err, &r) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: built from POSTGRES_* env vars, persistence disabled if unset)")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "plots", "Directory for generated plots")
}

// dbURLFromEnv builds the connection string from POSTGRES_* variables.
// It returns "" when POSTGRES_HOST is unset.
func dbURLFromEnv() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	name := os.Getenv("POSTGRES_DB")
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	if name == "" {
		name = "fitlab"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

// reportedError marks an error whose box was already printed.
type reportedError struct{ error }

func (r reportedError) Unwrap() error { return r.error }

// fail prints the error box and returns the error for cobra.
func fail(context string, err error, s *utils.SafeCommand) error {
	if err == nil {
		err = errors.New(context)
	}
	utils.ShowError(context, err, s)
	return reportedError{fmt.Errorf("%s: %w", context, err)}
}

// startRun registers a run when a database is configured. The zero UUID
// means results are not persisted.
func startRun(ctx context.Context, command, input string) (uuid.UUID, error) {
	if DB == nil {
		return uuid.Nil, nil
	}
	id, err := DB.CreateRun(ctx, command, input)
	if err != nil {
		return uuid.Nil, fail("Failed to record run", err, nil)
	}
	fmt.Fprintf(os.Stderr, "🗃️  Recording run %s\n", id.String()[:8])
	return id, nil
}

// plotPath returns the output file for a plot title.
func plotPath(title string) string {
	return filepath.Join(outDir, render.Slug(title)+".png")
}

// validateInputFile checks that path names a readable regular file.
func validateInputFile(path string) error {
	if path == "" {
		return errors.New("no input file given (use --input)")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %w", err)
		}
		return fmt.Errorf("unable to access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path %s is a directory, expected a file", path)
	}
	return nil
}
