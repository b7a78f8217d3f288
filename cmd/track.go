package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andresmejia3/fitlab/internal/render"
	"github.com/andresmejia3/fitlab/internal/store"
	"github.com/andresmejia3/fitlab/internal/tracker"
	"github.com/andresmejia3/fitlab/internal/types"
	"github.com/andresmejia3/fitlab/internal/utils"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var trackOpts Options

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Track a red ball through a video",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrack(cmd.Context(), trackOpts, cmd.OutOrStdout())
	},
}

func init() {
	addTrackFlags(trackCmd, &trackOpts)
	rootCmd.AddCommand(trackCmd)
}

// addTrackFlags registers the flags shared by track and parabola.
func addTrackFlags(c *cobra.Command, opts *Options) {
	c.Flags().StringArrayVarP(&opts.Inputs, "input", "i", nil, "Path to video")
	c.Flags().IntVarP(&opts.NumEngines, "engines", "e", 1, "Number of parallel threshold workers")
	c.Flags().StringVarP(&opts.DebugFrames, "debug-frames", "d", "", "Save masked frames with a detection to this directory")
	c.Flags().Uint8Var(&opts.MinRed, "min-red", tracker.DefaultRule.MinRed, "Pixels need red above this value")
	c.Flags().Uint8Var(&opts.MaxGreen, "max-green", tracker.DefaultRule.MaxGreen, "Pixels need green below this value")
	c.Flags().Uint8Var(&opts.MaxBlue, "max-blue", tracker.DefaultRule.MaxBlue, "Pixels need blue below this value")
	c.MarkFlagRequired("input")
}

func runTrack(ctx context.Context, opts Options, out io.Writer) error {
	if err := validateTrackFlags(&opts); err != nil {
		return fail("Invalid track flags", err, nil)
	}
	input := opts.Inputs[0]

	res, err := trackVideo(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Tracked %d positions over %d frames\n", res.Matched, res.Frames)

	title := "Ball trajectory " + filepath.Base(input)
	if err := render.TrajectoryPlot(res.First, res.Trajectory, title, plotPath(title)); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to plot %s: %v\n", title, err)
	}

	_, err = saveTrack(ctx, "track", input, res)
	return err
}

// validateTrackFlags checks the video input and normalizes the engine count.
func validateTrackFlags(opts *Options) error {
	if len(opts.Inputs) != 1 {
		return fmt.Errorf("expected exactly one --input video, got %d", len(opts.Inputs))
	}
	if err := validateInputFile(opts.Inputs[0]); err != nil {
		return err
	}
	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}
	if opts.DebugFrames != "" {
		if err := os.MkdirAll(opts.DebugFrames, 0755); err != nil {
			return fmt.Errorf("failed to create debug frame dir: %w", err)
		}
	}
	return nil
}

func (o Options) colorRule() tracker.ColorRule {
	return tracker.ColorRule{MinRed: o.MinRed, MaxGreen: o.MaxGreen, MaxBlue: o.MaxBlue}
}

// trackVideo decodes the input through ffmpeg and runs the tracker over it.
func trackVideo(ctx context.Context, opts Options) (*tracker.Result, error) {
	input := opts.Inputs[0]
	src, err := tracker.OpenVideo(ctx, input)
	if err != nil {
		return nil, fail("Failed to open video", err, nil)
	}
	fmt.Fprintf(os.Stderr, "📼 Decoding %s (%dx%d)\n", input, src.Width, src.Height)
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d threshold workers...\n", opts.NumEngines)

	total := utils.GetTotalFrames(ctx, input)
	if total <= 0 {
		total = -1
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("🔴 Tracking"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	topts := tracker.Options{
		Rule:     opts.colorRule(),
		Engines:  opts.NumEngines,
		Progress: func(types.Detection) { bar.Add(1) },
	}
	if opts.DebugFrames != "" {
		topts.Mask = true
		topts.Inspect = func(task types.FrameTask, det types.Detection) {
			if !det.Found {
				return
			}
			path := filepath.Join(opts.DebugFrames, fmt.Sprintf("frame_%05d.png", task.Index))
			if err := render.SaveFrame(task.Frame, path); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Failed to save debug frame %d: %v\n", task.Index, err)
			}
		}
	}

	res, trackErr := tracker.Track(ctx, src, topts)
	closeErr := src.Close()
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if trackErr != nil {
		if errors.Is(trackErr, context.Canceled) {
			return nil, fail("Tracking interrupted", trackErr, nil)
		}
		return nil, fail("Tracking failed", trackErr, src.Decoder())
	}
	if closeErr != nil {
		return nil, fail("FFmpeg exited with an error", closeErr, src.Decoder())
	}
	return res, nil
}

// saveTrack persists the run, its video and the trajectory when a database is configured.
func saveTrack(ctx context.Context, command, input string, res *tracker.Result) (uuid.UUID, error) {
	runID, err := startRun(ctx, command, input)
	if err != nil || DB == nil {
		return runID, err
	}

	videoID, err := utils.GenerateVideoID(input)
	if err != nil {
		return runID, fail("Failed to generate video ID", err, nil)
	}
	fps, err := utils.GetVideoFPS(ctx, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Could not determine FPS: %v\n", err)
	}
	video := store.Video{ID: videoID, Path: input, Width: res.Width, Height: res.Height, FPS: fps, Frames: res.Frames}
	if err := DB.EnsureVideoMetadata(ctx, runID, video); err != nil {
		return runID, fail("Failed to register video metadata", err, nil)
	}
	if _, err := DB.InsertTrajectory(ctx, runID, res.Trajectory); err != nil {
		return runID, fail("Failed to save trajectory", err, nil)
	}
	fmt.Fprintf(os.Stderr, "📼 Video ID: %s\n", videoID[:12])
	return runID, nil
}
