// Package tracker follows a colored object through a stream of video frames.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/andresmejia3/fitlab/internal/types"
	"github.com/andresmejia3/fitlab/internal/worker"
)

// ErrNoFrames is returned when the source yields no frames at all.
var ErrNoFrames = errors.New("video contains no frames")

// ColorRule selects pixels with R > MinRed, G < MaxGreen and B < MaxBlue.
type ColorRule struct {
	MinRed   uint8
	MaxGreen uint8
	MaxBlue  uint8
}

// DefaultRule matches a red ball.
var DefaultRule = ColorRule{MinRed: 120, MaxGreen: 60, MaxBlue: 60}

// Match reports whether a pixel satisfies the rule.
func (c ColorRule) Match(r, g, b uint8) bool {
	return r > c.MinRed && g < c.MaxGreen && b < c.MaxBlue
}

// FrameSource yields decoded frames in order and returns io.EOF when exhausted.
type FrameSource interface {
	Next() (*image.RGBA, error)
}

// Recycler is implemented by sources that reuse frame buffers.
type Recycler interface {
	Recycle(*image.RGBA)
}

// Options configures a tracking run.
type Options struct {
	Rule    ColorRule
	Engines int
	// Mask blacks out matched pixels in place.
	Mask bool
	// Inspect, if set, sees every frame after detection. It runs on the
	// worker goroutines and must be safe for concurrent use.
	Inspect func(task types.FrameTask, det types.Detection)
	// Progress, if set, is called once per frame in frame order.
	Progress func(det types.Detection)
}

// Result is the outcome of a tracking run.
type Result struct {
	// First is a copy of the first frame, unmasked.
	First      *image.RGBA
	Width      int
	Height     int
	Trajectory []types.Position
	Frames     int
	Matched    int
}

// Detect thresholds frame with rule and returns the centroid of the matching
// pixels. Found is false when no pixel matches.
func Detect(frame *image.RGBA, rule ColorRule, mask bool) (types.Position, int, bool) {
	b := frame.Bounds()
	var sumX, sumY float64
	count := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := (y - frame.Rect.Min.Y) * frame.Stride
		for x := b.Min.X; x < b.Max.X; x++ {
			off := row + (x-frame.Rect.Min.X)*4
			px := frame.Pix[off : off+3 : off+3]
			if !rule.Match(px[0], px[1], px[2]) {
				continue
			}
			sumX += float64(x)
			sumY += float64(y)
			count++
			if mask {
				px[0], px[1], px[2] = 0, 0, 0
			}
		}
	}
	if count == 0 {
		return types.Position{}, 0, false
	}
	return types.Position{X: sumX / float64(count), Y: sumY / float64(count)}, count, true
}

// Track reads src until io.EOF and records the object centroid of every frame
// in which the color rule matches. Frames without a match are skipped.
func Track(ctx context.Context, src FrameSource, opts Options) (*Result, error) {
	if opts.Rule == (ColorRule{}) {
		opts.Rule = DefaultRule
	}
	engines := opts.Engines
	if engines < 1 {
		engines = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	res := &Result{}
	tasks := make(chan types.FrameTask, engines)
	readErr := make(chan error, 1)

	go func() {
		defer close(tasks)
		for idx := 0; ; idx++ {
			frame, err := src.Next()
			if err == io.EOF {
				readErr <- nil
				return
			}
			if err != nil {
				readErr <- err
				cancel()
				return
			}
			if idx == 0 {
				res.First = cloneRGBA(frame)
				res.Width, res.Height = frame.Rect.Dx(), frame.Rect.Dy()
			}
			select {
			case tasks <- types.FrameTask{Index: idx, Frame: frame}:
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
	}()

	recycler, _ := src.(Recycler)
	pool := &worker.Pool{
		Size: engines,
		Detect: func(task types.FrameTask) (types.Detection, error) {
			pos, n, ok := Detect(task.Frame, opts.Rule, opts.Mask)
			pos.Frame = task.Index
			det := types.Detection{Index: task.Index, Found: ok, Pos: pos, Pixels: n}
			if opts.Inspect != nil {
				opts.Inspect(task, det)
			}
			if recycler != nil {
				recycler.Recycle(task.Frame)
			}
			return det, nil
		},
	}

	err := pool.Run(ctx, tasks, func(det types.Detection) error {
		res.Frames++
		if det.Found {
			res.Matched++
			res.Trajectory = append(res.Trajectory, det.Pos)
		}
		if opts.Progress != nil {
			opts.Progress(det)
		}
		return nil
	})

	// Unblock the reader if the pool stopped early. Source failures take
	// precedence over the cancellation they caused in the pool.
	cancel()
	if rerr := <-readErr; rerr != nil && !errors.Is(rerr, context.Canceled) {
		return nil, fmt.Errorf("reading frames: %w", rerr)
	}
	if err != nil {
		return nil, err
	}
	if res.Frames == 0 {
		return nil, ErrNoFrames
	}
	return res, nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		copy(dst.Pix[dst.PixOffset(b.Min.X, y):dst.PixOffset(b.Max.X, y)], src.Pix[src.PixOffset(b.Min.X, y):src.PixOffset(b.Max.X, y)])
	}
	return dst
}
