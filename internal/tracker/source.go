package tracker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/andresmejia3/fitlab/internal/utils"
)

// RawSource splits a stream of raw RGBA frames of a fixed size.
type RawSource struct {
	r      io.Reader
	width  int
	height int
	// pool recycles frame buffers to reduce GC pressure during tracking
	pool sync.Pool
}

// NewRawSource reads width×height RGBA frames from r.
func NewRawSource(r io.Reader, width, height int) *RawSource {
	s := &RawSource{r: r, width: width, height: height}
	s.pool.New = func() interface{} { return image.NewRGBA(image.Rect(0, 0, width, height)) }
	return s
}

// Next returns the next frame, or io.EOF at a clean end of stream.
func (s *RawSource) Next() (*image.RGBA, error) {
	frame := s.pool.Get().(*image.RGBA)
	_, err := io.ReadFull(s.r, frame.Pix)
	if err == nil {
		return frame, nil
	}
	s.pool.Put(frame)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("truncated frame (expected %d bytes): %w", len(frame.Pix), err)
	}
	return nil, err
}

// Recycle hands a frame buffer back for reuse.
func (s *RawSource) Recycle(frame *image.RGBA) {
	if frame.Rect.Dx() == s.width && frame.Rect.Dy() == s.height {
		s.pool.Put(frame)
	}
}

// VideoSource decodes a video file through ffmpeg.
type VideoSource struct {
	*RawSource
	Width   int
	Height  int
	decoder *utils.SafeCommand
	out     io.ReadCloser
}

// OpenVideo probes the video dimensions and starts the decoder. The caller
// must Close the source.
func OpenVideo(ctx context.Context, path string) (*VideoSource, error) {
	width, height, err := utils.GetVideoDimensions(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to determine video dimensions: %w", err)
	}

	decoder := utils.NewFFmpegRawDecoder(ctx, path)
	out, err := decoder.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create FFmpeg stdout pipe: %w", err)
	}
	if err := decoder.Start(); err != nil {
		return nil, fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	return &VideoSource{
		RawSource: NewRawSource(out, width, height),
		Width:     width,
		Height:    height,
		decoder:   decoder,
		out:       out,
	}, nil
}

// Decoder exposes the underlying command so callers can report its logs.
func (v *VideoSource) Decoder() *utils.SafeCommand { return v.decoder }

// Close releases the decoder. It returns the decoder's exit error, if any.
func (v *VideoSource) Close() error {
	// Closing the pipe makes ffmpeg exit with a write error if it is still running.
	v.out.Close()
	return v.decoder.Wait()
}
