package types

import "image"

// FrameTask represents a single decoded frame sent to a worker for processing
type FrameTask struct {
	Index int
	Frame *image.RGBA
}

// Position is the tracked pixel centroid of the object in one frame
type Position struct {
	Frame int     `json:"frame"`
	X     float64 `json:"x"` // column
	Y     float64 `json:"y"` // row
}

// Detection is what a worker reports back for a frame
type Detection struct {
	Index  int
	Found  bool
	Pos    Position
	Pixels int // number of pixels matching the color rule
}
