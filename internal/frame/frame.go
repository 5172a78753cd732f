// Package frame defines the decoded-image type that flows through the
// pipeline, and the metadata describing the video or image it came from.
package frame

import "fmt"

// Frame is a decoded image: a contiguous row-major RGB byte buffer plus a
// monotonic zero-based index used as the identity for the detection cache
// and progress correlation.
type Frame struct {
	Data          []byte
	Width, Height int
	Channels      int
	Index         int
}

// New constructs a Frame, validating that data.len() == width*height*channels.
func New(data []byte, width, height, channels, index int) (*Frame, error) {
	want := width * height * channels
	if len(data) != want {
		return nil, fmt.Errorf("frame: data length %d does not match %dx%dx%d=%d", len(data), width, height, channels, want)
	}
	return &Frame{Data: data, Width: width, Height: height, Channels: channels, Index: index}, nil
}

// At returns the byte offset of pixel (x, y) channel 0 within Data.
func (f *Frame) At(x, y int) int {
	return (y*f.Width + x) * f.Channels
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &Frame{Data: data, Width: f.Width, Height: f.Height, Channels: f.Channels, Index: f.Index}
}

// Rotation is the source's intended display rotation, applied by the
// reader/writer collaborators outside the core pipeline.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// VideoMetadata describes the source a reader opened.
type VideoMetadata struct {
	Width, Height int
	FPS           float64
	TotalFrames   int
	Codec         string
	SourcePath    string
	Rotation      Rotation
}

// SingleImageMetadata returns the metadata convention used when a single
// still image is processed as a one-frame video: fps = 0, total frames = 1.
func SingleImageMetadata(width, height int, sourcePath string) VideoMetadata {
	return VideoMetadata{
		Width:       width,
		Height:      height,
		FPS:         0,
		TotalFrames: 1,
		Codec:       "",
		SourcePath:  sourcePath,
	}
}
