// Package media implements the external-collaborator contracts of §6:
// decoded media I/O is explicitly out of the core's scope, but something
// has to supply frames and accept them, so this package provides the
// concrete ffmpeg-subprocess and standard-codec backed implementations.
package media

import "github.com/faceanon/engine/internal/frame"

// Reader lazily produces frames from an opened source. Frames() is
// finite and not restartable; Close is idempotent.
type Reader interface {
	Metadata() frame.VideoMetadata
	Frames() <-chan FrameOrError
	Close() error
}

// FrameOrError is one item of a Reader's frame stream.
type FrameOrError struct {
	Frame *frame.Frame
	Err   error
}

// Writer accepts frames in increasing index order matching the metadata's
// frame rate, and flushes (including any muxed audio) on Close.
type Writer interface {
	Write(f *frame.Frame) error
	Close() error
}

// ImageWriter writes a single frame to a path, optionally bilinear-resized
// to (w, h).
type ImageWriter interface {
	Write(path string, f *frame.Frame, size *Size) error
}

// Size is an optional target (width, height) for ImageWriter.Write.
type Size struct{ W, H int }
