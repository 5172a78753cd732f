package detect

import (
	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/region"
)

// FaceDetector is the external collaborator contract: given a frame,
// return the regions to potentially blur. Implementations may be
// stateful (e.g. carrying a tracker) and must only ever be called from a
// single goroutine.
type FaceDetector interface {
	Detect(f *frame.Frame) ([]region.Region, error)
}

// FaceDetectorFunc adapts a plain function to FaceDetector.
type FaceDetectorFunc func(f *frame.Frame) ([]region.Region, error)

// Detect implements FaceDetector.
func (fn FaceDetectorFunc) Detect(f *frame.Frame) ([]region.Region, error) { return fn(f) }
