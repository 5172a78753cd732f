package detect

import (
	"fmt"

	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/region"
	"github.com/faceanon/engine/internal/track"
)

// Backend is the raw neural-net collaborator: given a frame, return
// per-face boxes, scores, and landmarks with no notion of identity across
// calls. ONNXDetector is the concrete backend; tests typically use a stub.
type Backend interface {
	Detect(f *frame.Frame) ([]Detection, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(f *frame.Frame) ([]Detection, error)

// Detect implements Backend.
func (fn BackendFunc) Detect(f *frame.Frame) ([]Detection, error) { return fn(f) }

// Detector composes a raw Backend with the two-stage tracker and the
// region builder to produce the FaceDetector port's stable-identity
// Regions. It must be called from a single goroutine; the tracker and
// builder both carry per-instance state.
type Detector struct {
	backend Backend
	tracker *track.Tracker
	builder *Builder
}

// NewDetector composes backend, tracker and builder into a FaceDetector.
func NewDetector(backend Backend, tracker *track.Tracker, builder *Builder) *Detector {
	return &Detector{backend: backend, tracker: tracker, builder: builder}
}

// Detect implements FaceDetector.
func (d *Detector) Detect(f *frame.Frame) ([]region.Region, error) {
	raw, err := d.backend.Detect(f)
	if err != nil {
		return nil, fmt.Errorf("detect: backend: %w", err)
	}

	trackDets := make([]track.Detection, len(raw))
	for i, r := range raw {
		trackDets[i] = track.Detection{BBox: track.BBox(r.BBox), Score: r.Score}
	}

	tracks := d.tracker.Update(trackDets)

	out := make([]region.Region, 0, len(tracks))
	for _, tr := range tracks {
		det := raw[tr.DetIndex]
		det.BBox = BBox(tr.BBox)
		id := tr.ID
		det.TrackID = &id
		out = append(out, d.builder.Build(det, f.Width, f.Height))
	}
	return out, nil
}
