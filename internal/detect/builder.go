// Package detect turns raw detector output (bounding boxes, optional
// landmarks) into Regions, and provides the FaceDetector port along with
// its standard decorators: skip-frame extrapolation and cache replay.
package detect

import (
	"github.com/faceanon/engine/internal/landmark"
	"github.com/faceanon/engine/internal/region"
	"github.com/faceanon/engine/internal/smoother"
)

// DefaultPadding is the fraction of extra size added around the detected
// face box on every side.
const DefaultPadding = 0.4

// MinWidthRatio is the floor applied to effective face width, relative to
// box height, so narrow profile boxes never shrink unnaturally.
const MinWidthRatio = 0.8

// BBox is a detector's raw [x1, y1, x2, y2] output.
type BBox [4]float64

// Detection is the detector's raw per-face output: a box, confidence
// score, and optional landmarks.
type Detection struct {
	BBox       BBox
	Score      float64
	Landmarks  *landmark.FaceLandmarks
	TrackID    *uint32
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithPadding overrides the default padding fraction.
func WithPadding(padding float64) BuilderOption {
	return func(b *Builder) { b.padding = padding }
}

// WithCenterOffset enables the back-of-head nudge: a face turned away from
// center is shifted further along its profile direction by
// offset * half_w. Default 0 (no shift). Resolves the spec's "region
// builder center-offset" open question as an optional builder parameter.
func WithCenterOffset(offset float64) BuilderOption {
	return func(b *Builder) { b.centerOffset = offset }
}

// WithSmoother attaches an EMA smoother applied to (cx, cy, half_w, half_h)
// before the region is finalized.
func WithSmoother(s *smoother.EMA) BuilderOption {
	return func(b *Builder) { b.smoother = s }
}

// Builder turns a Detection into a Region sized and centered from its
// bounding box, optionally refined by landmarks.
type Builder struct {
	padding      float64
	centerOffset float64
	smoother     *smoother.EMA
}

// NewBuilder creates a region Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{padding: DefaultPadding}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build converts a detection into a clamped+unclamped Region for a frame of
// size (frameW, frameH).
func (b *Builder) Build(d Detection, frameW, frameH int) region.Region {
	boxW := d.BBox[2] - d.BBox[0]
	boxH := d.BBox[3] - d.BBox[1]
	boxCx := d.BBox[0] + boxW/2
	boxCy := d.BBox[1] + boxH/2

	var p float64
	hasLandmarks := d.Landmarks != nil && d.Landmarks.HasVisible()
	if hasLandmarks {
		p = d.Landmarks.ProfileRatio()
	}

	effectiveW := boxW + (boxH-boxW)*p
	if floor := boxH * MinWidthRatio; effectiveW < floor {
		effectiveW = floor
	}

	halfW := effectiveW * (1 + b.padding) / 2
	halfH := boxH * (1 + b.padding) / 2

	cx, cy := boxCx, boxCy
	if hasLandmarks {
		center, err := d.Landmarks.Center()
		if err == nil {
			faceCx, faceCy := center.X, center.Y
			cx = faceCx + (boxCx-faceCx)*p
			cy = faceCy + (boxCy-faceCy)*p
			if b.centerOffset != 0 {
				dir := d.Landmarks.BackOfHeadDirection()
				cx += b.centerOffset * halfW * dir
			}
		}
	}

	if b.smoother != nil {
		out := b.smoother.Smooth(smoother.Params{cx, cy, halfW, halfH}, d.TrackID)
		cx, cy, halfW, halfH = out[0], out[1], out[2], out[3]
	}

	return paramsToRegion(cx, cy, halfW, halfH, frameW, frameH, d.TrackID)
}

func paramsToRegion(cx, cy, halfW, halfH float64, frameW, frameH int, trackID *uint32) region.Region {
	unclampedX := cx - halfW
	unclampedY := cy - halfH
	fullW := halfW * 2
	fullH := halfH * 2

	x := int(unclampedX)
	y := int(unclampedY)
	w := int(fullW)
	h := int(fullH)

	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if x+w > frameW {
		w = frameW - x
		if w < 0 {
			w = 0
		}
	}
	if y+h > frameH {
		h = frameH - y
		if h < 0 {
			h = 0
		}
	}

	ux := int(unclampedX)
	uy := int(unclampedY)
	fw := int(fullW)
	fh := int(fullH)

	r := region.Region{
		X: x, Y: y, Width: w, Height: h,
		FullWidth:  &fw,
		FullHeight: &fh,
		UnclampedX: &ux,
		UnclampedY: &uy,
	}
	if trackID != nil {
		id := *trackID
		r.TrackID = &id
	}
	return r
}
