// Package region implements the blur-target geometry model: clamped and
// unclamped rectangles, IoU, greedy deduplication, edge-aware ellipse math,
// and the track-ID filter policy shared by every pipeline mode.
package region

// DefaultIoUThreshold is the default deduplication/match threshold used
// throughout the pipeline.
const DefaultIoUThreshold = 0.3

// Region is a blur target, carrying both the visible (clamped) rectangle
// and, optionally, the intended (unclamped) rectangle before clipping to
// the frame. The unclamped fields let an elliptical mask extend naturally
// past a frame edge instead of shrinking when the box is clipped.
type Region struct {
	X, Y, Width, Height int

	// TrackID is the stable identity assigned by the tracker. Absent when
	// a backend does not track (e.g. a stateless detector).
	TrackID *uint32

	// FullWidth, FullHeight, UnclampedX, UnclampedY describe the rectangle
	// before clamping. Nil when the caller never had unclamped geometry to
	// offer (e.g. a region reconstructed from a wire format).
	FullWidth  *int
	FullHeight *int
	UnclampedX *int
	UnclampedY *int
}

// HasTrackID reports whether the region carries a stable identity.
func (r Region) HasTrackID() bool { return r.TrackID != nil }

// TrackIDOr returns the region's track ID, or def if it has none.
func (r Region) TrackIDOr(def uint32) uint32 {
	if r.TrackID == nil {
		return def
	}
	return *r.TrackID
}

func intPtr(v int) *int        { return &v }
func u32Ptr(v uint32) *uint32 { return &v }

// WithTrackID returns a copy of r with the given track ID attached.
func (r Region) WithTrackID(id uint32) Region {
	r.TrackID = u32Ptr(id)
	return r
}

// IoU computes axis-aligned intersection-over-union on the clamped
// rectangles of a and b. Returns 0 when the intersection (or either area)
// is non-positive.
func IoU(a, b Region) float64 {
	ax1, ay1, ax2, ay2 := float64(a.X), float64(a.Y), float64(a.X+a.Width), float64(a.Y+a.Height)
	bx1, by1, bx2, by2 := float64(b.X), float64(b.Y), float64(b.X+b.Width), float64(b.Y+b.Height)

	ix1, iy1 := max(ax1, bx1), max(ay1, by1)
	ix2, iy2 := min(ax2, bx2), min(ay2, by2)

	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	intersection := iw * ih

	areaA := float64(a.Width) * float64(a.Height)
	areaB := float64(b.Width) * float64(b.Height)
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// Deduplicate walks regions in order, keeping a region only if its IoU with
// every already-kept region is at most threshold. Input order is preserved
// in the output.
func Deduplicate(regions []Region, threshold float64) []Region {
	kept := make([]Region, 0, len(regions))
	for _, r := range regions {
		ok := true
		for _, k := range kept {
			if IoU(r, k) > threshold {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, r)
		}
	}
	return kept
}

// EllipseCenterInROI returns the ellipse center relative to the clamped ROI.
// When unclamped geometry is present, the center is shifted so the ellipse
// extends off-frame naturally when the region has been clipped; otherwise it
// falls back to the clamped rectangle's own center.
func (r Region) EllipseCenterInROI() (cx, cy float64) {
	if r.FullWidth == nil || r.FullHeight == nil || r.UnclampedX == nil || r.UnclampedY == nil {
		return float64(r.Width) / 2, float64(r.Height) / 2
	}
	fw, fh := float64(*r.FullWidth), float64(*r.FullHeight)
	ux, uy := *r.UnclampedX, *r.UnclampedY
	cx = fw/2 - float64(r.X-ux)
	cy = fh/2 - float64(r.Y-uy)
	return cx, cy
}

// EllipseAxes returns the ellipse's semi-axes, derived from the unclamped
// full dimensions when present, else from the clamped rectangle.
func (r Region) EllipseAxes() (a, b float64) {
	if r.FullWidth == nil || r.FullHeight == nil {
		return float64(r.Width) / 2, float64(r.Height) / 2
	}
	return float64(*r.FullWidth) / 2, float64(*r.FullHeight) / 2
}

// Filter applies the track-ID inclusion/exclusion policy shared by every
// pipeline mode. If blurIDs is non-nil, only regions whose track ID is a
// member are kept (regions with no track ID are dropped). Otherwise, if
// excludeIDs is non-nil, regions whose track ID is NOT a member are kept
// (regions with no track ID are kept). With both nil, everything passes.
func Filter(regions []Region, blurIDs, excludeIDs map[uint32]struct{}) []Region {
	if blurIDs != nil {
		out := make([]Region, 0, len(regions))
		for _, r := range regions {
			if r.TrackID == nil {
				continue
			}
			if _, ok := blurIDs[*r.TrackID]; ok {
				out = append(out, r)
			}
		}
		return out
	}
	if excludeIDs != nil {
		out := make([]Region, 0, len(regions))
		for _, r := range regions {
			if r.TrackID == nil {
				out = append(out, r)
				continue
			}
			if _, ok := excludeIDs[*r.TrackID]; !ok {
				out = append(out, r)
			}
		}
		return out
	}
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}

// Translate returns a copy of r shifted by (dx, dy); the unclamped origin,
// if present, is shifted by the same amount. x and y are clamped to >= 0.
func (r Region) Translate(dx, dy float64) Region {
	out := r
	newX := float64(r.X) + dx
	newY := float64(r.Y) + dy
	if r.UnclampedX != nil {
		ux := *r.UnclampedX + int(dx)
		out.UnclampedX = intPtr(ux)
	}
	if r.UnclampedY != nil {
		uy := *r.UnclampedY + int(dy)
		out.UnclampedY = intPtr(uy)
	}
	if newX < 0 {
		newX = 0
	}
	if newY < 0 {
		newY = 0
	}
	out.X = int(newX)
	out.Y = int(newY)
	return out
}

// Center returns the center point of the clamped rectangle.
func (r Region) Center() (cx, cy float64) {
	return float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
