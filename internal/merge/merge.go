// Package merge implements the region merger: for the current frame, it
// blends in regions from a bounded window of future frames so that faces
// appearing in the near future slide in from the nearest image edge
// instead of abruptly popping into view when the blur pass catches up.
package merge

import "github.com/faceanon/engine/internal/region"

// EdgeFraction bounds how close (as a fraction of frame width/height) a
// newly-appearing tracked face's center must be to an edge before the
// slide-in animation applies.
const EdgeFraction = 0.25

// Merger merges a frame's own regions with a lookahead window of future
// regions, sliding newly-appearing tracked faces in from the nearest edge.
type Merger struct{}

// New creates a Merger.
func New() *Merger { return &Merger{} }

// Merge combines current with lookahead (a slice of per-future-frame region
// lists, nearest frame first) for a frame of size (frameW, frameH).
func (m *Merger) Merge(current []region.Region, lookahead [][]region.Region, frameW, frameH int) []region.Region {
	seen := make(map[uint32]struct{}, len(current))
	out := make([]region.Region, 0, len(current))
	for _, r := range current {
		if r.TrackID != nil {
			seen[*r.TrackID] = struct{}{}
		}
		out = append(out, r)
	}

	total := len(lookahead)
	for i, future := range lookahead {
		for _, r := range future {
			if r.TrackID == nil {
				out = append(out, r)
				continue
			}
			id := *r.TrackID
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, interpolateTowardEdge(r, i, total, frameW, frameH))
		}
	}

	return region.Deduplicate(out, region.DefaultIoUThreshold)
}

func interpolateTowardEdge(r region.Region, lookaheadIndex, total, frameW, frameH int) region.Region {
	t := float64(lookaheadIndex+1) / float64(total+1)

	cx, cy := r.Center()
	dLeft := cx
	dRight := float64(frameW) - cx
	dTop := cy
	dBottom := float64(frameH) - cy

	type edge struct {
		name string
		dist float64
	}
	edges := []edge{
		{"left", dLeft},
		{"right", dRight},
		{"top", dTop},
		{"bottom", dBottom},
	}
	minEdge := edges[0]
	for _, e := range edges[1:] {
		if e.dist < minEdge.dist {
			minEdge = e
		}
	}

	var threshold float64
	if minEdge.name == "left" || minEdge.name == "right" {
		threshold = float64(frameW) * EdgeFraction
	} else {
		threshold = float64(frameH) * EdgeFraction
	}
	if minEdge.dist > threshold {
		return r
	}

	var dx, dy float64
	switch minEdge.name {
	case "left":
		dx = -t * minEdge.dist
	case "right":
		dx = t * minEdge.dist
	case "top":
		dy = -t * minEdge.dist
	case "bottom":
		dy = t * minEdge.dist
	}

	return r.Translate(dx, dy)
}
