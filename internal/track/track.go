// Package track implements a two-stage IoU-association tracker
// (ByteTrack-style): high-confidence detections are matched first, then
// low-confidence detections fill remaining unmatched tracks. Tracks that
// lose association are kept internally (available for later
// re-association) until they exceed the configured max-lost age.
package track

import "sort"

// HighConfThreshold separates high- from low-confidence detections.
const HighConfThreshold = 0.5

// MatchIoUThreshold is the minimum IoU for a track/detection pair to match.
const MatchIoUThreshold = 0.3

// BBox is an axis-aligned [x1, y1, x2, y2] box in pixel coordinates.
type BBox [4]float64

// Detection is one frame's raw detector output.
type Detection struct {
	BBox  BBox
	Score float64
}

// Track is the externally visible, matched state of a tracked identity.
type Track struct {
	ID       uint32
	BBox     BBox
	DetIndex int
}

// state is the tracker's internal bookkeeping, including lost tracks that
// are no longer reported but remain candidates for re-association.
type state struct {
	id         uint32
	bbox       BBox
	framesLost int
	matched    bool
	detIndex   int
}

// Tracker assigns and maintains stable track IDs across frames.
type Tracker struct {
	tracks  []*state
	nextID  uint32
	maxLost int
}

// New creates a tracker. maxLost is the number of consecutive unmatched
// frames a track survives before being dropped.
func New(maxLost int) *Tracker {
	return &Tracker{nextID: 1, maxLost: maxLost}
}

// Update runs one frame of association and returns the tracks matched this
// frame. Lost-but-alive tracks are retained internally but never returned.
func (t *Tracker) Update(detections []Detection) []Track {
	high, low := splitByConfidence(detections)

	for _, tr := range t.tracks {
		tr.matched = false
		tr.detIndex = -1
	}
	numExisting := len(t.tracks)

	highMatchedDet := t.matchHighConfidence(high)
	t.matchLowConfidence(low)

	for di, det := range high {
		if highMatchedDet[di] {
			continue
		}
		t.tracks = append(t.tracks, &state{
			id:       t.nextID,
			bbox:     det.BBox,
			matched:  true,
			detIndex: di,
		})
		t.nextID++
	}

	t.ageUnmatched(numExisting)

	var out []Track
	for _, tr := range t.tracks {
		if tr.matched {
			out = append(out, Track{ID: tr.id, BBox: tr.bbox, DetIndex: tr.detIndex})
		}
	}
	return out
}

func splitByConfidence(detections []Detection) (high, low []Detection) {
	for _, d := range detections {
		if d.Score >= HighConfThreshold {
			high = append(high, d)
		} else {
			low = append(low, d)
		}
	}
	return high, low
}

// matchHighConfidence performs Stage 1: greedy IoU match between ALL
// current tracks and the high-confidence detections. Returns the set of
// high-detection indices consumed.
func (t *Tracker) matchHighConfidence(high []Detection) map[int]bool {
	matchedTrack, matchedDet := greedyMatch(t.tracks, high, MatchIoUThreshold)
	for ti, di := range matchedTrack {
		tr := t.tracks[ti]
		tr.bbox = high[di].BBox
		tr.framesLost = 0
		tr.matched = true
		tr.detIndex = di
	}
	return matchedDet
}

// matchLowConfidence performs Stage 2: greedy IoU match between only the
// tracks still unmatched after Stage 1 and the low-confidence detections.
// Low-confidence detections never spawn new tracks.
func (t *Tracker) matchLowConfidence(low []Detection) {
	var candidates []*state
	for _, tr := range t.tracks {
		if !tr.matched {
			candidates = append(candidates, tr)
		}
	}
	matchedIdx, _ := greedyMatch(candidates, low, MatchIoUThreshold)
	for ci, di := range matchedIdx {
		tr := candidates[ci]
		tr.bbox = low[di].BBox
		tr.framesLost = 0
		tr.matched = true
		tr.detIndex = di
	}
}

// greedyMatch builds every (track-index, det-index) pair whose IoU meets
// the threshold, sorts by IoU descending, and consumes each pair once, in
// that order, skipping any index already taken. Returns the chosen
// trackIndex -> detIndex map and the set of consumed detection indices.
func greedyMatch(tracks []*state, dets []Detection, threshold float64) (map[int]int, map[int]bool) {
	type pair struct {
		ti, di int
		iou    float64
	}
	var pairs []pair
	for ti, tr := range tracks {
		for di, d := range dets {
			if v := iou(tr.bbox, d.BBox); v >= threshold {
				pairs = append(pairs, pair{ti, di, v})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].iou > pairs[j].iou })

	usedTrack := make(map[int]bool)
	usedDet := make(map[int]bool)
	matchedTrack := make(map[int]int)
	for _, p := range pairs {
		if usedTrack[p.ti] || usedDet[p.di] {
			continue
		}
		usedTrack[p.ti] = true
		usedDet[p.di] = true
		matchedTrack[p.ti] = p.di
	}
	return matchedTrack, usedDet
}

// ageUnmatched increments framesLost for tracks that existed before this
// update call and remain unmatched, then drops any track whose framesLost
// exceeds maxLost. Tracks created during this call are never aged this
// frame.
func (t *Tracker) ageUnmatched(numExisting int) {
	for i, tr := range t.tracks {
		if i >= numExisting {
			continue
		}
		if !tr.matched {
			tr.framesLost++
		}
	}
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.framesLost <= t.maxLost {
			kept = append(kept, tr)
		}
	}
	t.tracks = kept
}

func iou(a, b BBox) float64 {
	ix1, iy1 := maxf(a[0], b[0]), maxf(a[1], b[1])
	ix2, iy2 := minf(a[2], b[2]), minf(a[3], b[3])
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	intersection := iw * ih
	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
