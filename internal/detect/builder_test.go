package detect

import (
	"math"
	"testing"

	"github.com/faceanon/engine/internal/landmark"
)

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestBuildFrontalNoLandmarksContainsBoxCenter(t *testing.T) {
	b := NewBuilder()
	d := Detection{BBox: BBox{400, 300, 600, 500}}
	r := b.Build(d, 1000, 800)
	cx := float64(r.X) + float64(r.Width)/2
	cy := float64(r.Y) + float64(r.Height)/2
	if !almostEqual(cx, 500, 5) || !almostEqual(cy, 400, 5) {
		t.Fatalf("center = (%v,%v), want ~(500,400)", cx, cy)
	}
}

func TestBuildNarrowBoxEnforcesMinWidth(t *testing.T) {
	b := NewBuilder()
	// box_w tiny relative to box_h, profile ratio 0 (no landmarks): effective_w
	// should floor at box_h*0.8.
	d := Detection{BBox: BBox{490, 300, 510, 500}} // box_w=20, box_h=200
	r := b.Build(d, 2000, 2000)
	wantHalfW := 200 * 0.8 * 1.4 / 2
	gotHalfW := float64(*r.FullWidth) / 2
	if !almostEqual(gotHalfW, wantHalfW, 1) {
		t.Fatalf("halfW = %v, want ~%v", gotHalfW, wantHalfW)
	}
}

func TestBuildZeroPaddingExactFullDims(t *testing.T) {
	b := NewBuilder(WithPadding(0))
	d := Detection{BBox: BBox{100, 100, 300, 300}} // 200x200 frontal box
	r := b.Build(d, 1000, 1000)
	if *r.FullWidth != 200 || *r.FullHeight != 200 {
		t.Fatalf("full dims = (%d,%d), want (200,200)", *r.FullWidth, *r.FullHeight)
	}
}

func TestBuildEdgeClampLeftTop(t *testing.T) {
	b := NewBuilder()
	d := Detection{BBox: BBox{5, 5, 50, 50}}
	r := b.Build(d, 1000, 1000)
	if r.X != 0 || r.Y != 0 {
		t.Fatalf("x,y = %d,%d, want clamped to 0", r.X, r.Y)
	}
	if *r.UnclampedX >= 0 || *r.UnclampedY >= 0 {
		t.Fatalf("unclamped should go negative near the edge: %d,%d", *r.UnclampedX, *r.UnclampedY)
	}
}

func TestBuildTrackIDPassthrough(t *testing.T) {
	b := NewBuilder()
	id := uint32(7)
	d := Detection{BBox: BBox{0, 0, 50, 50}, TrackID: &id}
	r := b.Build(d, 1000, 1000)
	if r.TrackID == nil || *r.TrackID != 7 {
		t.Fatalf("track id = %v, want 7", r.TrackID)
	}
}

func TestBuildCenterOffsetShiftsNonFrontalProfile(t *testing.T) {
	b0 := NewBuilder(WithCenterOffset(0))
	b1 := NewBuilder(WithCenterOffset(0.5))
	lm := &landmark.FaceLandmarks{Points: [5]landmark.Point{
		{X: 400, Y: 400}, {X: 420, Y: 400}, {X: 900, Y: 420}, {X: 405, Y: 440}, {X: 415, Y: 440},
	}}
	d0 := Detection{BBox: BBox{350, 350, 500, 500}, Landmarks: lm}
	d1 := Detection{BBox: BBox{350, 350, 500, 500}, Landmarks: lm}
	r0 := b0.Build(d0, 2000, 2000)
	r1 := b1.Build(d1, 2000, 2000)
	if *r1.UnclampedX == *r0.UnclampedX {
		t.Fatalf("expected center offset to shift cx when profile is non-frontal")
	}
}
