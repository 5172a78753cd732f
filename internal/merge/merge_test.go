package merge

import (
	"testing"

	"github.com/faceanon/engine/internal/region"
)

func withTrack(r region.Region, id uint32) region.Region { return r.WithTrackID(id) }

func TestMergeSlideInScenario(t *testing.T) {
	m := New()
	current := []region.Region{withTrack(region.Region{X: 100, Y: 100, Width: 50, Height: 50}, 1)}
	lookahead := [][]region.Region{
		{},
		{withTrack(region.Region{X: 0, Y: 375, Width: 50, Height: 50}, 2)}, // center (25,400)
		{},
	}
	out := m.Merge(current, lookahead, 1000, 800)

	var t1, t2 *region.Region
	for i := range out {
		if out[i].TrackIDOr(0) == 1 {
			t1 = &out[i]
		}
		if out[i].TrackIDOr(0) == 2 {
			t2 = &out[i]
		}
	}
	if t1 == nil || t1.X != 100 {
		t.Fatalf("t1 = %+v, want unchanged at x=100", t1)
	}
	if t2 == nil {
		t.Fatal("t2 missing from merge output")
	}
	if t2.X != 0 {
		t.Fatalf("t2.X = %d, want clamped to 0 (unclamped ~-12.5)", t2.X)
	}
}

func TestMergeNoPushForCenterRegion(t *testing.T) {
	m := New()
	current := []region.Region{}
	lookahead := [][]region.Region{
		{withTrack(region.Region{X: 475, Y: 375, Width: 50, Height: 50}, 1)}, // dead center
	}
	out := m.Merge(current, lookahead, 1000, 800)
	if len(out) != 1 || out[0].X != 475 {
		t.Fatalf("out = %+v, want unchanged (center region is far from every edge)", out)
	}
}

func TestMergeUntrackedAlwaysAppended(t *testing.T) {
	m := New()
	current := []region.Region{}
	lookahead := [][]region.Region{
		{{X: 10, Y: 10, Width: 10, Height: 10}},
	}
	out := m.Merge(current, lookahead, 1000, 800)
	if len(out) != 1 {
		t.Fatalf("out = %+v, want untracked region appended as-is", out)
	}
}

func TestMergeDeduplicatesOverlaps(t *testing.T) {
	m := New()
	current := []region.Region{{X: 0, Y: 0, Width: 100, Height: 100}}
	lookahead := [][]region.Region{
		{{X: 10, Y: 10, Width: 100, Height: 100}},
	}
	out := m.Merge(current, lookahead, 1000, 800)
	if len(out) != 1 {
		t.Fatalf("out = %+v, want overlap deduplicated", out)
	}
}

func TestMergeSeenTrackIDSkippedFromLaterLookahead(t *testing.T) {
	m := New()
	current := []region.Region{withTrack(region.Region{X: 500, Y: 400, Width: 50, Height: 50}, 1)}
	lookahead := [][]region.Region{
		{withTrack(region.Region{X: 0, Y: 0, Width: 50, Height: 50}, 1)},
	}
	out := m.Merge(current, lookahead, 1000, 800)
	if len(out) != 1 {
		t.Fatalf("out = %+v, want track 1 only kept once (from current)", out)
	}
	if out[0].X != 500 {
		t.Fatalf("out[0].X = %d, want 500 (current position retained)", out[0].X)
	}
}
