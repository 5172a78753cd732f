package detect

import (
	"testing"

	"github.com/faceanon/engine/internal/region"
)

func TestCachedDetectorReturnsCachedRegionsForKnownFrame(t *testing.T) {
	regions := []region.Region{trackedRegion(1, 10, 20, 50, 50), trackedRegion(2, 60, 20, 50, 50)}
	c := NewCachedDetector(Cache{0: regions})
	got, err := c.Detect(newFrame(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestCachedDetectorReturnsEmptyForUnknownFrame(t *testing.T) {
	c := NewCachedDetector(Cache{0: {trackedRegion(1, 10, 20, 50, 50)}})
	got, err := c.Detect(newFrame(5))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %+v, want empty", got)
	}
}

func TestCachedDetectorEmptyCacheAlwaysEmpty(t *testing.T) {
	c := NewCachedDetector(Cache{})
	got, _ := c.Detect(newFrame(0))
	if len(got) != 0 {
		t.Fatalf("got %+v", got)
	}
	got2, _ := c.Detect(newFrame(99))
	if len(got2) != 0 {
		t.Fatalf("got %+v", got2)
	}
}

func TestCachedDetectorPreservesTrackIDs(t *testing.T) {
	c := NewCachedDetector(Cache{0: {trackedRegion(42, 10, 0, 50, 50), trackedRegion(7, 60, 0, 50, 50)}})
	got, _ := c.Detect(newFrame(0))
	if *got[0].TrackID != 42 || *got[1].TrackID != 7 {
		t.Fatalf("got %+v", got)
	}
}
