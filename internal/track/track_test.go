package track

import "testing"

func det(x1, y1, x2, y2, score float64) Detection {
	return Detection{BBox: BBox{x1, y1, x2, y2}, Score: score}
}

func TestTrackerContinuityScenario(t *testing.T) {
	tr := New(5)
	out1 := tr.Update([]Detection{det(10, 10, 60, 60, 0.9)})
	if len(out1) != 1 {
		t.Fatalf("frame1: got %d tracks, want 1", len(out1))
	}
	t1 := out1[0].ID

	out2 := tr.Update([]Detection{det(12, 12, 62, 62, 0.3)})
	if len(out2) != 1 {
		t.Fatalf("frame2: got %d tracks, want 1", len(out2))
	}
	if out2[0].ID != t1 {
		t.Fatalf("track ID changed: %d -> %d", t1, out2[0].ID)
	}
}

func TestNewDetectionsGetUniqueIDs(t *testing.T) {
	tr := New(5)
	out := tr.Update([]Detection{
		det(0, 0, 50, 50, 0.9),
		det(100, 100, 150, 150, 0.9),
	})
	if len(out) != 2 || out[0].ID == out[1].ID {
		t.Fatalf("expected two distinct IDs, got %+v", out)
	}
}

func TestLowConfidenceDoesNotCreateNewTrack(t *testing.T) {
	tr := New(5)
	out := tr.Update([]Detection{det(0, 0, 50, 50, 0.2)})
	if len(out) != 0 {
		t.Fatalf("expected no tracks from low-confidence-only frame, got %+v", out)
	}
}

func TestLowConfidenceMatchesExistingTrack(t *testing.T) {
	tr := New(5)
	tr.Update([]Detection{det(0, 0, 50, 50, 0.9)})
	out := tr.Update([]Detection{det(2, 2, 52, 52, 0.1)})
	if len(out) != 1 {
		t.Fatalf("expected existing track to persist via low-conf match, got %+v", out)
	}
}

func TestTrackSurvivesWithinMaxLost(t *testing.T) {
	tr := New(2)
	first := tr.Update([]Detection{det(0, 0, 50, 50, 0.9)})
	tr.Update(nil)
	out := tr.Update(nil)
	if len(out) != 0 {
		t.Fatalf("lost track should not be reported, got %+v", out)
	}
	// Track should still be internally alive (framesLost=2 <= maxLost=2);
	// re-presenting a matching high-conf detection should reacquire it.
	reacquired := tr.Update([]Detection{det(0, 0, 50, 50, 0.9)})
	if len(reacquired) != 1 || reacquired[0].ID != first[0].ID {
		t.Fatalf("expected reacquisition of track %d, got %+v", first[0].ID, reacquired)
	}
}

func TestTrackRemovedAfterMaxLost(t *testing.T) {
	tr := New(2)
	first := tr.Update([]Detection{det(0, 0, 50, 50, 0.9)})
	tr.Update(nil)
	tr.Update(nil)
	out := tr.Update(nil)
	if len(out) != 0 {
		t.Fatalf("expected empty, got %+v", out)
	}
	// now track has framesLost=3 > maxLost=2 and should have been purged;
	// a new high-conf detection at the same place must allocate a fresh ID.
	reacquired := tr.Update([]Detection{det(0, 0, 50, 50, 0.9)})
	if len(reacquired) != 1 || reacquired[0].ID == first[0].ID {
		t.Fatalf("expected new track with an ID other than %d, got %+v", first[0].ID, reacquired)
	}
}

func TestEmptyFrame(t *testing.T) {
	tr := New(5)
	if out := tr.Update(nil); len(out) != 0 {
		t.Fatalf("expected empty, got %+v", out)
	}
}

func TestMultipleTracksIndependent(t *testing.T) {
	tr := New(5)
	tr.Update([]Detection{det(0, 0, 50, 50, 0.9), det(200, 200, 250, 250, 0.9)})
	out := tr.Update([]Detection{det(2, 2, 52, 52, 0.9), det(202, 202, 252, 252, 0.9)})
	if len(out) != 2 {
		t.Fatalf("expected 2 tracks, got %+v", out)
	}
}

func TestIoUNoOverlap(t *testing.T) {
	if got := iou(BBox{0, 0, 10, 10}, BBox{100, 100, 110, 110}); got != 0 {
		t.Fatalf("iou = %v, want 0", got)
	}
}

func TestIoUPerfectOverlap(t *testing.T) {
	b := BBox{0, 0, 10, 10}
	if got := iou(b, b); got < 0.999 {
		t.Fatalf("iou = %v, want ~1", got)
	}
}

func TestIoUPartialOverlap(t *testing.T) {
	a := BBox{0, 0, 10, 10}
	b := BBox{5, 0, 15, 10}
	got := iou(a, b)
	want := 50.0 / 150.0
	if got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("iou = %v, want %v", got, want)
	}
}
