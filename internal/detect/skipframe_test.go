package detect

import (
	"testing"

	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/region"
)

func trackedRegion(id uint32, x, y, w, h int) region.Region {
	return region.Region{X: x, Y: y, Width: w, Height: h}.WithTrackID(id)
}

func newFrame(idx int) *frame.Frame {
	f, _ := frame.New(make([]byte, 10*10*3), 10, 10, 3, idx)
	return f
}

func TestSkipFrameIntervalOneDelegatesEveryFrame(t *testing.T) {
	calls := 0
	inner := FaceDetectorFunc(func(f *frame.Frame) ([]region.Region, error) {
		calls++
		return nil, nil
	})
	sf, err := NewSkipFrameDetector(inner, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		sf.Detect(newFrame(i))
	}
	if calls != 5 {
		t.Fatalf("calls = %d, want 5", calls)
	}
}

func TestSkipFrameZeroIntervalErrors(t *testing.T) {
	inner := FaceDetectorFunc(func(f *frame.Frame) ([]region.Region, error) { return nil, nil })
	if _, err := NewSkipFrameDetector(inner, 0); err == nil {
		t.Fatal("expected error for skip_interval=0")
	}
}

func TestSkipFrameExtrapolationScenario(t *testing.T) {
	// N=2. Frame 0 real at x=10. Frame 2 real at x=20 => velocity=5/frame.
	// Frame 3 (skipped) => x=25.
	responses := map[int][]region.Region{
		0: {trackedRegion(1, 10, 10, 50, 50)},
		2: {trackedRegion(1, 20, 10, 50, 50)},
	}
	inner := FaceDetectorFunc(func(f *frame.Frame) ([]region.Region, error) {
		return responses[f.Index], nil
	})
	sf, err := NewSkipFrameDetector(inner, 2)
	if err != nil {
		t.Fatal(err)
	}

	r0, _ := sf.Detect(newFrame(0))
	if r0[0].X != 10 {
		t.Fatalf("frame0 x = %d, want 10", r0[0].X)
	}

	r1, _ := sf.Detect(newFrame(1)) // skipped, no velocity yet
	if r1[0].X != 10 {
		t.Fatalf("frame1 x = %d, want 10 (no velocity on first cycle)", r1[0].X)
	}

	r2, _ := sf.Detect(newFrame(2)) // real, velocity becomes 5/frame
	if r2[0].X != 20 {
		t.Fatalf("frame2 x = %d, want 20", r2[0].X)
	}

	r3, _ := sf.Detect(newFrame(3)) // skipped, extrapolated
	if r3[0].X != 25 {
		t.Fatalf("frame3 x = %d, want 25", r3[0].X)
	}
}

func TestSkipFrameNoVelocityWithoutTrackID(t *testing.T) {
	responses := map[int][]region.Region{
		0: {region.Region{X: 10, Y: 10, Width: 50, Height: 50}},
	}
	inner := FaceDetectorFunc(func(f *frame.Frame) ([]region.Region, error) {
		return responses[f.Index], nil
	})
	sf, _ := NewSkipFrameDetector(inner, 2)
	sf.Detect(newFrame(0))
	out, _ := sf.Detect(newFrame(1))
	if out[0].X != 10 {
		t.Fatalf("x = %d, want unchanged 10 (no track id => no extrapolation)", out[0].X)
	}
}

func TestSkipFrameClampsToZero(t *testing.T) {
	responses := map[int][]region.Region{
		0: {trackedRegion(1, 10, 0, 50, 50)},
		2: {trackedRegion(1, 2, 0, 50, 50)}, // velocity = (2-10)/2 = -4/frame
	}
	inner := FaceDetectorFunc(func(f *frame.Frame) ([]region.Region, error) {
		return responses[f.Index], nil
	})
	sf, _ := NewSkipFrameDetector(inner, 2)
	sf.Detect(newFrame(0))
	sf.Detect(newFrame(1))
	sf.Detect(newFrame(2))
	out, _ := sf.Detect(newFrame(3))
	if out[0].X != 0 {
		t.Fatalf("x = %d, want clamped to 0", out[0].X)
	}
}

func TestSkipFrameTwoConsecutiveSkips(t *testing.T) {
	responses := map[int][]region.Region{
		0: {trackedRegion(1, 0, 0, 50, 50)},
		3: {trackedRegion(1, 30, 0, 50, 50)}, // velocity = 10/frame
	}
	inner := FaceDetectorFunc(func(f *frame.Frame) ([]region.Region, error) {
		return responses[f.Index], nil
	})
	sf, _ := NewSkipFrameDetector(inner, 3)
	sf.Detect(newFrame(0))
	sf.Detect(newFrame(1))
	sf.Detect(newFrame(2))
	sf.Detect(newFrame(3))
	r4, _ := sf.Detect(newFrame(4))
	if r4[0].X != 40 {
		t.Fatalf("frame4 x = %d, want 40", r4[0].X)
	}
	r5, _ := sf.Detect(newFrame(5))
	if r5[0].X != 50 {
		t.Fatalf("frame5 x = %d, want 50", r5[0].X)
	}
}
