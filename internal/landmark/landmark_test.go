package landmark

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func frontal() FaceLandmarks {
	return FaceLandmarks{Points: [5]Point{
		{X: 480, Y: 400}, // left eye
		{X: 520, Y: 400}, // right eye
		{X: 500, Y: 420}, // nose
		{X: 485, Y: 440}, // left mouth
		{X: 515, Y: 440}, // right mouth
	}}
}

func TestCenterFrontal(t *testing.T) {
	c, err := frontal().Center()
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(c.X, 500, 0.5) || !almostEqual(c.Y, 400, 20) {
		t.Fatalf("center = %+v", c)
	}
}

func TestCenterNoVisiblePoints(t *testing.T) {
	f := FaceLandmarks{}
	if _, err := f.Center(); err != ErrNoVisiblePoints {
		t.Fatalf("err = %v, want ErrNoVisiblePoints", err)
	}
}

func TestCenterOnlyNoseVisible(t *testing.T) {
	f := FaceLandmarks{Points: [5]Point{{}, {}, {X: 500, Y: 400}, {}, {}}}
	c, err := f.Center()
	if err != nil {
		t.Fatal(err)
	}
	if c.X != 500 || c.Y != 400 {
		t.Fatalf("center = %+v", c)
	}
}

func TestCenterNoseWeightedHeavier(t *testing.T) {
	f := FaceLandmarks{Points: [5]Point{
		{X: 300, Y: 0},     // left eye, weight 2
		{X: 0, Y: 0},       // invisible
		{X: 1200, Y: 0},    // nose, weight 3
		{X: 0, Y: 0},       // invisible
		{X: 0, Y: 0},       // invisible
	}}
	c, err := f.Center()
	if err != nil {
		t.Fatal(err)
	}
	// (300*2 + 1200*3) / 5 = 840, nearer the nose than the plain mean 750.
	want := 840.0
	if !almostEqual(c.X, want, 1e-9) {
		t.Fatalf("cx = %v, want %v", c.X, want)
	}
}

func TestProfileRatioFrontal(t *testing.T) {
	if r := frontal().ProfileRatio(); r != 0 {
		t.Fatalf("ratio = %v, want ~0 for frontal-ish layout", r)
	}
}

func TestProfileRatioLeftProfile(t *testing.T) {
	f := FaceLandmarks{Points: [5]Point{
		{X: 400, Y: 400},
		{X: 460, Y: 400},
		{X: 380, Y: 420},
		{X: 410, Y: 440},
		{X: 440, Y: 440},
	}}
	got := f.ProfileRatio()
	want := 50.0 / 60.0
	if !almostEqual(got, want, 1e-6) {
		t.Fatalf("ratio = %v, want %v", got, want)
	}
}

func TestProfileRatioClampedToOne(t *testing.T) {
	f := FaceLandmarks{Points: [5]Point{
		{X: 400, Y: 400},
		{X: 420, Y: 400},
		{X: 900, Y: 420},
		{X: 410, Y: 440},
		{X: 415, Y: 440},
	}}
	if got := f.ProfileRatio(); got != 1 {
		t.Fatalf("ratio = %v, want 1", got)
	}
}

func TestProfileRatioMissingNose(t *testing.T) {
	f := FaceLandmarks{Points: [5]Point{{X: 400, Y: 400}, {X: 460, Y: 400}, {}, {}, {}}}
	if got := f.ProfileRatio(); got != 0 {
		t.Fatalf("ratio = %v, want 0", got)
	}
}

func TestProfileRatioMissingEye(t *testing.T) {
	f := FaceLandmarks{Points: [5]Point{{}, {X: 460, Y: 400}, {X: 430, Y: 420}, {}, {}}}
	if got := f.ProfileRatio(); got != 0 {
		t.Fatalf("ratio = %v, want 0", got)
	}
}

func TestProfileRatioZeroEyeSpan(t *testing.T) {
	f := FaceLandmarks{Points: [5]Point{{X: 450, Y: 400}, {X: 450, Y: 400}, {X: 450, Y: 420}, {}, {}}}
	if got := f.ProfileRatio(); got != 0 {
		t.Fatalf("ratio = %v, want 0", got)
	}
}

func TestBackOfHeadDirectionFrontal(t *testing.T) {
	if d := frontal().BackOfHeadDirection(); d != 0 {
		t.Fatalf("direction = %v, want 0 for symmetric nose", d)
	}
}

func TestBackOfHeadDirectionRightProfile(t *testing.T) {
	f := FaceLandmarks{Points: [5]Point{{X: 400, Y: 400}, {X: 420, Y: 400}, {X: 900, Y: 420}, {}, {}}}
	if d := f.BackOfHeadDirection(); d != 1 {
		t.Fatalf("direction = %v, want 1", d)
	}
}
