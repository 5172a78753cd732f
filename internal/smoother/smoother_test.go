package smoother

import (
	"math"
	"testing"
)

func id(v uint32) *uint32 { return &v }

func TestFirstObservationIsIdentity(t *testing.T) {
	e := NewDefault()
	p := Params{100, 100, 50, 50}
	out := e.Smooth(p, id(1))
	if out != p {
		t.Fatalf("out = %+v, want %+v", out, p)
	}
}

func TestSecondObservation(t *testing.T) {
	e := NewDefault()
	e.Smooth(Params{100, 100, 50, 50}, id(1))
	out := e.Smooth(Params{110, 100, 50, 50}, id(1))
	want := 0.6*110 + 0.4*100
	if math.Abs(out[0]-want) > 1e-9 {
		t.Fatalf("out[0] = %v, want %v", out[0], want)
	}
}

func TestMissingTrackIDPassesThroughUnstored(t *testing.T) {
	e := NewDefault()
	p := Params{1, 2, 3, 4}
	out := e.Smooth(p, nil)
	if out != p {
		t.Fatalf("out = %+v, want passthrough", out)
	}
	if len(e.state) != 0 {
		t.Fatalf("expected no state stored")
	}
}

func TestConvergence(t *testing.T) {
	e := NewDefault()
	target := Params{200, 150, 80, 60}
	e.Smooth(Params{0, 0, 0, 0}, id(1))
	var out Params
	for i := 0; i < 50; i++ {
		out = e.Smooth(target, id(1))
	}
	for i := range out {
		if math.Abs(out[i]-target[i]) > 0.01 {
			t.Fatalf("out[%d] = %v, want ~%v", i, out[i], target[i])
		}
	}
}

func TestIndependentPerTrack(t *testing.T) {
	e := NewDefault()
	e.Smooth(Params{0, 0, 0, 0}, id(1))
	e.Smooth(Params{100, 100, 100, 100}, id(2))
	out1 := e.Smooth(Params{10, 10, 10, 10}, id(1))
	out2 := e.Smooth(Params{110, 110, 110, 110}, id(2))
	if out1[0] == out2[0] {
		t.Fatalf("expected independent state")
	}
}

func TestAlphaZeroKeepsFirstValueForever(t *testing.T) {
	e := New(0)
	e.Smooth(Params{5, 5, 5, 5}, id(1))
	out := e.Smooth(Params{999, 999, 999, 999}, id(1))
	if out != (Params{5, 5, 5, 5}) {
		t.Fatalf("out = %+v, want unchanged first value", out)
	}
}

func TestAlphaOneAlwaysUsesCurrent(t *testing.T) {
	e := New(1)
	e.Smooth(Params{5, 5, 5, 5}, id(1))
	out := e.Smooth(Params{999, 999, 999, 999}, id(1))
	if out != (Params{999, 999, 999, 999}) {
		t.Fatalf("out = %+v, want current value", out)
	}
}
