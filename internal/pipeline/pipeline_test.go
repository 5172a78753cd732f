package pipeline

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/faceanon/engine/internal/blur"
	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/media"
	"github.com/faceanon/engine/internal/merge"
	"github.com/faceanon/engine/internal/region"
)

type fakeReader struct {
	meta  frame.VideoMetadata
	out   chan media.FrameOrError
	closed atomic.Bool
}

func newFakeReader(n, w, h int) *fakeReader {
	r := &fakeReader{
		meta: frame.VideoMetadata{Width: w, Height: h, FPS: 25, TotalFrames: n},
		out:  make(chan media.FrameOrError, n),
	}
	for i := 0; i < n; i++ {
		data := make([]byte, w*h*3)
		f, _ := frame.New(data, w, h, 3, i)
		r.out <- media.FrameOrError{Frame: f}
	}
	close(r.out)
	return r
}

func (r *fakeReader) Metadata() frame.VideoMetadata    { return r.meta }
func (r *fakeReader) Frames() <-chan media.FrameOrError { return r.out }
func (r *fakeReader) Close() error                      { r.closed.Store(true); return nil }

type fakeWriter struct {
	written []int
	closed  bool
}

func (w *fakeWriter) Write(f *frame.Frame) error {
	w.written = append(w.written, f.Index)
	return nil
}
func (w *fakeWriter) Close() error { w.closed = true; return nil }

type noopDetector struct{}

func (noopDetector) Detect(f *frame.Frame) ([]region.Region, error) { return nil, nil }

type noopBlurrer struct{}

func (noopBlurrer) Blur(f *frame.Frame, regions []region.Region) error { return nil }

func TestExecuteWritesFramesInOrder(t *testing.T) {
	reader := newFakeReader(10, 32, 32)
	writer := &fakeWriter{}
	exec := &Executor{
		Reader:   reader,
		Writer:   writer,
		Detector: noopDetector{},
		Blurrer:  noopBlurrer{},
		Merger:   merge.New(),
		Config:   Config{Lookahead: 3},
	}
	if err := exec.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(writer.written) != 10 {
		t.Fatalf("wrote %d frames, want 10", len(writer.written))
	}
	for i, idx := range writer.written {
		if idx != i {
			t.Fatalf("frame %d written out of order: got index %d", i, idx)
		}
	}
	if !writer.closed {
		t.Fatalf("writer not closed")
	}
}

func TestExecuteSecondCallFails(t *testing.T) {
	reader := newFakeReader(2, 16, 16)
	exec := &Executor{
		Reader:   reader,
		Writer:   &fakeWriter{},
		Detector: noopDetector{},
		Blurrer:  noopBlurrer{},
		Merger:   merge.New(),
	}
	if err := exec.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := exec.Execute(); !errors.Is(err, ErrAlreadyExecuted) {
		t.Fatalf("second execute: got %v, want ErrAlreadyExecuted", err)
	}
}

func TestExecuteCancellationViaProgress(t *testing.T) {
	reader := newFakeReader(10, 16, 16)
	writer := &fakeWriter{}
	exec := &Executor{
		Reader:   reader,
		Writer:   writer,
		Detector: noopDetector{},
		Blurrer:  noopBlurrer{},
		Merger:   merge.New(),
		Config: Config{
			Lookahead: 1,
			OnProgress: func(done, total int) bool {
				return done < 3
			},
		},
	}
	err := exec.Execute()
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
	if len(writer.written) >= 10 {
		t.Fatalf("expected early cancellation, wrote all %d frames", len(writer.written))
	}
}

type errorBlurrer struct{}

func (errorBlurrer) Blur(f *frame.Frame, regions []region.Region) error {
	return errors.New("boom")
}

func TestExecutePropagatesBlurError(t *testing.T) {
	reader := newFakeReader(5, 16, 16)
	exec := &Executor{
		Reader:   reader,
		Writer:   &fakeWriter{},
		Detector: noopDetector{},
		Blurrer:  errorBlurrer{},
		Merger:   merge.New(),
		Config:   Config{Lookahead: 1},
	}
	if err := exec.Execute(); err == nil {
		t.Fatalf("expected error from blurrer")
	}
}

type panickyDetector struct{}

func (panickyDetector) Detect(f *frame.Frame) ([]region.Region, error) {
	panic("boom")
}

func TestExecuteRecoversDetectorPanic(t *testing.T) {
	reader := newFakeReader(5, 16, 16)
	exec := &Executor{
		Reader:   reader,
		Writer:   &fakeWriter{},
		Detector: panickyDetector{},
		Blurrer:  noopBlurrer{},
		Merger:   merge.New(),
		Config:   Config{Lookahead: 1},
	}
	err := exec.Execute()
	if err == nil {
		t.Fatalf("expected a panic to surface as an error")
	}
	if !strings.Contains(err.Error(), "detector thread panicked") {
		t.Fatalf("got %q, want it to mention a detector panic", err.Error())
	}
}

type panickyBlurrer struct{}

func (panickyBlurrer) Blur(f *frame.Frame, regions []region.Region) error {
	panic("boom")
}

func TestExecuteRecoversMainThreadPanic(t *testing.T) {
	reader := newFakeReader(5, 16, 16)
	exec := &Executor{
		Reader:   reader,
		Writer:   &fakeWriter{},
		Detector: noopDetector{},
		Blurrer:  panickyBlurrer{},
		Merger:   merge.New(),
		Config:   Config{Lookahead: 1},
	}
	err := exec.Execute()
	if err == nil {
		t.Fatalf("expected a panic to surface as an error")
	}
	if !strings.Contains(err.Error(), "main thread panicked") {
		t.Fatalf("got %q, want it to mention a main thread panic", err.Error())
	}
}

// TestExecuteDetectorErrorDoesNotHang exercises the case the reader/detector
// drain fix addresses: a small lookahead keeps frameCh's buffer full, so
// when the detector stops on its own error it must drain the remaining
// frames rather than leaving the reader blocked on a send forever.
func TestExecuteDetectorErrorDoesNotHang(t *testing.T) {
	reader := newFakeReader(50, 16, 16)
	exec := &Executor{
		Reader:   reader,
		Writer:   &fakeWriter{},
		Detector: &errorAfterNDetector{n: 2},
		Blurrer:  noopBlurrer{},
		Merger:   merge.New(),
		Config:   Config{Lookahead: 1},
	}

	done := make(chan error, 1)
	go func() { done <- exec.Execute() }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected an error from the detector")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Execute did not return: reader likely blocked on a full frameCh")
	}
}

type errorAfterNDetector struct {
	n     int
	count int
}

func (d *errorAfterNDetector) Detect(f *frame.Frame) ([]region.Region, error) {
	d.count++
	if d.count > d.n {
		return nil, errors.New("detect boom")
	}
	return nil, nil
}

var _ blur.FrameBlurrer = noopBlurrer{}
