package pipeline

import (
	"testing"

	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/media"
	"github.com/faceanon/engine/internal/region"
)

type previewFakeReader struct {
	meta frame.VideoMetadata
	out  chan media.FrameOrError
}

func (r *previewFakeReader) Metadata() frame.VideoMetadata     { return r.meta }
func (r *previewFakeReader) Frames() <-chan media.FrameOrError { return r.out }
func (r *previewFakeReader) Close() error                      { return nil }

type scriptedDetector struct {
	byFrame map[int][]region.Region
}

func (d *scriptedDetector) Detect(f *frame.Frame) ([]region.Region, error) {
	return d.byFrame[f.Index], nil
}

type fakeImageWriter struct {
	writes map[string]*media.Size
}

func (w *fakeImageWriter) Write(path string, f *frame.Frame, size *media.Size) error {
	if w.writes == nil {
		w.writes = make(map[string]*media.Size)
	}
	w.writes[path] = size
	return nil
}

func u32(v uint32) *uint32 { return &v }

func TestPreviewKeepsLargestAreaPerTrack(t *testing.T) {
	w, h := 100, 100
	meta := frame.VideoMetadata{Width: w, Height: h, TotalFrames: 2}
	out := make(chan media.FrameOrError, 2)
	for i := 0; i < 2; i++ {
		data := make([]byte, w*h*3)
		f, _ := frame.New(data, w, h, 3, i)
		out <- media.FrameOrError{Frame: f}
	}
	close(out)
	reader := &previewFakeReader{meta: meta, out: out}

	detector := &scriptedDetector{byFrame: map[int][]region.Region{
		0: {{X: 10, Y: 10, Width: 20, Height: 20, TrackID: u32(1)}},
		1: {{X: 10, Y: 10, Width: 30, Height: 30, TrackID: u32(1)}},
	}}
	imgWriter := &fakeImageWriter{}

	result, err := Preview(reader, detector, imgWriter, "/tmp/out", nil)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	crop, ok := result.Crops[1]
	if !ok {
		t.Fatalf("missing crop for track 1")
	}
	if crop.Width != 30 || crop.Height != 30 {
		t.Fatalf("crop size = %dx%d, want 30x30 (the larger of the two detections)", crop.Width, crop.Height)
	}
	if len(result.DetectionCache[0]) != 1 || len(result.DetectionCache[1]) != 1 {
		t.Fatalf("detection cache not populated per frame index")
	}
	if size, ok := imgWriter.writes["/tmp/out/1.jpg"]; !ok || size.W != PreviewThumbnailSize || size.H != PreviewThumbnailSize {
		t.Fatalf("thumbnail not written at expected path/size")
	}
}

func TestPreviewIgnoresUntrackedRegions(t *testing.T) {
	w, h := 50, 50
	meta := frame.VideoMetadata{Width: w, Height: h, TotalFrames: 1}
	out := make(chan media.FrameOrError, 1)
	data := make([]byte, w*h*3)
	f, _ := frame.New(data, w, h, 3, 0)
	out <- media.FrameOrError{Frame: f}
	close(out)
	reader := &previewFakeReader{meta: meta, out: out}

	detector := &scriptedDetector{byFrame: map[int][]region.Region{
		0: {{X: 5, Y: 5, Width: 10, Height: 10}},
	}}
	result, err := Preview(reader, detector, &fakeImageWriter{}, "/tmp/out", nil)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(result.Crops) != 0 {
		t.Fatalf("expected no crops for untracked regions, got %d", len(result.Crops))
	}
}

func TestPreviewCancellationViaProgress(t *testing.T) {
	w, h := 20, 20
	meta := frame.VideoMetadata{Width: w, Height: h, TotalFrames: 5}
	out := make(chan media.FrameOrError, 5)
	for i := 0; i < 5; i++ {
		data := make([]byte, w*h*3)
		f, _ := frame.New(data, w, h, 3, i)
		out <- media.FrameOrError{Frame: f}
	}
	close(out)
	reader := &previewFakeReader{meta: meta, out: out}
	detector := &scriptedDetector{byFrame: map[int][]region.Region{}}

	calls := 0
	_, err := Preview(reader, detector, &fakeImageWriter{}, "/tmp/out", func(done, total int) bool {
		calls++
		return false
	})
	if err != ErrCancelled {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one progress call before cancelling, got %d", calls)
	}
}
