package media

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/faceanon/engine/internal/frame"
)

func writeTestPNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestIsStillImage(t *testing.T) {
	cases := map[string]bool{
		"a.jpg": true, "a.JPEG": true, "a.png": true,
		"a.mp4": false, "a.mov": false, "a": false,
	}
	for path, want := range cases {
		if got := IsStillImage(path); got != want {
			t.Errorf("IsStillImage(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestOpenImageReaderSingleFrameMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	writeTestPNG(t, path, 4, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	reader, err := OpenImageReader(path)
	if err != nil {
		t.Fatalf("open image reader: %v", err)
	}
	defer reader.Close()

	meta := reader.Metadata()
	if meta.Width != 4 || meta.Height != 3 {
		t.Fatalf("metadata dims = %dx%d, want 4x3", meta.Width, meta.Height)
	}
	if meta.FPS != 0 || meta.TotalFrames != 1 {
		t.Fatalf("metadata = {fps:%v total:%v}, want {fps:0 total:1}", meta.FPS, meta.TotalFrames)
	}

	var got []int
	for fr := range reader.Frames() {
		if fr.Err != nil {
			t.Fatalf("frame error: %v", fr.Err)
		}
		got = append(got, fr.Frame.Index)
		if fr.Frame.Data[0] != 10 || fr.Frame.Data[1] != 20 || fr.Frame.Data[2] != 30 {
			t.Fatalf("pixel 0 = %v, want [10 20 30]", fr.Frame.Data[0:3])
		}
	}
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("frame indices = %v, want [0]", got)
	}
}

func TestImageFileWriterWritesToFixedPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	writeTestPNG(t, path, 2, 2, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	reader, err := OpenImageReader(path)
	if err != nil {
		t.Fatalf("open image reader: %v", err)
	}
	defer reader.Close()

	var f *frame.Frame
	for r := range reader.Frames() {
		if r.Err != nil {
			t.Fatalf("frame error: %v", r.Err)
		}
		f = r.Frame
	}

	outPath := filepath.Join(t.TempDir(), "out.jpg")
	writer := NewImageFileWriter(NewJPEGImageWriter(), outPath)
	if err := writer.Write(f); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
}
