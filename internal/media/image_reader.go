package media

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/faceanon/engine/internal/frame"
)

// stillImageExts are the extensions routed through ImageReader instead of
// the ffmpeg/ffprobe pipeline. ffmpeg can decode these too, but treating
// a still as a one-frame video by construction avoids relying on
// ffprobe's nb_frames, which many image containers don't populate.
var stillImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// IsStillImage reports whether path's extension names a still-image
// format, per the source-routing convention above.
func IsStillImage(path string) bool {
	return stillImageExts[strings.ToLower(filepath.Ext(path))]
}

// ImageReader implements Reader over a single still image, decoded once
// with the standard library's image codecs and exposed as a one-frame
// video per frame.SingleImageMetadata: fps = 0, total frames = 1.
type ImageReader struct {
	metadata frame.VideoMetadata
	out      chan FrameOrError
}

// OpenImageReader decodes path (JPEG, PNG or GIF) into a single RGB24
// Frame at index 0.
func OpenImageReader(path string) (*ImageReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("image reader: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("image reader: decode %s: %w", path, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	data := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := (y*width + x) * 3
			data[off] = byte(r >> 8)
			data[off+1] = byte(g >> 8)
			data[off+2] = byte(b >> 8)
		}
	}

	fr, err := frame.New(data, width, height, 3, 0)
	if err != nil {
		return nil, fmt.Errorf("image reader: build frame: %w", err)
	}

	out := make(chan FrameOrError, 1)
	out <- FrameOrError{Frame: fr}
	close(out)

	return &ImageReader{
		metadata: frame.SingleImageMetadata(width, height, path),
		out:      out,
	}, nil
}

// Metadata implements Reader.
func (r *ImageReader) Metadata() frame.VideoMetadata { return r.metadata }

// Frames implements Reader.
func (r *ImageReader) Frames() <-chan FrameOrError { return r.out }

// Close implements Reader. The image is already fully decoded in memory,
// so there is nothing to release.
func (r *ImageReader) Close() error { return nil }

// ImageFileWriter adapts an ImageWriter to the Writer interface for the
// still-image counterpart of a blur run: the pipeline's single frame is
// written to a fixed path instead of streamed to an encoder.
type ImageFileWriter struct {
	img  ImageWriter
	path string
}

// NewImageFileWriter writes every frame Write receives to path via img,
// at its native resolution. Intended for exactly one frame, matching
// SingleImageMetadata.TotalFrames.
func NewImageFileWriter(img ImageWriter, path string) *ImageFileWriter {
	return &ImageFileWriter{img: img, path: path}
}

// Write implements Writer.
func (w *ImageFileWriter) Write(f *frame.Frame) error {
	return w.img.Write(w.path, f, nil)
}

// Close implements Writer. Nothing to flush: each frame was written
// synchronously.
func (w *ImageFileWriter) Close() error { return nil }
