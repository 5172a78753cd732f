package media

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/faceanon/engine/internal/blur"
	"github.com/faceanon/engine/internal/frame"
)

// FFmpegWriter encodes a sequence of raw RGB24 frames into a video file via
// an ffmpeg subprocess, muxing back any audio track found at audioSourcePath
// (the original input, per the VideoWriter contract in §6 — "may mux audio
// from the source path if the writer captured it").
type FFmpegWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc
	width  int
	height int
	done   chan error
}

// NewFFmpegWriter starts an ffmpeg subprocess that reads rawvideo/rgb24
// frames of (width, height) from stdin, encodes at fps, and muxes in the
// audio stream of audioSourcePath if non-empty.
func NewFFmpegWriter(ctx context.Context, outPath string, width, height int, fps float64, audioSourcePath string) (*FFmpegWriter, error) {
	if fps <= 0 {
		fps = 25
	}
	cctx, cancel := context.WithCancel(ctx)

	args := []string{
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%.3f", fps),
		"-i", "pipe:0",
	}
	if audioSourcePath != "" {
		args = append(args, "-i", audioSourcePath, "-map", "0:v:0", "-map", "1:a:0?", "-c:a", "aac", "-shortest")
	}
	args = append(args, "-c:v", "libx264", "-pix_fmt", "yuv420p", "-y", outPath)

	cmd := exec.CommandContext(cctx, "ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg writer: stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg writer: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg writer: start: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "line", scanner.Text())
		}
	}()

	w := &FFmpegWriter{
		cmd:    cmd,
		stdin:  stdin,
		cancel: cancel,
		width:  width,
		height: height,
		done:   make(chan error, 1),
	}
	go func() { w.done <- cmd.Wait() }()
	return w, nil
}

// Write implements Writer.
func (w *FFmpegWriter) Write(f *frame.Frame) error {
	if f.Width != w.width || f.Height != w.height {
		return fmt.Errorf("ffmpeg writer: frame %d is %dx%d, want %dx%d", f.Index, f.Width, f.Height, w.width, w.height)
	}
	_, err := w.stdin.Write(f.Data)
	return err
}

// Close implements Writer: closes stdin so ffmpeg flushes, and waits for
// the subprocess to exit.
func (w *FFmpegWriter) Close() error {
	if err := w.stdin.Close(); err != nil {
		return err
	}
	err := <-w.done
	w.cancel()
	if err != nil {
		return fmt.Errorf("ffmpeg writer: encode: %w", err)
	}
	return nil
}

// JPEGImageWriter implements ImageWriter by writing a frame directly as a
// JPEG still, optionally resizing first via the shared bilinear upscaler
// (used for down/up resample alike, since it operates on arbitrary
// dst dimensions).
type JPEGImageWriter struct {
	Quality int
}

// NewJPEGImageWriter creates a writer with a sane default quality.
func NewJPEGImageWriter() *JPEGImageWriter { return &JPEGImageWriter{Quality: 90} }

// Write implements ImageWriter.
func (w *JPEGImageWriter) Write(path string, f *frame.Frame, size *Size) error {
	data, width, height := f.Data, f.Width, f.Height
	if size != nil && (size.W != width || size.H != height) {
		data = blur.Upscale(data, width, height, f.Channels, size.W, size.H)
		width, height = size.W, size.H
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := (y*width + x) * f.Channels
			i := img.PixOffset(x, y)
			img.Pix[i] = data[off]
			img.Pix[i+1] = data[off+1]
			img.Pix[i+2] = data[off+2]
			img.Pix[i+3] = 255
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("jpeg image writer: create %s: %w", path, err)
	}
	defer out.Close()

	quality := w.Quality
	if quality <= 0 {
		quality = 90
	}
	return jpeg.Encode(out, img, &jpeg.Options{Quality: quality})
}
