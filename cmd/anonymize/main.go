// Command anonymize runs a single blur or preview job directly against
// local files, with no queue, API, Postgres or MinIO involved — the
// pipeline's local/batch-run entry point, for operators who want a single
// file processed without standing up the job server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"syscall"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/faceanon/engine/internal/blur"
	"github.com/faceanon/engine/internal/config"
	"github.com/faceanon/engine/internal/detect"
	"github.com/faceanon/engine/internal/media"
	"github.com/faceanon/engine/internal/merge"
	"github.com/faceanon/engine/internal/observability"
	"github.com/faceanon/engine/internal/pipeline"
	"github.com/faceanon/engine/internal/smoother"
	"github.com/faceanon/engine/internal/track"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	in := flag.String("in", "", "input video or image path")
	out := flag.String("out", "", "output path (blur mode only)")
	previewDir := flag.String("preview-dir", "", "write per-identity thumbnails here instead of blurring")
	shape := flag.String("shape", "rectangular", "blur shape: rectangular | elliptical")
	blurIDs := flag.String("blur-ids", "", "comma-separated track IDs to blur (default: all)")
	excludeIDs := flag.String("exclude-ids", "", "comma-separated track IDs to exclude from blurring")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if *in == "" || (*previewDir == "" && *out == "") {
		fmt.Fprintln(os.Stderr, "usage: anonymize -in <path> (-out <path> | -preview-dir <dir>) [-shape rectangular|elliptical] [-blur-ids 1,2] [-exclude-ids 3]")
		os.Exit(2)
	}

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("cancelling run...")
		cancel()
	}()

	var reader media.Reader
	if media.IsStillImage(*in) {
		reader, err = media.OpenImageReader(*in)
	} else {
		reader, err = media.OpenFFmpegReader(ctx, *in)
	}
	if err != nil {
		slog.Error("open input", "error", err)
		os.Exit(1)
	}

	detPath := filepath.Join(cfg.Pipeline.ModelsDir, "det_10g.onnx")
	backend, err := detect.NewONNXDetector(detPath, float32(cfg.Pipeline.DetectionThreshold), nil)
	if err != nil {
		slog.Error("load detection model", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	builderOpts := []detect.BuilderOption{
		detect.WithPadding(cfg.Pipeline.DefaultPadding),
		detect.WithCenterOffset(cfg.Pipeline.CenterOffset),
	}
	if cfg.Pipeline.SmootherAlpha > 0 {
		builderOpts = append(builderOpts, detect.WithSmoother(smoother.New(cfg.Pipeline.SmootherAlpha)))
	}
	var detector detect.FaceDetector = detect.NewDetector(backend, track.New(10), detect.NewBuilder(builderOpts...))
	if cfg.Pipeline.SkipInterval > 1 {
		skipped, err := detect.NewSkipFrameDetector(detector, cfg.Pipeline.SkipInterval)
		if err != nil {
			slog.Error("wrap skip-frame detector", "error", err)
			os.Exit(1)
		}
		detector = skipped
	}

	if *previewDir != "" {
		runPreview(reader, detector, *previewDir)
		return
	}

	runBlur(ctx, reader, detector, *in, *out, *shape, parseIDs(*blurIDs), parseIDs(*excludeIDs), cfg)
}

func runPreview(reader media.Reader, detector detect.FaceDetector, dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("create preview dir", "error", err)
		os.Exit(1)
	}
	total := reader.Metadata().TotalFrames
	result, err := pipeline.Preview(reader, detector, media.NewJPEGImageWriter(), dir, func(done, _ int) bool {
		if done%25 == 0 {
			slog.Info("scanning", "done", done, "total", total)
		}
		return true
	})
	if err != nil {
		slog.Error("preview scan failed", "error", err)
		os.Exit(1)
	}
	ids := make([]uint32, 0, len(result.Crops))
	for id := range result.Crops {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	slog.Info("preview complete", "identities_found", len(ids), "dir", dir)
}

func runBlur(ctx context.Context, reader media.Reader, detector detect.FaceDetector, inPath, outPath, shape string, blurIDs, excludeIDs map[uint32]struct{}, cfg *config.Config) {
	meta := reader.Metadata()

	var writer media.Writer
	var err error
	if media.IsStillImage(outPath) {
		writer = media.NewImageFileWriter(media.NewJPEGImageWriter(), outPath)
	} else {
		writer, err = media.NewFFmpegWriter(ctx, outPath, meta.Width, meta.Height, meta.FPS, inPath)
	}
	if err != nil {
		slog.Error("open output", "error", err)
		os.Exit(1)
	}

	var blurrer blur.FrameBlurrer
	if shape == "elliptical" {
		blurrer = blur.NewElliptical(cfg.Pipeline.KernelSize)
	} else {
		blurrer = blur.NewRectangular(cfg.Pipeline.KernelSize)
	}

	total := meta.TotalFrames
	exec := &pipeline.Executor{
		Reader:   reader,
		Writer:   writer,
		Detector: detector,
		Blurrer:  blurrer,
		Merger:   merge.New(),
		Config: pipeline.Config{
			Lookahead:  cfg.Pipeline.Lookahead,
			BlurIDs:    blurIDs,
			ExcludeIDs: excludeIDs,
			OnProgress: func(done, _ int) bool {
				if done%25 == 0 {
					slog.Info("processing", "done", done, "total", total)
				}
				return true
			},
		},
	}

	if err := exec.Execute(); err != nil {
		slog.Error("blur pass failed", "error", err)
		os.Exit(1)
	}
	slog.Info("done", "out", outPath)
}

func parseIDs(s string) map[uint32]struct{} {
	if s == "" {
		return nil
	}
	set := make(map[uint32]struct{})
	for _, part := range splitComma(s) {
		var id uint32
		if _, err := fmt.Sscanf(part, "%d", &id); err == nil {
			set[id] = struct{}{}
		}
	}
	return set
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
