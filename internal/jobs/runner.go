package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/faceanon/engine/internal/blur"
	"github.com/faceanon/engine/internal/config"
	"github.com/faceanon/engine/internal/detect"
	"github.com/faceanon/engine/internal/media"
	"github.com/faceanon/engine/internal/merge"
	"github.com/faceanon/engine/internal/pipeline"
	"github.com/faceanon/engine/internal/queue"
	"github.com/faceanon/engine/internal/smoother"
	"github.com/faceanon/engine/internal/storage"
	"github.com/faceanon/engine/internal/track"
	"github.com/faceanon/engine/pkg/dto"
)

// Runner drives a single Job from its source object to its output object,
// composing the ONNX backend, tracker and region builder into the
// detection port the core pipeline expects, and reporting progress and
// lifecycle transitions through Postgres, object storage and the event
// stream. One Runner is reused across jobs; Run is safe to call
// sequentially from a queue consumer's handler.
type Runner struct {
	cfg      config.PipelineConfig
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
	detPath  string
}

// NewRunner loads no models up front: the ONNX session is created fresh
// per job (§4.D treats the detector as cheap to construct relative to the
// cost of decoding a video) and torn down when the job finishes.
func NewRunner(cfg config.PipelineConfig, db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer) *Runner {
	return &Runner{
		cfg:      cfg,
		db:       db,
		minio:    minio,
		producer: producer,
		detPath:  filepath.Join(cfg.ModelsDir, "det_10g.onnx"),
	}
}

// Run executes job j to completion, updating its persisted status and
// publishing progress events as it goes. It never returns an error for a
// job-domain failure (a bad source, a cancelled run): those are recorded
// on the job itself. A returned error means the job's status could not be
// durably recorded and the caller should not ack the queue message.
func (r *Runner) Run(ctx context.Context, j *Job) error {
	slog.Info("running job", "job_id", j.ID, "mode", j.Mode, "source", j.SourceKey)

	if err := r.db.UpdateJobStatus(ctx, j.ID, statusForStart(j.Mode), ""); err != nil {
		return fmt.Errorf("mark job started: %w", err)
	}

	var runErr error
	switch j.Mode {
	case ModePreview:
		runErr = r.runPreview(ctx, j)
	case ModeBlur:
		runErr = r.runBlur(ctx, j)
	default:
		runErr = fmt.Errorf("unknown job mode %q", j.Mode)
	}

	if runErr != nil {
		slog.Error("job failed", "job_id", j.ID, "error", runErr)
		if err := r.db.UpdateJobStatus(ctx, j.ID, StatusFailed, runErr.Error()); err != nil {
			return fmt.Errorf("mark job failed: %w", err)
		}
		r.publish(ctx, j.ID, "failed", j.FramesDone, j.FramesTotal, runErr.Error())
		return nil
	}

	r.publish(ctx, j.ID, string(j.Status), j.FramesDone, j.FramesTotal, "")
	return nil
}

func statusForStart(m Mode) Status {
	if m == ModePreview {
		return StatusPreviewing
	}
	return StatusRunning
}

// runPreview downloads the source, scans it once for the largest crop per
// tracked identity, uploads thumbnails, persists the discovered identities
// and the per-frame detection cache alongside the job, then parks it in
// StatusAwaiting for an operator to choose a blur policy.
func (r *Runner) runPreview(ctx context.Context, j *Job) error {
	srcPath, cleanup, err := r.fetchSource(ctx, j.SourceKey)
	if err != nil {
		return err
	}
	defer cleanup()

	reader, err := openReader(ctx, srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	detector, closeDetector, err := r.newDetector(nil)
	if err != nil {
		reader.Close()
		return err
	}
	defer closeDetector()

	outDir, err := os.MkdirTemp("", "preview-"+j.ID.String())
	if err != nil {
		reader.Close()
		return fmt.Errorf("create preview scratch dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	total := reader.Metadata().TotalFrames
	j.FramesTotal = total

	result, err := pipeline.Preview(reader, detector, media.NewJPEGImageWriter(), outDir, func(done, _ int) bool {
		j.FramesDone = done
		if done%10 == 0 {
			_ = r.db.UpdateJobProgress(ctx, j.ID, done, total)
			r.publish(ctx, j.ID, "progress", done, total, "")
		}
		return ctx.Err() == nil
	})
	if err != nil {
		return fmt.Errorf("preview scan: %w", err)
	}

	trackIDs := make([]uint32, 0, len(result.Crops))
	for id := range result.Crops {
		trackIDs = append(trackIDs, id)
	}
	sort.Slice(trackIDs, func(i, j int) bool { return trackIDs[i] < trackIDs[j] })

	identities := make([]Identity, 0, len(trackIDs))
	for _, id := range trackIDs {
		thumbPath := filepath.Join(outDir, fmt.Sprintf("%d.jpg", id))
		data, err := os.ReadFile(thumbPath)
		if err != nil {
			return fmt.Errorf("read thumbnail for track %d: %w", id, err)
		}
		key := fmt.Sprintf("preview/%s/%d.jpg", j.ID, id)
		if err := r.minio.PutObject(ctx, key, data, "image/jpeg"); err != nil {
			return fmt.Errorf("upload thumbnail for track %d: %w", id, err)
		}
		identities = append(identities, Identity{JobID: j.ID, TrackID: id, ThumbnailKey: key})
	}

	if len(identities) > 0 {
		if err := r.db.CreateIdentities(ctx, j.ID, identities); err != nil {
			return fmt.Errorf("persist identities: %w", err)
		}
	}

	j.FramesDone = total
	if err := r.db.UpdateJobProgress(ctx, j.ID, total, total); err != nil {
		return fmt.Errorf("mark preview progress complete: %w", err)
	}
	if err := r.db.UpdateJobStatus(ctx, j.ID, StatusAwaiting, ""); err != nil {
		return fmt.Errorf("mark job awaiting selection: %w", err)
	}
	j.Status = StatusAwaiting

	cacheData, err := json.Marshal(result.DetectionCache)
	if err != nil {
		return fmt.Errorf("marshal detection cache: %w", err)
	}
	cacheKey := fmt.Sprintf("cache/%s.json", j.ID)
	if err := r.minio.PutObject(ctx, cacheKey, cacheData, "application/json"); err != nil {
		return fmt.Errorf("upload detection cache: %w", err)
	}
	if err := r.db.SetJobCacheKey(ctx, j.ID, cacheKey); err != nil {
		return fmt.Errorf("record detection cache key: %w", err)
	}
	j.CacheKey = cacheKey
	return nil
}

// runBlur downloads the source, runs the full blur pipeline with the
// job's filter policy applied, and uploads the result.
func (r *Runner) runBlur(ctx context.Context, j *Job) error {
	srcPath, cleanup, err := r.fetchSource(ctx, j.SourceKey)
	if err != nil {
		return err
	}
	defer cleanup()

	reader, err := openReader(ctx, srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	meta := reader.Metadata()
	j.FramesTotal = meta.TotalFrames

	blurIDs := j.BlurIDSet()
	excludeIDs := j.ExcludeIDSet()

	detector, closeDetector, err := r.blurDetector(ctx, j)
	if err != nil {
		reader.Close()
		return err
	}
	defer closeDetector()

	outPath := filepath.Join(os.TempDir(), "out-"+j.ID.String()+filepath.Ext(srcPath))
	defer os.Remove(outPath)

	var writer media.Writer
	if media.IsStillImage(srcPath) {
		writer = media.NewImageFileWriter(media.NewJPEGImageWriter(), outPath)
	} else {
		writer, err = media.NewFFmpegWriter(ctx, outPath, meta.Width, meta.Height, meta.FPS, srcPath)
	}
	if err != nil {
		reader.Close()
		return fmt.Errorf("open writer: %w", err)
	}

	var blurrer blur.FrameBlurrer
	if j.Shape == "elliptical" {
		blurrer = blur.NewElliptical(r.cfg.KernelSize)
	} else {
		blurrer = blur.NewRectangular(r.cfg.KernelSize)
	}

	exec := &pipeline.Executor{
		Reader:   reader,
		Writer:   writer,
		Detector: detector,
		Blurrer:  blurrer,
		Merger:   merge.New(),
		Config: pipeline.Config{
			Lookahead:  r.cfg.Lookahead,
			BlurIDs:    blurIDs,
			ExcludeIDs: excludeIDs,
			OnProgress: func(done, total int) bool {
				j.FramesDone = done
				if done%10 == 0 {
					_ = r.db.UpdateJobProgress(ctx, j.ID, done, total)
					r.publish(ctx, j.ID, "progress", done, total, "")
				}
				return ctx.Err() == nil
			},
		},
	}

	if err := exec.Execute(); err != nil {
		return fmt.Errorf("blur pass: %w", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return fmt.Errorf("read output: %w", err)
	}
	outKey := fmt.Sprintf("output/%s%s", j.ID, filepath.Ext(srcPath))
	if err := r.minio.PutObject(ctx, outKey, data, contentTypeFor(srcPath)); err != nil {
		return fmt.Errorf("upload output: %w", err)
	}

	if err := r.db.SetJobOutput(ctx, j.ID, outKey); err != nil {
		return fmt.Errorf("record output key: %w", err)
	}
	if err := r.db.UpdateJobProgress(ctx, j.ID, j.FramesTotal, j.FramesTotal); err != nil {
		return fmt.Errorf("mark progress complete: %w", err)
	}
	if err := r.db.UpdateJobStatus(ctx, j.ID, StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	j.Status = StatusCompleted
	j.OutputKey = outKey
	return nil
}

// openReader routes a still image through media.ImageReader (fps = 0,
// one frame, per frame.SingleImageMetadata) instead of the ffmpeg/ffprobe
// path, whose nb_frames probe often can't be parsed for image containers.
func openReader(ctx context.Context, path string) (media.Reader, error) {
	if media.IsStillImage(path) {
		return media.OpenImageReader(path)
	}
	return media.OpenFFmpegReader(ctx, path)
}

// fetchSource downloads the job's source object to a local temp file,
// since both the ffmpeg reader and writer (for audio muxing) operate on
// paths, not byte streams.
func (r *Runner) fetchSource(ctx context.Context, key string) (path string, cleanup func(), err error) {
	data, err := r.minio.GetObject(ctx, key)
	if err != nil {
		return "", nil, fmt.Errorf("download source: %w", err)
	}
	f, err := os.CreateTemp("", "source-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("create scratch file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write scratch file: %w", err)
	}
	f.Close()
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// blurDetector picks the detector for a blur pass: if an earlier preview
// job left a detection cache behind, replaying it keeps track IDs stable
// across the two passes per §1 and skips ONNX inference entirely;
// otherwise it falls back to a fresh tracked detector, for a job that was
// submitted without a preceding preview. The returned close func is a
// no-op for the cached path, since there is no ONNX session to release.
func (r *Runner) blurDetector(ctx context.Context, j *Job) (detect.FaceDetector, func(), error) {
	if j.CacheKey == "" {
		return r.newDetector(nil)
	}
	data, err := r.minio.GetObject(ctx, j.CacheKey)
	if err != nil {
		return nil, nil, fmt.Errorf("download detection cache: %w", err)
	}
	var cache detect.Cache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, nil, fmt.Errorf("unmarshal detection cache: %w", err)
	}
	return detect.NewCachedDetector(cache), func() {}, nil
}

// newDetector composes a fresh ONNX backend, tracker and region builder
// per §4.C/§4.D's defaults, optionally wrapped in the skip-frame decorator
// (§4.F) when the pipeline is configured to extrapolate rather than run
// inference on every frame. The returned close func destroys the ONNX
// session; it must be called exactly once.
func (r *Runner) newDetector(opts *ort.SessionOptions) (detect.FaceDetector, func(), error) {
	backend, err := detect.NewONNXDetector(r.detPath, float32(r.cfg.DetectionThreshold), opts)
	if err != nil {
		return nil, nil, fmt.Errorf("load detection model: %w", err)
	}

	tracker := track.New(defaultMaxLost)

	builderOpts := []detect.BuilderOption{
		detect.WithPadding(r.cfg.DefaultPadding),
		detect.WithCenterOffset(r.cfg.CenterOffset),
	}
	if r.cfg.SmootherAlpha > 0 {
		builderOpts = append(builderOpts, detect.WithSmoother(smoother.New(r.cfg.SmootherAlpha)))
	}
	builder := detect.NewBuilder(builderOpts...)

	var d detect.FaceDetector = detect.NewDetector(backend, tracker, builder)
	if r.cfg.SkipInterval > 1 {
		skipped, err := detect.NewSkipFrameDetector(d, r.cfg.SkipInterval)
		if err != nil {
			backend.Close()
			return nil, nil, fmt.Errorf("wrap skip-frame detector: %w", err)
		}
		d = skipped
	}
	return d, backend.Close, nil
}

// defaultMaxLost is how many consecutive frames a track survives without
// a matching detection before the tracker drops it.
const defaultMaxLost = 10

func (r *Runner) publish(ctx context.Context, jobID uuid.UUID, eventType string, done, total int, errMsg string) {
	evt := dto.JobEvent{
		JobID:     jobID,
		Type:      eventType,
		Done:      done,
		Total:     total,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	}
	if err := r.producer.PublishEvent(ctx, jobID.String(), evt); err != nil {
		slog.Warn("publish job event", "job_id", jobID, "error", err)
	}
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "video/mp4"
	}
}
