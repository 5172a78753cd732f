package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/faceanon/engine/internal/frame"
)

// FFmpegReader decodes a video file into packed RGB24 frames via an ffmpeg
// subprocess (exec.CommandContext with piped stdout), decoding the whole
// file in order.
type FFmpegReader struct {
	path     string
	metadata frame.VideoMetadata

	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	out    chan FrameOrError
}

// OpenFFmpegReader probes path with ffprobe for metadata, then starts an
// ffmpeg subprocess streaming raw RGB24 frames.
func OpenFFmpegReader(ctx context.Context, path string) (*FFmpegReader, error) {
	meta, err := probeMetadata(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg reader: probe: %w", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	args := []string{
		"-v", "error",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}
	cmd := exec.CommandContext(cctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg reader: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg reader: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg reader: start: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "line", scanner.Text())
		}
	}()

	r := &FFmpegReader{
		path:     path,
		metadata: meta,
		cmd:      cmd,
		stdout:   stdout,
		cancel:   cancel,
		out:      make(chan FrameOrError, 8),
	}
	go r.decodeLoop()
	return r, nil
}

func (r *FFmpegReader) decodeLoop() {
	defer close(r.out)
	frameSize := r.metadata.Width * r.metadata.Height * 3
	buf := make([]byte, frameSize)
	reader := bufio.NewReaderSize(r.stdout, frameSize)
	index := 0
	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				r.out <- FrameOrError{Err: fmt.Errorf("ffmpeg reader: read frame %d: %w", index, err)}
			}
			return
		}
		data := make([]byte, frameSize)
		copy(data, buf)
		f, err := frame.New(data, r.metadata.Width, r.metadata.Height, 3, index)
		if err != nil {
			r.out <- FrameOrError{Err: err}
			return
		}
		r.out <- FrameOrError{Frame: f}
		index++
	}
}

// Metadata implements Reader.
func (r *FFmpegReader) Metadata() frame.VideoMetadata { return r.metadata }

// Frames implements Reader.
func (r *FFmpegReader) Frames() <-chan FrameOrError { return r.out }

// Close implements Reader. Idempotent.
func (r *FFmpegReader) Close() error {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.cmd != nil && r.cmd.Process != nil {
		r.cmd.Wait()
	}
	return nil
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Rotation     int    `json:"-"`
	SideDataList []struct {
		Rotation int `json:"rotation"`
	} `json:"side_data_list"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

func probeMetadata(ctx context.Context, path string) (frame.VideoMetadata, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,r_frame_rate,nb_frames,codec_type",
		"-show_entries", "stream_side_data=rotation",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return frame.VideoMetadata{}, fmt.Errorf("ffprobe: %w", err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return frame.VideoMetadata{}, fmt.Errorf("ffprobe: parse output: %w", err)
	}
	if len(parsed.Streams) == 0 {
		return frame.VideoMetadata{}, fmt.Errorf("ffprobe: no video stream found in %s", path)
	}
	s := parsed.Streams[0]

	fps := parseFrameRate(s.RFrameRate)
	totalFrames, _ := strconv.Atoi(s.NbFrames)

	rotation := frame.Rotation0
	for _, sd := range s.SideDataList {
		switch sd.Rotation {
		case 90, -270:
			rotation = frame.Rotation90
		case 180, -180:
			rotation = frame.Rotation180
		case 270, -90:
			rotation = frame.Rotation270
		}
	}

	return frame.VideoMetadata{
		Width:       s.Width,
		Height:      s.Height,
		FPS:         fps,
		TotalFrames: totalFrames,
		Codec:       s.CodecName,
		SourcePath:  path,
		Rotation:    rotation,
	}, nil
}

func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
