// Package pipeline implements §4.I's four-actor executor and §4.J's
// preview use case: the concurrent producer/consumer network that couples
// a decoder, a detector, a temporal region stabilizer with lookahead, and
// a Gaussian blurrer.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/faceanon/engine/internal/blur"
	"github.com/faceanon/engine/internal/detect"
	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/media"
	"github.com/faceanon/engine/internal/merge"
	"github.com/faceanon/engine/internal/region"
)

// channelCapacity is the bounded channel size for every inter-actor queue,
// giving soft backpressure per §4.I.
const channelCapacity = 8

// DefaultLookahead is the number of future frames considered when merging.
const DefaultLookahead = 5

// ErrCancelled is returned when a run stops because Cancelled was set or
// OnProgress returned false.
var ErrCancelled = errors.New("pipeline: cancelled")

// ErrAlreadyExecuted is returned by a second call to Execute on the same
// Executor instance.
var ErrAlreadyExecuted = errors.New("pipeline: already executed")

// Config configures one Executor run.
type Config struct {
	Lookahead  int
	BlurIDs    map[uint32]struct{}
	ExcludeIDs map[uint32]struct{}
	OnProgress func(done, total int) bool
	Cancelled  *atomic.Bool
}

// Executor owns a reader, writer, detector, blurrer and merger for exactly
// one run; a second Execute call fails.
type Executor struct {
	Reader   media.Reader
	Writer   media.Writer
	Detector detect.FaceDetector
	Blurrer  blur.FrameBlurrer
	Merger   *merge.Merger
	Config   Config

	executed atomic.Bool
}

type frameResult struct {
	frame *frame.Frame
	err   error
}

type detectedResult struct {
	frame   *frame.Frame
	regions []region.Region
	err     error
}

// Execute runs the four-actor pipeline (reader, detector, main, writer) to
// completion or to the first fatal error, per §4.I.
func (e *Executor) Execute() error {
	if !e.executed.CompareAndSwap(false, true) {
		return ErrAlreadyExecuted
	}

	cancelled := e.Config.Cancelled
	if cancelled == nil {
		cancelled = &atomic.Bool{}
	}
	lookahead := e.Config.Lookahead
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	meta := e.Reader.Metadata()

	frameCh := make(chan frameResult, channelCapacity)
	detectedCh := make(chan detectedResult, channelCapacity)
	writeCh := make(chan *frame.Frame, channelCapacity)

	var readerErr, detectorErr, writerErr error
	var workers sync.WaitGroup
	workers.Add(3)

	// Reader actor.
	go func() {
		defer workers.Done()
		defer close(frameCh)
		defer func() {
			if r := recover(); r != nil {
				readerErr = fmt.Errorf("pipeline: reader thread panicked: %v", r)
				cancelled.Store(true)
			}
		}()
		for fr := range e.Reader.Frames() {
			if cancelled.Load() {
				return
			}
			if fr.Err != nil {
				readerErr = fr.Err
				frameCh <- frameResult{err: fr.Err}
				return
			}
			frameCh <- frameResult{frame: fr.Frame}
		}
		_ = e.Reader.Close()
	}()

	// Detector actor. If it stops reading frameCh early (cancellation or its
	// own error), it must keep draining the channel afterward: the reader
	// may already be blocked mid-send on a full frameCh, and with nobody
	// left to receive it would never observe cancellation and would hang
	// forever, along with workers.Wait().
	go func() {
		defer workers.Done()
		defer close(detectedCh)
		defer func() {
			for range frameCh {
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				detectorErr = fmt.Errorf("pipeline: detector thread panicked: %v", r)
				cancelled.Store(true)
			}
		}()
		for fr := range frameCh {
			if cancelled.Load() {
				return
			}
			if fr.err != nil {
				detectorErr = fr.err
				detectedCh <- detectedResult{err: fr.err}
				return
			}
			regions, err := e.Detector.Detect(fr.frame)
			if err != nil {
				detectorErr = fmt.Errorf("pipeline: detect frame %d: %w", fr.frame.Index, err)
				detectedCh <- detectedResult{err: detectorErr}
				return
			}
			regions = region.Filter(regions, e.Config.BlurIDs, e.Config.ExcludeIDs)
			detectedCh <- detectedResult{frame: fr.frame, regions: regions}
		}
	}()

	// Writer actor.
	go func() {
		defer workers.Done()
		defer func() {
			if r := recover(); r != nil {
				writerErr = fmt.Errorf("pipeline: writer thread panicked: %v", r)
				cancelled.Store(true)
				for range writeCh {
				}
			}
		}()
		for fr := range writeCh {
			if err := e.Writer.Write(fr); err != nil {
				writerErr = fmt.Errorf("pipeline: write frame %d: %w", fr.Index, err)
				cancelled.Store(true)
				for range writeCh {
				}
				return
			}
		}
	}()

	// Main thread: merge + blur, in strict FIFO order.
	var buffer []detectedResult
	var mainErr error
	done, total := 0, meta.TotalFrames

	flushOldest := func() {
		defer func() {
			if r := recover(); r != nil {
				mainErr = fmt.Errorf("pipeline: main thread panicked: %v", r)
				cancelled.Store(true)
			}
		}()
		front := buffer[0]
		buffer = buffer[1:]
		lookaheadRegions := make([][]region.Region, 0, len(buffer))
		for _, t := range buffer {
			lookaheadRegions = append(lookaheadRegions, t.regions)
		}
		merged := e.Merger.Merge(front.regions, lookaheadRegions, meta.Width, meta.Height)
		if err := e.Blurrer.Blur(front.frame, merged); err != nil {
			mainErr = fmt.Errorf("pipeline: blur frame %d: %w", front.frame.Index, err)
			cancelled.Store(true)
			return
		}
		writeCh <- front.frame
		done++
		if e.Config.OnProgress != nil && !e.Config.OnProgress(done, total) {
			cancelled.Store(true)
		}
	}

	for dr := range detectedCh {
		if cancelled.Load() {
			break
		}
		if dr.err != nil {
			mainErr = dr.err
			cancelled.Store(true)
			break
		}
		buffer = append(buffer, dr)
		for len(buffer) > lookahead && !cancelled.Load() {
			flushOldest()
		}
		if cancelled.Load() {
			break
		}
	}
	for len(buffer) > 0 && !cancelled.Load() {
		flushOldest()
	}
	// Drain anything left upstream so the detector/reader goroutines exit.
	for range detectedCh {
	}

	close(writeCh)
	workers.Wait()

	closeErr := e.Writer.Close()

	switch {
	case readerErr != nil:
		return fmt.Errorf("pipeline: reader: %w", readerErr)
	case detectorErr != nil:
		return detectorErr
	case mainErr != nil:
		return mainErr
	case writerErr != nil:
		return writerErr
	case cancelled.Load():
		return ErrCancelled
	case closeErr != nil:
		return fmt.Errorf("pipeline: writer close: %w", closeErr)
	}

	slog.Info("pipeline run complete", "frames_written", done, "total_frames", total)
	return nil
}
