package pipeline

import (
	"fmt"
	"sort"

	"github.com/faceanon/engine/internal/detect"
	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/media"
	"github.com/faceanon/engine/internal/region"
)

// PreviewThumbnailSize is the bilinear-resized output size for every
// preview crop, per §4.J.
const PreviewThumbnailSize = 256

// PreviewResult is the output of Preview: the largest-area square crop per
// track ID, plus the detection cache the blur pass can replay via
// detect.NewCachedDetector.
type PreviewResult struct {
	Crops          map[uint32]*frame.Frame
	DetectionCache detect.Cache
}

type previewBest struct {
	crop *frame.Frame
	area int
}

// Preview scans every frame of reader with detector, keeps the
// largest-area square crop per track ID, and writes each crop (resized to
// PreviewThumbnailSize×PreviewThumbnailSize) to outDir/<track_id>.jpg via
// imgWriter. onProgress returning false cancels the scan.
func Preview(reader media.Reader, detector detect.FaceDetector, imgWriter media.ImageWriter, outDir string, onProgress func(done, total int) bool) (*PreviewResult, error) {
	meta := reader.Metadata()
	best := make(map[uint32]previewBest)
	cache := make(detect.Cache)

	done, total := 0, meta.TotalFrames
	for fr := range reader.Frames() {
		if fr.Err != nil {
			return nil, fmt.Errorf("pipeline: preview: %w", fr.Err)
		}
		regions, err := detector.Detect(fr.Frame)
		if err != nil {
			return nil, fmt.Errorf("pipeline: preview: detect frame %d: %w", fr.Frame.Index, err)
		}
		cache[fr.Frame.Index] = regions

		for _, r := range regions {
			if !r.HasTrackID() {
				continue
			}
			id := *r.TrackID
			side := r.Width
			if r.Height > side {
				side = r.Height
			}
			area := side * side
			if prev, ok := best[id]; ok && prev.area >= area {
				continue
			}
			crop := squareCrop(fr.Frame, r, side)
			best[id] = previewBest{crop: crop, area: area}
		}

		done++
		if onProgress != nil && !onProgress(done, total) {
			_ = reader.Close()
			return nil, ErrCancelled
		}
	}
	if err := reader.Close(); err != nil {
		return nil, fmt.Errorf("pipeline: preview: close reader: %w", err)
	}

	ids := make([]uint32, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	crops := make(map[uint32]*frame.Frame, len(best))
	for _, id := range ids {
		b := best[id]
		crops[id] = b.crop
		path := fmt.Sprintf("%s/%d.jpg", outDir, id)
		size := &media.Size{W: PreviewThumbnailSize, H: PreviewThumbnailSize}
		if err := imgWriter.Write(path, b.crop, size); err != nil {
			return nil, fmt.Errorf("pipeline: preview: write thumbnail %d: %w", id, err)
		}
	}

	return &PreviewResult{Crops: crops, DetectionCache: cache}, nil
}

// squareCrop extracts the side×side square centered on r, clipped to the
// source frame's bounds.
func squareCrop(f *frame.Frame, r region.Region, side int) *frame.Frame {
	cx, cy := r.Center()
	x0 := int(cx) - side/2
	y0 := int(cy) - side/2
	x1 := x0 + side
	y1 := y0 + side

	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > f.Width {
		x1 = f.Width
	}
	if y1 > f.Height {
		y1 = f.Height
	}
	w := x1 - x0
	if w < 0 {
		w = 0
	}
	h := y1 - y0
	if h < 0 {
		h = 0
	}

	data := make([]byte, w*h*f.Channels)
	for row := 0; row < h; row++ {
		srcOff := f.At(x0, y0+row)
		dstOff := row * w * f.Channels
		copy(data[dstOff:dstOff+w*f.Channels], f.Data[srcOff:srcOff+w*f.Channels])
	}
	crop, _ := frame.New(data, w, h, f.Channels, f.Index)
	return crop
}
