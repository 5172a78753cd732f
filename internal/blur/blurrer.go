package blur

import (
	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/region"
)

// FrameBlurrer mutates a frame in place, blurring the pixels covered by
// regions. Must be callable from a single goroutine; any scratch state is
// owned per-instance, never shared across concurrent calls.
type FrameBlurrer interface {
	Blur(f *frame.Frame, regions []region.Region) error
}

// DefaultKernelSize is the default Gaussian kernel size used by both
// blurrer shapes.
const DefaultKernelSize = 201

// roiRect is a clipped region rectangle in frame pixel coordinates.
type roiRect struct{ x, y, w, h int }

// core holds the kernel state and scratch buffers shared by the
// rectangular and elliptical blurrers; only the final composite step
// differs between the two.
type core struct {
	kernel      []float64
	scale       int
	smallKernel []float64

	roiBuf []byte
	temp   []float32
}

func newCore(kernelSize int) core {
	scale := kernelSize / 50
	if scale < 1 {
		scale = 1
	}
	smallK := (kernelSize / scale) | 1
	return core{
		kernel:      Kernel1D(kernelSize),
		scale:       scale,
		smallKernel: Kernel1D(smallK),
	}
}

// blurROI extracts, blurs (with downscale-optimization for large kernels),
// and returns the blurred ROI bytes, without writing them back.
func (c *core) blurROI(data []byte, frameW, channels int, rect roiRect) []byte {
	roiSize := rect.w * rect.h * channels
	if cap(c.roiBuf) < roiSize {
		c.roiBuf = make([]byte, roiSize)
	}
	roi := c.roiBuf[:roiSize]

	for row := 0; row < rect.h; row++ {
		srcOff := ((rect.y+row)*frameW + rect.x) * channels
		dstOff := row * rect.w * channels
		copy(roi[dstOff:dstOff+rect.w*channels], data[srcOff:srcOff+rect.w*channels])
	}

	if c.scale <= 1 || rect.h < c.scale*2 || rect.w < c.scale*2 {
		SeparableBlur(roi, rect.w, rect.h, channels, c.kernel, &c.temp)
		return roi
	}

	small, sw, sh := Downscale(roi, rect.w, rect.h, channels, c.scale)
	SeparableBlur(small, sw, sh, channels, c.smallKernel, &c.temp)
	upscaled := Upscale(small, sw, sh, channels, rect.w, rect.h)
	copy(roi[:roiSize], upscaled)
	return roi
}

func clipToFrame(r region.Region, frameW, frameH int) roiRect {
	x, y, w, h := r.X, r.Y, r.Width, r.Height
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if x+w > frameW {
		w = frameW - x
	}
	if y+h > frameH {
		h = frameH - y
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return roiRect{x, y, w, h}
}
