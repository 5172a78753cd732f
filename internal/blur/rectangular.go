package blur

import (
	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/region"
)

// Rectangular blurs the entire rectangular ROI for each region and copies
// it straight back.
type Rectangular struct {
	c core
}

// NewRectangular creates a rectangular Gaussian blurrer with the given
// kernel size.
func NewRectangular(kernelSize int) *Rectangular {
	return &Rectangular{c: newCore(kernelSize)}
}

// NewDefaultRectangular creates a rectangular blurrer with DefaultKernelSize.
func NewDefaultRectangular() *Rectangular { return NewRectangular(DefaultKernelSize) }

// Blur implements FrameBlurrer.
func (b *Rectangular) Blur(f *frame.Frame, regions []region.Region) error {
	for _, r := range regions {
		rect := clipToFrame(r, f.Width, f.Height)
		if rect.w == 0 || rect.h == 0 {
			continue
		}
		blurred := b.c.blurROI(f.Data, f.Width, f.Channels, rect)
		writeROIBack(f.Data, f.Width, f.Channels, rect, blurred)
	}
	return nil
}

func writeROIBack(data []byte, frameW, channels int, rect roiRect, roi []byte) {
	for row := 0; row < rect.h; row++ {
		dstOff := ((rect.y+row)*frameW + rect.x) * channels
		srcOff := row * rect.w * channels
		copy(data[dstOff:dstOff+rect.w*channels], roi[srcOff:srcOff+rect.w*channels])
	}
}
