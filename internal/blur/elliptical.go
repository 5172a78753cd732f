package blur

import (
	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/region"
)

// Elliptical blurs each region's rectangular ROI, then composites back only
// the pixels that fall inside the region's edge-aware ellipse mask.
type Elliptical struct {
	c core
}

// NewElliptical creates an elliptical Gaussian blurrer with the given
// kernel size.
func NewElliptical(kernelSize int) *Elliptical {
	return &Elliptical{c: newCore(kernelSize)}
}

// NewDefaultElliptical creates an elliptical blurrer with DefaultKernelSize.
func NewDefaultElliptical() *Elliptical { return NewElliptical(DefaultKernelSize) }

// Blur implements FrameBlurrer.
func (b *Elliptical) Blur(f *frame.Frame, regions []region.Region) error {
	for _, r := range regions {
		rect := clipToFrame(r, f.Width, f.Height)
		if rect.w == 0 || rect.h == 0 {
			continue
		}
		blurred := b.c.blurROI(f.Data, f.Width, f.Channels, rect)
		compositeEllipse(f.Data, f.Width, f.Channels, rect, r, blurred)
	}
	return nil
}

// compositeEllipse writes back only the blurred pixels that fall inside
// the region's ellipse mask, per §4.A: a pixel at ROI-relative (col, row)
// is inside iff (col-cx)^2/a^2 + (row-cy)^2/b^2 <= 1.
func compositeEllipse(data []byte, frameW, channels int, rect roiRect, r region.Region, roi []byte) {
	cx, cy := r.EllipseCenterInROI()
	a, b := r.EllipseAxes()
	if a <= 0 || b <= 0 {
		return
	}
	invASq := 1 / (a * a)
	invBSq := 1 / (b * b)

	for row := 0; row < rect.h; row++ {
		dy := float64(row) - cy
		dySq := dy * dy * invBSq
		for col := 0; col < rect.w; col++ {
			dx := float64(col) - cx
			if dx*dx*invASq+dySq > 1 {
				continue
			}
			frameOff := ((rect.y+row)*frameW + (rect.x + col)) * channels
			roiOff := (row*rect.w + col) * channels
			copy(data[frameOff:frameOff+channels], roi[roiOff:roiOff+channels])
		}
	}
}
