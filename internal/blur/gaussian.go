// Package blur implements the separable Gaussian blur shared by the
// rectangular and elliptical frame blurrers: kernel construction,
// downscale-blur-upscale for large kernels, and the two composite modes.
package blur

import "math"

// Kernel1D builds a normalized 1-D Gaussian kernel of odd size k, with
// sigma = k/6.
func Kernel1D(k int) []float64 {
	sigma := float64(k) / 6.0
	kernel := make([]float64, k)
	center := k / 2
	var sum float64
	for i := 0; i < k; i++ {
		x := float64(i - center)
		v := gaussianWeight(x, sigma)
		kernel[i] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func gaussianWeight(x, sigma float64) float64 {
	if sigma == 0 {
		if x == 0 {
			return 1
		}
		return 0
	}
	return math.Exp(-(x * x) / (2 * sigma * sigma))
}

// SeparableBlur blurs an (rw, rh, channels) ROI in place using kernel,
// reusing temp as float scratch space. The horizontal pass samples along x
// with indices clamped to [0, rw-1]; the vertical pass samples along y
// clamped to [0, rh-1] and writes rounded, clamped byte output.
func SeparableBlur(roi []byte, rw, rh, channels int, kernel []float64, temp *[]float32) {
	k := len(kernel)
	half := k / 2

	neededTemp := rw * rh * channels
	if cap(*temp) < neededTemp {
		*temp = make([]float32, neededTemp)
	}
	scratch := (*temp)[:neededTemp]

	// Horizontal pass: roi -> scratch (float).
	for y := 0; y < rh; y++ {
		for x := 0; x < rw; x++ {
			for c := 0; c < channels; c++ {
				var sum float64
				for i := 0; i < k; i++ {
					sx := x + i - half
					if sx < 0 {
						sx = 0
					} else if sx >= rw {
						sx = rw - 1
					}
					sum += float64(roi[(y*rw+sx)*channels+c]) * kernel[i]
				}
				scratch[(y*rw+x)*channels+c] = float32(sum)
			}
		}
	}

	// Vertical pass: scratch -> roi (byte, rounded and clamped).
	for y := 0; y < rh; y++ {
		for x := 0; x < rw; x++ {
			for c := 0; c < channels; c++ {
				var sum float64
				for i := 0; i < k; i++ {
					sy := y + i - half
					if sy < 0 {
						sy = 0
					} else if sy >= rh {
						sy = rh - 1
					}
					sum += float64(scratch[(sy*rw+x)*channels+c]) * kernel[i]
				}
				roi[(y*rw+x)*channels+c] = clampByte(sum)
			}
		}
	}
}

func clampByte(v float64) byte {
	r := v + 0.5 // round
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return byte(r)
}

// Downscale box-averages an (srcW, srcH, channels) buffer by an integer
// scale factor, returning the downscaled buffer and its dimensions.
func Downscale(src []byte, srcW, srcH, channels, scale int) (dst []byte, dstW, dstH int) {
	dstW = srcW / scale
	dstH = srcH / scale
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}
	dst = make([]byte, dstW*dstH*channels)

	for dy := 0; dy < dstH; dy++ {
		for dx := 0; dx < dstW; dx++ {
			for c := 0; c < channels; c++ {
				var sum int
				count := 0
				for sy := dy * scale; sy < (dy+1)*scale && sy < srcH; sy++ {
					for sx := dx * scale; sx < (dx+1)*scale && sx < srcW; sx++ {
						sum += int(src[(sy*srcW+sx)*channels+c])
						count++
					}
				}
				if count == 0 {
					count = 1
				}
				dst[(dy*dstW+dx)*channels+c] = byte((sum + count/2) / count)
			}
		}
	}
	return dst, dstW, dstH
}

// Upscale bilinearly resizes an (srcW, srcH, channels) buffer to
// (dstW, dstH).
func Upscale(src []byte, srcW, srcH, channels, dstW, dstH int) []byte {
	dst := make([]byte, dstW*dstH*channels)

	xScale := float64(srcW-1) / float64(maxInt(dstW-1, 1))
	yScale := float64(srcH-1) / float64(maxInt(dstH-1, 1))

	for dy := 0; dy < dstH; dy++ {
		sy := float64(dy) * yScale
		y0 := int(sy)
		y1 := minInt(y0+1, srcH-1)
		fy := sy - float64(y0)

		for dx := 0; dx < dstW; dx++ {
			sx := float64(dx) * xScale
			x0 := int(sx)
			x1 := minInt(x0+1, srcW-1)
			fx := sx - float64(x0)

			for c := 0; c < channels; c++ {
				v00 := float64(src[(y0*srcW+x0)*channels+c])
				v01 := float64(src[(y0*srcW+x1)*channels+c])
				v10 := float64(src[(y1*srcW+x0)*channels+c])
				v11 := float64(src[(y1*srcW+x1)*channels+c])

				top := v00*(1-fx) + v01*fx
				bottom := v10*(1-fx) + v11*fx
				v := top*(1-fy) + bottom*fy

				dst[(dy*dstW+dx)*channels+c] = clampByte(v)
			}
		}
	}
	return dst
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
