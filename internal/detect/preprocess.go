package detect

import "github.com/faceanon/engine/internal/frame"

// detectionMean/detectionStd are the RetinaFace det_10g per-channel
// normalization statistics (RGB order, applied as (pixel-mean)/std).
var detectionMean = [3]float32{127.5, 127.5, 127.5}
var detectionStd = [3]float32{128.0, 128.0, 128.0}

// preprocessForDetection resizes f to (inputW, inputH) with nearest-neighbor
// sampling and converts it to normalized CHW float32, the layout the ONNX
// session expects.
func preprocessForDetection(f *frame.Frame, inputW, inputH int) []float32 {
	resized := resizeNearest(f, inputW, inputH)
	return imageToFloat32CHW(resized, inputW, inputH, detectionMean, detectionStd)
}

// resizeNearest performs nearest-neighbor resampling of an RGB frame buffer
// to (dstW, dstH), returning a new tightly packed RGB buffer.
func resizeNearest(f *frame.Frame, dstW, dstH int) []byte {
	out := make([]byte, dstW*dstH*3)
	xRatio := float64(f.Width) / float64(dstW)
	yRatio := float64(f.Height) / float64(dstH)
	for y := 0; y < dstH; y++ {
		srcY := int(float64(y) * yRatio)
		if srcY >= f.Height {
			srcY = f.Height - 1
		}
		for x := 0; x < dstW; x++ {
			srcX := int(float64(x) * xRatio)
			if srcX >= f.Width {
				srcX = f.Width - 1
			}
			srcOff := f.At(srcX, srcY)
			dstOff := (y*dstW + x) * 3
			out[dstOff] = f.Data[srcOff]
			out[dstOff+1] = f.Data[srcOff+1]
			out[dstOff+2] = f.Data[srcOff+2]
		}
	}
	return out
}

// imageToFloat32CHW converts a packed RGB byte buffer into normalized CHW
// float32 (plane-major: all R, then all G, then all B).
func imageToFloat32CHW(rgb []byte, w, h int, mean, std [3]float32) []float32 {
	out := make([]float32, 3*w*h)
	plane := w * h
	for i := 0; i < plane; i++ {
		r := float32(rgb[i*3])
		g := float32(rgb[i*3+1])
		b := float32(rgb[i*3+2])
		out[i] = (r - mean[0]) / std[0]
		out[plane+i] = (g - mean[1]) / std[1]
		out[2*plane+i] = (b - mean[2]) / std[2]
	}
	return out
}
