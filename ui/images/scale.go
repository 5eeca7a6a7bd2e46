package images

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// pngEncoder skips zlib work; preview frames are encoded at display rate.
var pngEncoder = png.Encoder{CompressionLevel: png.NoCompression}

// EncodePNG encodes an image to PNG bytes. Errors are ignored and may return an empty slice.
func EncodePNG(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	_ = pngEncoder.Encode(&buf, img)
	return buf.Bytes()
}

// FitSize returns the largest w x h inside maxW x maxH with the aspect ratio
// of srcW x srcH. Sources that already fit keep their size.
func FitSize(srcW, srcH, maxW, maxH int) (int, int) {
	maxW, maxH = max(maxW, 1), max(maxH, 1)
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}
	ratio := min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	w := max(int(float64(srcW)*ratio+0.5), 1)
	h := max(int(float64(srcH)*ratio+0.5), 1)
	return min(w, maxW), min(h, maxH)
}

// ScaleToFit scales src with bilinear filtering so it fits within maxW x maxH
// preserving aspect ratio. If the source already fits, the original is returned.
func ScaleToFit(src image.Image, maxW, maxH int) image.Image {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
