package images

import (
	"image"

	"golang.org/x/image/draw"
)

// Resize scales img to exactly width x height with Catmull-Rom resampling.
// Aspect ratio is not preserved. Non-positive dimensions return img unchanged.
func Resize(img image.Image, width, height int) image.Image {
	if width <= 0 || height <= 0 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// fit returns the largest dimensions within limit x limit that keep the aspect of b.
func fit(b image.Rectangle, limit int) (int, int) {
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return w, h
	}
	if w > h {
		return limit, max(h*limit/w, 1)
	}
	return max(w*limit/h, 1), limit
}
