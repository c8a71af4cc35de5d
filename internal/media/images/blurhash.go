package images

import (
	"fmt"
	"image"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
)

// blurHashSize bounds the raster fed to the encoder. A small input gives
// nearly identical hashes in a fraction of the time.
const blurHashSize = 64

// ComputeBlurHash generates a BlurHash placeholder from a raster.
// Uses 4x3 components, which yields a 20-30 character string.
func ComputeBlurHash(img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", fmt.Errorf("empty image")
	}

	w, h := fit(img.Bounds(), blurHashSize)
	src := img
	if w != img.Bounds().Dx() || h != img.Bounds().Dy() {
		small := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)
		src = small
	}

	hash, err := blurhash.Encode(4, 3, src)
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}
