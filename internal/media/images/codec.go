package images

import (
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"io"
	"os"

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// DecodeFile decodes an image file in any registered format.
// Returns the raster and the detected format name.
func DecodeFile(path string) (image.Image, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	return DecodeReader(file)
}

// DecodeReader decodes an image stream in any registered format.
func DecodeReader(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// EncodeJPEG writes img to w as JPEG. Out-of-range qualities fall back to DefaultQuality.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}
