package validate

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// DecodeCoverSize decodes an image and returns its dimensions.
func DecodeCoverSize(r io.Reader) (image.Point, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return image.Point{}, fmt.Errorf("decode image: %w", err)
	}
	return img.Bounds().Size(), nil
}

// CoverSize returns the dimensions of the image at path. EXIF orientation
// is applied, so a rotated photo reports its displayed size.
func CoverSize(path string) (image.Point, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return image.Point{}, fmt.Errorf("open cover %s: %w", path, err)
	}
	return img.Bounds().Size(), nil
}

// CoverWarning returns a warning when the cover is shorter than minHeight,
// or an empty string.
func CoverWarning(size image.Point, minHeight int) string {
	if minHeight <= 0 || size.Y >= minHeight {
		return ""
	}
	return fmt.Sprintf("cover is %dx%d, retailers expect at least %dpx in height", size.X, size.Y, minHeight)
}
