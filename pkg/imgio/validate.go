package imgio

import (
	"errors"
	"image"
)

var (
	// ErrEmptyInput is returned for zero-length input data.
	ErrEmptyInput = errors.New("image data is empty")
	// ErrInputTooLarge is returned when the raw file exceeds MaxFileBytes.
	ErrInputTooLarge = errors.New("image file exceeds size limit")
	// ErrImageTooLarge is returned when decoded dimensions exceed the
	// decompression bomb limits.
	ErrImageTooLarge = errors.New("image dimensions exceed maximum allowed")
	// ErrInvalidDimensions is returned for images with non-positive
	// dimensions.
	ErrInvalidDimensions = errors.New("invalid image dimensions")
)

// Decode-side limits. Dimension and pixel caps guard against
// decompression bombs: a few KB of input can otherwise expand to
// gigabytes of raster.
const (
	MaxFileBytes   = 20 * 1024 * 1024
	MaxImageWidth  = 20000
	MaxImageHeight = 20000
	MaxImagePixels = 250_000_000
)

// ValidateBytes checks raw input before any decode work happens.
func ValidateBytes(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyInput
	}
	if len(data) > MaxFileBytes {
		return ErrInputTooLarge
	}
	return nil
}

// ValidateImage checks decoded dimensions against the bomb limits.
func ValidateImage(img image.Image) error {
	if img == nil {
		return ErrInvalidDimensions
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return ErrInvalidDimensions
	}
	if width > MaxImageWidth || height > MaxImageHeight {
		return ErrImageTooLarge
	}
	if int64(width)*int64(height) > MaxImagePixels {
		return ErrImageTooLarge
	}
	return nil
}

// ValidSize reports whether data fits strictly under maxSize bytes. An
// output exactly at the limit does not fit.
func ValidSize(data []byte, maxSize int) bool {
	return len(data) < maxSize
}
