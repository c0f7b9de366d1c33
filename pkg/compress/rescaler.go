package compress

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"
)

// Codec is the narrow image I/O contract the pipeline depends on: decode
// bytes into a raster, then render and encode a raster at a target size,
// format and quality. pkg/imgio provides the production implementation.
// Implementations must be safe for concurrent use.
type Codec interface {
	Decode(data []byte) (image.Image, error)
	Encode(img image.Image, width, height int, mediaType string, quality float64) ([]byte, error)
}

// Rescaler re-renders an image at a fractional scale and re-encodes it.
type Rescaler struct {
	codec Codec
}

// NewRescaler returns a Rescaler backed by codec.
func NewRescaler(codec Codec) *Rescaler {
	return &Rescaler{codec: codec}
}

// Rescale decodes src, renders it at round(dimension * spec.Scale) with a
// 1 px floor per axis, and encodes the result as spec.TargetType with
// spec.Quality as the lossy quality hint. src is never modified; a scale
// of 1 preserves the pixel dimensions exactly and still re-encodes.
func (r *Rescaler) Rescale(ctx context.Context, src SourceImage, spec ScaleSpec) (EncodedResult, error) {
	if err := ctx.Err(); err != nil {
		return EncodedResult{}, err
	}

	spec, err := spec.normalize()
	if err != nil {
		return EncodedResult{}, err
	}

	img, err := r.codec.Decode(src.Data)
	if err != nil {
		return EncodedResult{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	width, height := scaledDimensions(img.Bounds(), spec.Scale)

	data, err := r.codec.Encode(img, width, height, spec.TargetType, spec.Quality)
	if err != nil {
		return EncodedResult{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	return EncodedResult{
		Data:         data,
		Type:         spec.TargetType,
		Name:         src.Name,
		LastModified: time.Now(),
	}, nil
}

// normalize applies the clamp policy: fractions above 1 clamp to 1,
// non-positive fractions are caller bugs and rejected.
func (s ScaleSpec) normalize() (ScaleSpec, error) {
	if s.Scale <= 0 || s.Quality <= 0 {
		return s, fmt.Errorf("%w: scale=%v quality=%v", ErrInvalidSpec, s.Scale, s.Quality)
	}
	if s.Scale > 1 {
		s.Scale = 1
	}
	if s.Quality > 1 {
		s.Quality = 1
	}
	return s, nil
}

// scaledDimensions rounds the source dimensions by scale, flooring each
// axis at 1 px so extreme downscales stay encodable.
func scaledDimensions(bounds image.Rectangle, scale float64) (width, height int) {
	width = int(math.Round(float64(bounds.Dx()) * scale))
	height = int(math.Round(float64(bounds.Dy()) * scale))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}
