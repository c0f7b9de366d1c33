package imgio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/adrium/goheif"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	xwebp "golang.org/x/image/webp"
)

var (
	// ErrUnknownFormat is returned when the input bytes match no
	// supported decoder.
	ErrUnknownFormat = errors.New("unsupported or unrecognized image format")
	// ErrUnsupportedTarget is returned when the requested output media
	// type has no encoder.
	ErrUnsupportedTarget = errors.New("unsupported target media type")
)

// Codec decodes raster images from raw bytes and renders them back at a
// target size, format and quality. It is stateless and safe for
// concurrent use.
type Codec struct{}

// New returns a ready-to-use Codec. The zero value works too.
func New() *Codec {
	return &Codec{}
}

// Decode turns raw bytes into a raster image. The decoder is chosen by
// sniffing the bytes, never by trusting a declared type. JPEG inputs
// additionally get their EXIF orientation folded into the pixels.
func (c *Codec) Decode(data []byte) (image.Image, error) {
	if err := ValidateBytes(data); err != nil {
		return nil, err
	}

	mediaType := DetectMediaType(data)

	var (
		img image.Image
		err error
	)
	switch mediaType {
	case MediaTypeHEIC, MediaTypeHEIF:
		img, err = goheif.Decode(bytes.NewReader(data))
	case MediaTypeWebP:
		img, err = xwebp.Decode(bytes.NewReader(data))
	case MediaTypeJPEG, MediaTypePNG, MediaTypeGIF, MediaTypeBMP, MediaTypeTIFF:
		img, err = imaging.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, mediaType)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mediaType, err)
	}

	if err := ValidateImage(img); err != nil {
		return nil, err
	}

	if mediaType == MediaTypeJPEG {
		img = orient(data, img)
	}
	return img, nil
}

// Encode renders img at width x height and encodes it as mediaType.
// quality is a fraction in (0, 1] mapped onto the encoder's 1-100 scale;
// lossless formats ignore it. Dimensions below 1 are raised to 1. The
// returned slice is freshly allocated and owned by the caller.
func (c *Codec) Encode(img image.Image, width, height int, mediaType string, quality float64) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidDimensions)
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	bounds := img.Bounds()
	if width != bounds.Dx() || height != bounds.Dy() {
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}

	buf := getBuffer(estimateEncodedSize(width, height))
	defer putBuffer(buf)

	var err error
	switch mediaType {
	case MediaTypeJPEG:
		err = imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(qualityScale(quality)))
	case MediaTypePNG:
		err = imaging.Encode(buf, img, imaging.PNG)
	case MediaTypeGIF:
		err = imaging.Encode(buf, img, imaging.GIF)
	case MediaTypeBMP:
		err = imaging.Encode(buf, img, imaging.BMP)
	case MediaTypeTIFF:
		err = imaging.Encode(buf, img, imaging.TIFF)
	case MediaTypeWebP:
		err = webp.Encode(buf, toRGBA(img), &webp.Options{Quality: float32(qualityScale(quality))})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, mediaType)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", mediaType, err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// qualityScale maps a (0, 1] quality fraction onto the 1-100 integer
// scale shared by the JPEG and WebP encoders.
func qualityScale(quality float64) int {
	scaled := int(math.Round(quality * 100))
	if scaled < 1 {
		scaled = 1
	}
	if scaled > 100 {
		scaled = 100
	}
	return scaled
}

// estimateEncodedSize guesses the output size for buffer pool tiering.
// Half a byte per pixel covers typical mid-quality JPEG output.
func estimateEncodedSize(width, height int) int {
	return width * height / 2
}

// toRGBA converts img for the WebP encoder, which wants premultiplied
// RGBA pixel layout.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}
