package compress

import "time"

// SourceImage is an in-memory image file: raw bytes plus the metadata the
// pipeline needs to reason about it. The pipeline treats Data as
// immutable; every transformation allocates a new output buffer.
type SourceImage struct {
	Data         []byte
	Type         string // declared media type, e.g. "image/jpeg"
	Name         string
	LastModified time.Time
}

// NewSourceImage wraps data as a source stamped with the current time.
func NewSourceImage(data []byte, mediaType, name string) SourceImage {
	return SourceImage{
		Data:         data,
		Type:         mediaType,
		Name:         name,
		LastModified: time.Now(),
	}
}

// Size returns the byte length of the image file.
func (s SourceImage) Size() int {
	return len(s.Data)
}

// EncodedResult is the output of one encode pass. Data is a fresh buffer;
// ownership transfers to the caller, the pipeline keeps no reference.
type EncodedResult struct {
	Data         []byte
	Type         string
	Name         string
	LastModified time.Time
}

// Size returns the byte length of the encoded output.
func (r EncodedResult) Size() int {
	return len(r.Data)
}

// AsSource re-wraps the result as input for a follow-on pass.
func (r EncodedResult) AsSource() SourceImage {
	return SourceImage{
		Data:         r.Data,
		Type:         r.Type,
		Name:         r.Name,
		LastModified: r.LastModified,
	}
}

// ScaleSpec configures a single rescale pass. Scale and Quality are
// fractions in (0, 1]: values above 1 clamp to 1, values at or below 0
// are rejected with ErrInvalidSpec. Quality only affects lossy target
// formats.
type ScaleSpec struct {
	Scale      float64
	Quality    float64
	TargetType string
}

// CompressionBudget defines the stopping conditions of the quality
// search. MaxSizeBytes is the strict upper bound on output size; a
// MinQuality of zero means DefaultMinQuality.
type CompressionBudget struct {
	MaxSizeBytes int
	MinQuality   float64
}

const (
	// DefaultStartQuality is where the descent begins.
	DefaultStartQuality = 1.0
	// DefaultMinQuality is the quality floor the search will not cross.
	DefaultMinQuality = 0.1
)

// minQuality returns the effective floor, applying the default.
func (b CompressionBudget) minQuality() float64 {
	if b.MinQuality <= 0 {
		return DefaultMinQuality
	}
	return b.MinQuality
}
