// Package compress shrinks images to fit a byte budget. The pipeline is a
// single dimensional pre-pass followed, when needed, by an adaptive
// quality descent; it never touches the filesystem and never mutates its
// inputs.
package compress

import (
	"context"
	"fmt"
)

// prePassScale is the unconditional dimensional pre-pass Compress applies
// before any quality descent.
const prePassScale = 0.9

// DefaultNonCompressible lists media types the pipeline refuses to
// shrink: container formats whose size does not respond to raster
// re-encoding.
func DefaultNonCompressible() []string {
	return []string{"application/pdf"}
}

// Options configure a Compressor.
type Options struct {
	// NonCompressible is the set of media types Compress rejects when
	// they arrive over budget. Nil means DefaultNonCompressible; an
	// explicit empty slice disables the gate.
	NonCompressible []string
}

// Compressor drives the full pipeline. It is safe for concurrent use as
// long as its Codec is.
type Compressor struct {
	rescaler        *Rescaler
	nonCompressible map[string]struct{}
}

// New builds a Compressor on top of codec.
func New(codec Codec, opts Options) *Compressor {
	types := opts.NonCompressible
	if types == nil {
		types = DefaultNonCompressible()
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return &Compressor{
		rescaler:        NewRescaler(codec),
		nonCompressible: set,
	}
}

// Compress re-encodes src to fit strictly under maxSizeBytes.
//
// A source whose media type is in the non-compressible set and whose size
// already exceeds the budget fails immediately with ErrUnsupported. Every
// other source goes through a 0.9 dimensional pre-pass at full quality,
// even when it is already under budget, so callers always receive a fresh
// encode in the source's own format. If the pre-pass output still
// overshoots, the quality search takes over from there. Pre-pass and
// search failures come back wrapped in ErrCompressionFailed with the
// cause preserved on the chain.
func (c *Compressor) Compress(ctx context.Context, src SourceImage, maxSizeBytes int) (EncodedResult, error) {
	if maxSizeBytes <= 0 {
		return EncodedResult{}, fmt.Errorf("%w: max size %d", ErrInvalidBudget, maxSizeBytes)
	}

	if _, ok := c.nonCompressible[src.Type]; ok && src.Size() > maxSizeBytes {
		return EncodedResult{}, fmt.Errorf("%w: %s at %d bytes exceeds budget of %d",
			ErrUnsupported, src.Type, src.Size(), maxSizeBytes)
	}

	prePass, err := c.rescaler.Rescale(ctx, src, ScaleSpec{
		Scale:      prePassScale,
		Quality:    1,
		TargetType: src.Type,
	})
	if err != nil {
		return EncodedResult{}, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}
	if prePass.Size() < maxSizeBytes {
		return prePass, nil
	}

	budget := CompressionBudget{MaxSizeBytes: maxSizeBytes, MinQuality: DefaultMinQuality}
	result, err := c.SearchQuality(ctx, prePass.AsSource(), budget, DefaultStartQuality)
	if err != nil {
		return EncodedResult{}, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}
	return result, nil
}
