package compress

import (
	"context"
	"fmt"
)

const (
	// maxQualityStep caps the descent: even a badly oversized candidate
	// drops quality by at most 0.1 per iteration.
	maxQualityStep = 0.1
	// baseQualityStep is the decrement as the candidate size approaches
	// the budget; larger overshoots scale it up toward maxQualityStep.
	baseQualityStep = 0.025
	// maxSearchIterations bounds the loop. The step never falls below
	// baseQualityStep, so a full 1.0 to 0.1 descent takes at most 36
	// iterations; the cap only matters for degenerate inputs.
	maxSearchIterations = 64
)

// SearchQuality walks quality strictly downward from startQuality
// (conventionally DefaultStartQuality) until an encoding of src fits
// strictly under budget.MaxSizeBytes, re-encoding src at scale 1 on every
// probe. It returns the first fitting result, or ErrExhausted once
// quality would cross the budget's floor.
//
// The decrement adapts to the overshoot: with ratio = budget size over
// candidate size, the next step is min(0.025/ratio, 0.1), so the walk is
// fine-grained near the budget and coarse when far above it. The walk
// never raises quality or revisits a level, which means it can step over
// a quality a bisection would have found. That stays; the asymmetry is
// what keeps the loop short and its memory footprint flat.
func (c *Compressor) SearchQuality(ctx context.Context, src SourceImage, budget CompressionBudget, startQuality float64) (EncodedResult, error) {
	if budget.MaxSizeBytes <= 0 {
		return EncodedResult{}, fmt.Errorf("%w: max size %d", ErrInvalidBudget, budget.MaxSizeBytes)
	}

	minQuality := budget.minQuality()
	quality := startQuality

	for i := 0; i < maxSearchIterations; i++ {
		if quality <= 0 || quality < minQuality {
			return EncodedResult{}, exhaustedError(minQuality, budget.MaxSizeBytes)
		}
		if err := ctx.Err(); err != nil {
			return EncodedResult{}, err
		}

		candidate, err := c.rescaler.Rescale(ctx, src, ScaleSpec{
			Scale:      1,
			Quality:    quality,
			TargetType: src.Type,
		})
		if err != nil {
			return EncodedResult{}, err
		}

		if candidate.Size() < budget.MaxSizeBytes {
			return candidate, nil
		}

		quality -= qualityStep(budget.MaxSizeBytes, candidate.Size())
	}

	return EncodedResult{}, exhaustedError(minQuality, budget.MaxSizeBytes)
}

// qualityStep derives the next decrement from how far size overshoots the
// budget. Callers only reach this with size >= maxSizeBytes, so the ratio
// is at most 1 and the step at least baseQualityStep.
func qualityStep(maxSizeBytes, size int) float64 {
	ratio := float64(maxSizeBytes) / float64(size)
	step := baseQualityStep / ratio
	if step > maxQualityStep {
		step = maxQualityStep
	}
	return step
}

func exhaustedError(minQuality float64, maxSizeBytes int) error {
	return fmt.Errorf("%w: no quality at or above %.2f fits %d bytes",
		ErrExhausted, minQuality, maxSizeBytes)
}
