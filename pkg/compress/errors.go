package compress

import "errors"

// Failure classes surfaced by the pipeline. Call sites wrap them with %w
// so callers can classify with errors.Is while the original cause stays
// on the chain.
var (
	// ErrDecode means the source bytes could not be decoded as an image.
	ErrDecode = errors.New("image decode failed")

	// ErrEncode means the target format or quality could not be encoded.
	ErrEncode = errors.New("image encode failed")

	// ErrExhausted means the quality search walked down to its floor
	// without producing an output that fits the budget.
	ErrExhausted = errors.New("quality range exhausted without fitting budget")

	// ErrUnsupported means the source media type cannot be compressed by
	// this pipeline at all.
	ErrUnsupported = errors.New("media type not compressible")

	// ErrCompressionFailed wraps pre-pass and search failures raised from
	// Compress so callers see a single failure shape with the cause
	// attached.
	ErrCompressionFailed = errors.New("compression failed")

	// ErrInvalidSpec flags a ScaleSpec with a non-positive scale or
	// quality.
	ErrInvalidSpec = errors.New("invalid scale spec")

	// ErrInvalidBudget flags a CompressionBudget without a positive byte
	// limit.
	ErrInvalidBudget = errors.New("invalid compression budget")
)
