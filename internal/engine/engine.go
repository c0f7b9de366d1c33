// Package engine wires the codec, the compression pipeline and the worker
// pool into the single entry point request handlers submit work to.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imgfit/imgfit/internal/config"
	"github.com/imgfit/imgfit/pkg/compress"
	"github.com/imgfit/imgfit/pkg/imgio"
	"github.com/imgfit/imgfit/pkg/metrics"
)

// submitRetries is how often a busy queue is retried before giving up.
const submitRetries = 3

// Engine owns the compressor and its worker pool.
type Engine struct {
	compressor *compress.Compressor
	pool       *workerPool
	log        *logrus.Logger
	defaultMax int
}

// New assembles an Engine from configuration. Call Start before
// submitting work and Stop on shutdown.
func New(cfg *config.Config, log *logrus.Logger) *Engine {
	e := &Engine{
		compressor: compress.New(imgio.New(), compress.Options{
			NonCompressible: cfg.Compress.NonCompressible,
		}),
		log:        log,
		defaultMax: cfg.Compress.DefaultMaxSizeBytes,
	}
	e.pool = newWorkerPool(cfg.Limits.WorkerCount, e.compressOnce)
	return e
}

// Start launches the worker pool.
func (e *Engine) Start() {
	e.pool.start()
}

// Stop drains the worker pool. In-flight jobs finish first.
func (e *Engine) Stop() {
	e.pool.stop()
}

// DefaultMaxSizeBytes returns the configured default budget.
func (e *Engine) DefaultMaxSizeBytes() int {
	return e.defaultMax
}

// Compress sniffs data's media type and compresses it to fit under
// maxSizeBytes through the worker pool. A non-positive maxSizeBytes means
// the configured default. A queue that stays saturated through the retry
// backoff returns ErrPoolBusy.
func (e *Engine) Compress(ctx context.Context, data []byte, name string, maxSizeBytes int) (compress.EncodedResult, error) {
	if maxSizeBytes <= 0 {
		maxSizeBytes = e.defaultMax
	}
	req := request{data: data, name: name, maxSizeBytes: maxSizeBytes}
	return e.pool.submitWithRetry(ctx, req, submitRetries)
}

// compressOnce is the worker body: one full pipeline run plus metrics and
// logging.
func (e *Engine) compressOnce(req request) (compress.EncodedResult, error) {
	ctx := req.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	mediaType := imgio.DetectMediaType(req.data)
	src := compress.NewSourceImage(req.data, mediaType, req.name)

	result, err := e.compressor.Compress(ctx, src, req.maxSizeBytes)
	duration := time.Since(start)

	status := compressionStatus(err)
	metrics.RecordCompression(status, mediaType, duration.Seconds(), src.Size(), result.Size())

	fields := logrus.Fields{
		"name":        req.name,
		"media_type":  mediaType,
		"input_bytes": src.Size(),
		"budget":      req.maxSizeBytes,
		"duration_ms": duration.Milliseconds(),
		"status":      status,
	}
	if err != nil {
		e.log.WithFields(fields).WithError(err).Warn("compression failed")
		return compress.EncodedResult{}, err
	}

	fields["output_bytes"] = result.Size()
	e.log.WithFields(fields).Info("compression finished")
	return result, nil
}

// compressionStatus buckets pipeline outcomes for metrics.
func compressionStatus(err error) string {
	switch {
	case err == nil:
		return "fitted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, compress.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, compress.ErrExhausted):
		return "exhausted"
	default:
		return "error"
	}
}
