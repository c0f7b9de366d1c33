package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/imgfit/imgfit/pkg/compress"
	"github.com/imgfit/imgfit/pkg/metrics"
)

// ErrPoolBusy is returned when the worker queue is full.
var ErrPoolBusy = errors.New("compression queue is full, retry later")

// request is one unit of compression work.
type request struct {
	ctx          context.Context
	data         []byte
	name         string
	maxSizeBytes int
	result       chan<- outcome
}

type outcome struct {
	result compress.EncodedResult
	err    error
}

// workerFunc runs one compression. Injected so pool behavior can be
// tested without the real pipeline.
type workerFunc func(req request) (compress.EncodedResult, error)

// workerPool fans compression requests out to a fixed set of workers
// behind a bounded queue. A full queue fails fast with ErrPoolBusy
// instead of letting requests pile up.
type workerPool struct {
	jobs    chan request
	workers int
	run     workerFunc
	active  atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
}

func newWorkerPool(workers int, run workerFunc) *workerPool {
	return &workerPool{
		jobs:    make(chan request, workers*2),
		workers: workers,
		run:     run,
	}
}

// start launches the workers. Safe to call more than once.
func (p *workerPool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for req := range p.jobs {
		p.active.Add(1)
		metrics.UpdateWorkerPoolMetrics(len(p.jobs), int(p.active.Load()))

		result, err := p.run(req)

		p.active.Add(-1)
		metrics.UpdateWorkerPoolMetrics(len(p.jobs), int(p.active.Load()))

		// Buffered channel; the submitter may have given up already.
		select {
		case req.result <- outcome{result: result, err: err}:
		default:
		}
	}
}

// submit places req on the queue and waits for its outcome. It returns
// ErrPoolBusy immediately when the queue is full and honors ctx while
// waiting for a worker to finish.
func (p *workerPool) submit(ctx context.Context, req request) (compress.EncodedResult, error) {
	p.start()

	resultChan := make(chan outcome, 1)
	req.ctx = ctx
	req.result = resultChan

	select {
	case <-ctx.Done():
		return compress.EncodedResult{}, ctx.Err()
	case p.jobs <- req:
	default:
		return compress.EncodedResult{}, ErrPoolBusy
	}

	select {
	case <-ctx.Done():
		return compress.EncodedResult{}, ctx.Err()
	case out := <-resultChan:
		return out.result, out.err
	}
}

// submitWithRetry retries busy submissions with linear backoff so short
// load spikes do not surface as errors.
func (p *workerPool) submitWithRetry(ctx context.Context, req request, maxRetries int) (compress.EncodedResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		result, err := p.submit(ctx, req)
		if err == nil || !errors.Is(err, ErrPoolBusy) {
			return result, err
		}
		lastErr = err

		backoff := time.Duration(attempt+1) * 10 * time.Millisecond
		select {
		case <-ctx.Done():
			return compress.EncodedResult{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return compress.EncodedResult{}, lastErr
}

// stop closes the queue and waits for in-flight work to drain.
func (p *workerPool) stop() {
	close(p.jobs)
	p.wg.Wait()
}
