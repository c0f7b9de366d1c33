package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/imgfit/imgfit/pkg/compress"
)

// TestPoolSubmit tests a job round trips through a worker
func TestPoolSubmit(t *testing.T) {
	var seen atomic.Value
	pool := newWorkerPool(2, func(req request) (compress.EncodedResult, error) {
		seen.Store(req)
		return compress.EncodedResult{Data: req.data, Name: req.name}, nil
	})
	defer pool.stop()

	req := request{data: []byte("payload"), name: "cat.jpg", maxSizeBytes: 1000}
	result, err := pool.submit(context.Background(), req)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if string(result.Data) != "payload" || result.Name != "cat.jpg" {
		t.Errorf("Result does not echo the request: %+v", result)
	}

	got := seen.Load().(request)
	if got.maxSizeBytes != 1000 {
		t.Errorf("Worker saw maxSizeBytes %d, want 1000", got.maxSizeBytes)
	}
	if got.ctx == nil {
		t.Error("Worker saw a nil context")
	}
}

// TestPoolBusy tests a full queue fails fast instead of blocking
func TestPoolBusy(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	pool := newWorkerPool(1, func(req request) (compress.EncodedResult, error) {
		started <- struct{}{}
		<-release
		return compress.EncodedResult{}, nil
	})
	pool.start()
	defer func() {
		close(release)
		pool.stop()
	}()

	// Occupy the single worker, then fill the two queue slots.
	pool.jobs <- request{}
	<-started
	pool.jobs <- request{}
	pool.jobs <- request{}

	_, err := pool.submit(context.Background(), request{})
	if !errors.Is(err, ErrPoolBusy) {
		t.Fatalf("Expected ErrPoolBusy, got %v", err)
	}
}

// TestSubmitWithRetryExhausted tests retries on a queue that stays full
func TestSubmitWithRetryExhausted(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	pool := newWorkerPool(1, func(req request) (compress.EncodedResult, error) {
		started <- struct{}{}
		<-release
		return compress.EncodedResult{}, nil
	})
	pool.start()
	defer func() {
		close(release)
		pool.stop()
	}()

	pool.jobs <- request{}
	<-started
	pool.jobs <- request{}
	pool.jobs <- request{}

	_, err := pool.submitWithRetry(context.Background(), request{}, 2)
	if !errors.Is(err, ErrPoolBusy) {
		t.Fatalf("Expected ErrPoolBusy after retries, got %v", err)
	}
}

// TestSubmitWithRetryRecovers tests a retry lands once the queue drains
func TestSubmitWithRetryRecovers(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	pool := newWorkerPool(1, func(req request) (compress.EncodedResult, error) {
		select {
		case <-release:
			return compress.EncodedResult{}, nil
		default:
		}
		started <- struct{}{}
		<-release
		return compress.EncodedResult{}, nil
	})
	pool.start()
	defer pool.stop()

	pool.jobs <- request{}
	<-started
	pool.jobs <- request{}
	pool.jobs <- request{}

	// Unblock everything while the first retry is backing off.
	time.AfterFunc(5*time.Millisecond, func() { close(release) })

	_, err := pool.submitWithRetry(context.Background(), request{}, 3)
	if err != nil {
		t.Fatalf("Expected retry to land after the queue drained, got %v", err)
	}
}

// TestSubmitContextCanceled tests the submitter stops waiting when its
// context expires
func TestSubmitContextCanceled(t *testing.T) {
	release := make(chan struct{})
	pool := newWorkerPool(1, func(req request) (compress.EncodedResult, error) {
		<-release
		return compress.EncodedResult{}, nil
	})
	defer func() {
		close(release)
		pool.stop()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := pool.submit(ctx, request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected DeadlineExceeded, got %v", err)
	}
}

// TestPoolStopDrains tests stop waits for queued work to finish
func TestPoolStopDrains(t *testing.T) {
	var processed atomic.Int64
	pool := newWorkerPool(2, func(req request) (compress.EncodedResult, error) {
		processed.Add(1)
		return compress.EncodedResult{}, nil
	})

	// Queue up work before any worker is running, then start and
	// immediately stop. Everything queued must still run.
	for i := 0; i < 4; i++ {
		pool.jobs <- request{}
	}
	pool.start()
	pool.stop()

	if got := processed.Load(); got != 4 {
		t.Errorf("Processed %d jobs, want 4", got)
	}
}

// TestPoolErrorPropagates tests worker errors reach the submitter
func TestPoolErrorPropagates(t *testing.T) {
	wantErr := errors.New("pipeline exploded")
	pool := newWorkerPool(1, func(req request) (compress.EncodedResult, error) {
		return compress.EncodedResult{}, wantErr
	})
	defer pool.stop()

	_, err := pool.submit(context.Background(), request{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected the worker error, got %v", err)
	}
}
