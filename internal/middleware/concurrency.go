package middleware

import (
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/imgfit/imgfit/pkg/metrics"
)

// ConcurrencyLimiter caps the number of requests served at once.
type ConcurrencyLimiter struct {
	semaphore chan struct{}
	mu        sync.RWMutex
	active    int
	max       int
}

// NewConcurrencyLimiter creates a limiter allowing max concurrent holders.
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{
		semaphore: make(chan struct{}, max),
		max:       max,
	}
}

// Acquire tries to take a slot. Returns false if the limit is reached.
func (cl *ConcurrencyLimiter) Acquire() bool {
	select {
	case cl.semaphore <- struct{}{}:
		cl.mu.Lock()
		cl.active++
		active := cl.active
		cl.mu.Unlock()
		metrics.UpdateConcurrency(active)
		return true
	default:
		return false
	}
}

// Release returns a slot.
func (cl *ConcurrencyLimiter) Release() {
	<-cl.semaphore
	cl.mu.Lock()
	cl.active--
	active := cl.active
	cl.mu.Unlock()
	metrics.UpdateConcurrency(active)
}

// ConcurrencyLimit returns middleware that sheds load above max
// concurrent requests instead of queueing it.
func ConcurrencyLimit(log *logrus.Logger, max int) func(http.Handler) http.Handler {
	cl := NewConcurrencyLimiter(max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cl.Acquire() {
				log.WithFields(logrus.Fields{
					"limit": max,
					"path":  r.URL.Path,
				}).Warn("concurrency limit reached")
				metrics.RecordConcurrencyLimitExceeded()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"service busy, please try again"}`))
				return
			}

			defer cl.Release()
			next.ServeHTTP(w, r)
		})
	}
}
