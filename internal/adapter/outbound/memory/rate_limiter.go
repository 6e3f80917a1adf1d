package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per key (client address, email, ...).
// Thread-safe for concurrent access. Idle keys are dropped by a background
// cleanup goroutine so the map cannot grow without bound.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu              sync.Mutex
	buckets         map[string]*bucket
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
	maxIdle         time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a keyed limiter allowing perSecond events per key
// with the given burst. Default cleanup interval: 5 minutes, idle TTL: 1 hour.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return NewRateLimiterWithConfig(perSecond, burst, 5*time.Minute, 1*time.Hour)
}

// NewRateLimiterWithConfig creates a keyed limiter with custom cleanup settings.
func NewRateLimiterWithConfig(perSecond float64, burst int, cleanupInterval, maxIdle time.Duration) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:           rate.Limit(perSecond),
		burst:           burst,
		buckets:         make(map[string]*bucket),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
		maxIdle:         maxIdle,
	}
}

// Allow reports whether one more event for key may happen now.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.lastSeen = time.Now()
	r.mu.Unlock()

	return b.limiter.Allow()
}

// StartCleanup starts the background cleanup goroutine.
// It stops when ctx is cancelled or Stop() is called.
func (r *RateLimiter) StartCleanup(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				r.cleanup()
			}
		}
	}()
}

// cleanup removes keys idle for longer than maxIdle.
func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.maxIdle)
	cleaned := 0
	for key, b := range r.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(r.buckets, key)
			cleaned++
		}
	}

	if cleaned > 0 {
		slog.Debug("rate limiter cleanup completed",
			"cleaned_keys", cleaned,
			"remaining_keys", len(r.buckets))
	}
}

// Stop gracefully stops the cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (r *RateLimiter) Stop() {
	r.once.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}

// Size returns the current number of tracked keys.
func (r *RateLimiter) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
