package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests.
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming a slot if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset returns the limiter to its initial state
	Reset()
}

const (
	StrategyTokenBucket   = "token_bucket"
	StrategySlidingWindow = "sliding_window"
)

// New builds the limiter for strategy allowing perMinute requests per minute
// with the given burst.
func New(strategy string, perMinute, burst int) (Limiter, error) {
	if perMinute <= 0 {
		return nil, fmt.Errorf("requests per minute must be positive, got %d", perMinute)
	}
	switch strategy {
	case "", StrategyTokenBucket:
		return NewTokenBucket(perMinute, burst), nil
	case StrategySlidingWindow:
		return NewSlidingWindow(perMinute, time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown rate limit strategy %q", strategy)
	}
}

// TokenBucket is a token bucket refilled continuously at perMinute/60 tokens
// per second.
type TokenBucket struct {
	limit *rate.Limiter
	rate  rate.Limit
	burst int
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	r := rate.Limit(float64(perMinute) / 60.0)
	return &TokenBucket{
		limit: rate.NewLimiter(r, burst),
		rate:  r,
		burst: burst,
	}
}

func (tb *TokenBucket) Allow() bool {
	return tb.limit.Allow()
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limit.Wait(ctx)
}

// Reset refills the bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.limit = rate.NewLimiter(tb.rate, tb.burst)
}

// SlidingWindow admits at most maxRequests within any windowSize interval.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

func (sw *SlidingWindow) Allow() bool {
	_, ok := sw.reserve()
	return ok
}

// reserve records a request if the window has room; otherwise it returns
// how long until the oldest request leaves the window.
func (sw *SlidingWindow) reserve() (time.Duration, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return 0, true
	}
	return sw.windowSize - now.Sub(sw.requests[0]), false
}

func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		wait, ok := sw.reserve()
		if ok {
			return nil
		}
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// Unlimited never blocks. Tests and local fixtures use it.
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}
