package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket that refills at a fixed number of
// requests per second. The bucket holds at most one second of tokens.
type RateLimiter struct {
	mu sync.Mutex

	rps      float64
	capacity float64

	// Token bucket state
	tokens     float64
	lastUpdate time.Time

	// Statistics
	totalConsumed int64
	totalWaited   time.Duration
	last429Time   time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available" yaml:"tokens_available"`
	RequestsPerSec  float64       `json:"requests_per_second" yaml:"requests_per_second"`
	TimeUntilToken  time.Duration `json:"time_until_token" yaml:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed" yaml:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited" yaml:"total_waited"`
	Last429Time     time.Time     `json:"last_429_time,omitempty" yaml:"last_429_time,omitempty"`
}

// NewRateLimiter creates a limiter allowing rps requests per second.
// A non-positive rate disables limiting.
func NewRateLimiter(rps float64) *RateLimiter {
	capacity := rps
	if capacity < 1 {
		capacity = 1
	}
	return &RateLimiter{
		rps:        rps,
		capacity:   capacity,
		tokens:     capacity,
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.rps <= 0 {
		return ctx.Err()
	}
	for !r.TryConsume() {
		r.mu.Lock()
		r.refill()
		wait := r.untilToken()
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			r.mu.Lock()
			r.totalWaited += wait
			r.mu.Unlock()
		}
	}
	return nil
}

// TryConsume takes a token without blocking. It reports whether one was available.
func (r *RateLimiter) TryConsume() bool {
	if r == nil || r.rps <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1.0 {
		r.tokens--
		r.totalConsumed++
		return true
	}
	return false
}

// Record429 drains the bucket after a rate-limit response.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last429Time = time.Now()
	if retryAfter > 0 {
		r.tokens = 0
	}
}

// Status returns current limiter state.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	var timeUntilToken time.Duration
	if r.tokens < 1.0 && r.rps > 0 {
		timeUntilToken = r.untilToken()
	}

	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		RequestsPerSec:  r.rps,
		TimeUntilToken:  timeUntilToken,
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
		Last429Time:     r.last429Time,
	}
}

// untilToken must be called with lock held.
func (r *RateLimiter) untilToken() time.Duration {
	needed := 1.0 - r.tokens
	return time.Duration(needed / r.rps * float64(time.Second))
}

// refill adds tokens based on elapsed time. Must be called with lock held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.rps
	if r.tokens > r.capacity {
		r.tokens = r.capacity
	}
}
