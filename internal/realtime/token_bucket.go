package realtime

import (
	"sync"
	"time"
)

// TokenBucket implements a simple rate limiter for reconnect attempts.
type TokenBucket struct {
	tokens    int
	capacity  int
	refillAt  time.Time
	refillDur time.Duration
	mu        sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter.
func NewTokenBucket(capacity int, refillDuration time.Duration) *TokenBucket {
	return &TokenBucket{
		tokens:    capacity,
		capacity:  capacity,
		refillAt:  time.Now().Add(refillDuration),
		refillDur: refillDuration,
	}
}

// Take attempts to take a token from the bucket.
func (tb *TokenBucket) Take() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	if now.After(tb.refillAt) {
		tb.tokens = tb.capacity
		tb.refillAt = now.Add(tb.refillDur)
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}
