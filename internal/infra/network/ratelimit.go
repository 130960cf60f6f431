package network

import (
	"sync"
	"time"
)

// Adaptive token bucket pacing outbound RPC calls; burst shrinks when
// observed latency degrades >2x baseline.

type TokenBucket struct {
	mu                sync.Mutex
	capacity          int
	tokens            float64
	rate              float64 // tokens per second
	last              time.Time
	baselineLatencyMs float64
	initialCapacity   int
	initialRate       float64
}

func NewTokenBucket(capacity int, rate float64, baselineLatencyMs float64) *TokenBucket {
	return &TokenBucket{
		capacity:          capacity,
		tokens:            float64(capacity),
		rate:              rate,
		last:              time.Now(),
		baselineLatencyMs: baselineLatencyMs,
		initialCapacity:   capacity,
		initialRate:       rate,
	}
}

func (b *TokenBucket) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens -= 1
		return true
	}
	return false
}

func (b *TokenBucket) refill(now time.Time) {
	dt := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += b.rate * dt
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
}

// AdjustForLatency halves burst and rate once the smoothed RPC latency runs
// past twice the configured baseline, and restores them once latency returns
// to baseline. A zero baseline disables adjustment.
func (b *TokenBucket) AdjustForLatency(latencyMs float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.baselineLatencyMs <= 0 {
		return
	}
	ratio := latencyMs / b.baselineLatencyMs
	switch {
	case ratio > 2.0:
		b.capacity = max(1, b.capacity/2)
		b.rate = maxf(1, b.rate*0.5)
		if b.tokens > float64(b.capacity) {
			b.tokens = float64(b.capacity)
		}
	case ratio <= 1.0:
		b.capacity = b.initialCapacity
		b.rate = b.initialRate
	}
}

// Burst reports the current bucket capacity.
func (b *TokenBucket) Burst() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Rate reports the current refill rate in tokens per second.
func (b *TokenBucket) Rate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rate
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
