package ratelimit

import (
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request. Callers
	// are admitted in arrival order.
	Wait()
	// Reset resets the rate limiter state
	Reset()
}

// SlidingWindow implements a sliding window rate limiter. At most
// maxRequests operations are admitted per rolling window; blocked callers
// queue through a turnstile channel, whose receive order is FIFO, so no
// caller is starved.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	mu          sync.Mutex
	turnstile   chan struct{}
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	sw := &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		turnstile:   make(chan struct{}, 1),
	}
	sw.turnstile <- struct{}{}
	return sw
}

// NewPerSecond creates a limiter admitting n operations per rolling second
func NewPerSecond(n int) *SlidingWindow {
	return NewSlidingWindow(n, time.Second)
}

// Allow checks if a request can proceed without blocking
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait() {
	// Hold the turnstile so later arrivals line up behind this caller.
	<-sw.turnstile
	defer func() { sw.turnstile <- struct{}{} }()

	for {
		sw.mu.Lock()
		now := time.Now()
		sw.cleanOldRequests(now)

		if len(sw.requests) < sw.maxRequests {
			sw.requests = append(sw.requests, now)
			sw.mu.Unlock()
			return
		}

		oldestRequest := sw.requests[0]
		sw.mu.Unlock()

		timeToWait := sw.windowSize - time.Since(oldestRequest)
		if timeToWait > 0 {
			time.Sleep(timeToWait)
		} else {
			// Small sleep to prevent busy waiting
			time.Sleep(time.Millisecond)
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

	// Find the first request that's within the window
	i := 0
	for i < len(sw.requests) && sw.requests[i].Before(cutoff) {
		i++
	}

	// Keep only requests within the window
	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}
