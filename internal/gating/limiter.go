package gating

import "sync"

// RequestLimiter rate limits GPS requests per device. Time is the device's
// sample clock in milliseconds, not the wall clock, so replays and live
// streams behave the same.
type RequestLimiter struct {
	mu            sync.Mutex
	lastRequest   map[string]int64
	minIntervalMs int64
}

// NewRequestLimiter creates a limiter allowing one request per device every
// minIntervalMs
func NewRequestLimiter(minIntervalMs int64) *RequestLimiter {
	return &RequestLimiter{
		lastRequest:   make(map[string]int64),
		minIntervalMs: minIntervalMs,
	}
}

// Allow reports whether a request may be sent at timestampMs and records it
// if so. A timestamp earlier than the last request is rate limited.
func (rl *RequestLimiter) Allow(deviceID string, timestampMs int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	last, exists := rl.lastRequest[deviceID]
	if !exists {
		rl.lastRequest[deviceID] = timestampMs
		return true
	}

	if timestampMs-last < rl.minIntervalMs {
		return false
	}

	rl.lastRequest[deviceID] = timestampMs
	return true
}

// Record marks a request as sent, bypassing the limit
func (rl *RequestLimiter) Record(deviceID string, timestampMs int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lastRequest[deviceID] = timestampMs
}

// LastRequest returns the sample time of the last request for a device
func (rl *RequestLimiter) LastRequest(deviceID string) (int64, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	last, exists := rl.lastRequest[deviceID]
	return last, exists
}
