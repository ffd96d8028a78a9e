package logic

import "time"

// RateLimiter enforces a minimum interval between pump activations.
// Deactivation is never limited.
type RateLimiter struct {
	interval time.Duration
	last     time.Time
	recorded bool
}

// NewRateLimiter creates a limiter with the given minimum interval.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// MayActivate reports whether a new activation is permitted at now.
// A timestamp earlier than the last activation denies.
func (r *RateLimiter) MayActivate(now time.Time) bool {
	if !r.recorded {
		return true
	}
	if now.Before(r.last) {
		return false
	}
	return now.Sub(r.last) >= r.interval
}

// RecordActivation stores now as the start of the latest activation.
func (r *RateLimiter) RecordActivation(now time.Time) {
	r.last = now
	r.recorded = true
}

// LastActivation returns the last recorded activation, if any.
func (r *RateLimiter) LastActivation() (time.Time, bool) {
	return r.last, r.recorded
}

// NextPermitted returns the earliest time a new activation is allowed.
// The zero time means an activation is allowed now.
func (r *RateLimiter) NextPermitted() time.Time {
	if !r.recorded {
		return time.Time{}
	}
	return r.last.Add(r.interval)
}
