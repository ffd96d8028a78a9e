package logic

import (
	"testing"
	"time"
)

func TestRateLimiterNoHistory(t *testing.T) {
	r := NewRateLimiter(30 * time.Minute)
	if !r.MayActivate(t0) {
		t.Error("first activation should always be permitted")
	}
	if !r.NextPermitted().IsZero() {
		t.Errorf("expected zero NextPermitted, got %v", r.NextPermitted())
	}
}

func TestRateLimiterInterval(t *testing.T) {
	r := NewRateLimiter(30 * time.Minute)
	r.RecordActivation(t0)

	if r.MayActivate(t0.Add(29*time.Minute + 59*time.Second)) {
		t.Error("activation permitted before the interval elapsed")
	}
	if !r.MayActivate(t0.Add(30 * time.Minute)) {
		t.Error("activation should be permitted once the interval elapsed")
	}
	if !r.NextPermitted().Equal(t0.Add(30 * time.Minute)) {
		t.Errorf("unexpected NextPermitted: %v", r.NextPermitted())
	}
}

func TestRateLimiterRecordOverwrites(t *testing.T) {
	r := NewRateLimiter(time.Minute)
	r.RecordActivation(t0)
	r.RecordActivation(t0.Add(5 * time.Minute))

	last, ok := r.LastActivation()
	if !ok || !last.Equal(t0.Add(5*time.Minute)) {
		t.Errorf("expected last activation at +5m, got %v (ok=%v)", last, ok)
	}
	if r.MayActivate(t0.Add(5*time.Minute + 30*time.Second)) {
		t.Error("interval should be counted from the latest activation")
	}
}

func TestRateLimiterDeniesBackwardsTime(t *testing.T) {
	r := NewRateLimiter(0)
	r.RecordActivation(t0)
	if r.MayActivate(t0.Add(-time.Second)) {
		t.Error("a timestamp before the last activation must deny")
	}
	if !r.MayActivate(t0) {
		t.Error("zero interval should permit at the same instant")
	}
}
