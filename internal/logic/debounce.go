package logic

import "time"

// Debouncer turns a noisy digital level into clean press/release edges.
// A change is accepted at once if the guard window has elapsed since the
// last accepted change; anything inside the window is treated as bounce.
type Debouncer struct {
	guard        time.Duration
	stable       bool
	lastAccepted time.Time
	accepted     bool
}

// NewDebouncer creates a debouncer whose stable level starts at initial
// (false = released).
func NewDebouncer(guard time.Duration, initial bool) *Debouncer {
	return &Debouncer{guard: guard, stable: initial}
}

// Seed sets the stable level from the line as read at boot. It produces no
// edge and does not start the guard window.
func (d *Debouncer) Seed(level bool) {
	d.stable = level
}

// Poll feeds one raw sample. level is true while the input is pressed.
func (d *Debouncer) Poll(level bool, now time.Time) Edge {
	if level == d.stable {
		return EdgeNone
	}
	// Measured from the last accepted change, not from every flip.
	if d.accepted && now.Sub(d.lastAccepted) < d.guard {
		return EdgeNone
	}
	d.stable = level
	d.lastAccepted = now
	d.accepted = true
	if level {
		return EdgePressed
	}
	return EdgeReleased
}

// Stable returns the current debounced level.
func (d *Debouncer) Stable() bool {
	return d.stable
}
