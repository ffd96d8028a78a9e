// Package status provides a thread-safe status tracker for the irrigation
// controller. The run loop writes it; HTTP handlers and system events read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	SamplePeriodMs    int64
	PollMs            int64
	DebounceMs        int64
	MinimumIntervalMs int64
	HysteresisPercent int
	HeartbeatMs       int64
	Broker            string
	TopicPrefix       string
	HTTPAddr          string
}

// Control is the controller-derived part of the status.
type Control struct {
	State               logic.Snapshot
	ReleasePoint        int
	AutoReleaseDisabled bool      // release point is 100, which humidity never exceeds
	LastActivation      time.Time // zero if the pump never ran
	NextActivation      time.Time // zero if automatic watering is not rate limited
	Counts              logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state. It is a value type and
// stays valid after the lock is released.
type Snapshot struct {
	Control
	// Sensed is true once the first sample succeeded.
	Sensed        bool
	SensorOK      bool
	RawReading    int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update stores the controller view. Called from the run loop after each step.
func (t *Tracker) Update(c Control) {
	t.mu.Lock()
	t.snap.Control = c
	t.mu.Unlock()
}

// SetSensor records the outcome of the latest sample.
func (t *Tracker) SetSensor(ok bool, raw int) {
	t.mu.Lock()
	t.snap.SensorOK = ok
	if ok {
		t.snap.Sensed = true
		t.snap.RawReading = raw
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
