package logic

import "time"

// Params configures a Controller.
type Params struct {
	// Threshold is the initial humidity percentage below which automatic
	// watering starts.
	Threshold int
	// Hysteresis is the margin above Threshold the humidity must exceed
	// before automatic watering stops.
	Hysteresis int
	// MinInterval is the minimum time between two pump activations.
	MinInterval time.Duration
}

// Controller arbitrates remote commands, the manual button and the automatic
// humidity rule, and owns the pump state.
type Controller struct {
	mode       Mode
	threshold  int
	release    int // threshold + hysteresis, capped at 100
	hysteresis int
	humidity   int
	sensed     bool // a valid reading has been seen
	pumpOn     bool
	limiter    *RateLimiter

	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
	last          Snapshot
}

// NewController creates a controller in automatic mode with the pump off.
// The startTime is used for calculating uptime in heartbeat events.
func NewController(p Params, startTime time.Time) *Controller {
	c := &Controller{
		mode:          ModeAutomatic,
		hysteresis:    clampPercent(p.Hysteresis),
		limiter:       NewRateLimiter(p.MinInterval),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	c.setThreshold(p.Threshold)
	c.last = c.Snapshot()
	return c
}

// Step runs one control cycle: commands first, then the button, then the
// automatic rule.
func (c *Controller) Step(in Input) Result {
	prevMode, prevThreshold, prevPump := c.mode, c.threshold, c.pumpOn
	var events []Event
	override := false

	if in.Reading.Valid {
		c.humidity = clampPercent(in.Reading.Percent)
		c.sensed = true
	}

	for _, cmd := range in.Commands {
		c.eventCounts.RemoteCommands++
		switch cmd.Type {
		case CommandSetThreshold:
			old := c.threshold
			c.setThreshold(cmd.Threshold)
			if c.threshold != old {
				events = append(events, c.event(in.Time, EventThresholdChanged, CauseRemote))
			}
		case CommandSetMode:
			if cmd.Mode != ModeAutomatic && cmd.Mode != ModeManual {
				continue
			}
			if cmd.Mode != c.mode {
				c.mode = cmd.Mode
				events = append(events, c.event(in.Time, EventModeChanged, CauseRemote))
			}
		case CommandSetActuator:
			if c.mode != ModeManual {
				continue
			}
			override = true
			if ev, ok := c.setPump(cmd.On, in.Time, CauseRemote); ok {
				events = append(events, ev)
			}
		}
	}

	if in.Edge == EdgePressed {
		c.eventCounts.ButtonPresses++
		override = true
		if ev, ok := c.setPump(!c.pumpOn, in.Time, CauseButton); ok {
			events = append(events, ev)
		}
	}

	// No automatic decision is made before the first valid reading.
	if c.mode == ModeAutomatic && !override && c.sensed {
		switch {
		case !c.pumpOn && c.humidity < c.threshold:
			if c.limiter.MayActivate(in.Time) {
				if ev, ok := c.setPump(true, in.Time, CauseAutomatic); ok {
					events = append(events, ev)
				}
			} else {
				c.eventCounts.Deferred++
			}
		case c.pumpOn && c.humidity > c.release:
			if ev, ok := c.setPump(false, in.Time, CauseAutomatic); ok {
				events = append(events, ev)
			}
		}
	}

	snap := c.Snapshot()
	res := Result{
		Snapshot:        snap,
		Events:          events,
		PumpChanged:     c.pumpOn != prevPump,
		SettingsChanged: c.mode != prevMode || c.threshold != prevThreshold,
		Changed:         snap != c.last,
	}
	c.last = snap
	return res
}

// setPump drives the pump state and records activations. It returns false
// when the pump was already in the requested state.
func (c *Controller) setPump(on bool, now time.Time, cause Cause) (Event, bool) {
	if c.pumpOn == on {
		return Event{}, false
	}
	c.pumpOn = on
	if on {
		c.limiter.RecordActivation(now)
		c.eventCounts.PumpOn++
		return c.event(now, EventPumpOn, cause), true
	}
	c.eventCounts.PumpOff++
	return c.event(now, EventPumpOff, cause), true
}

// setThreshold clamps and stores the threshold and recomputes the release
// point so evaluation never needs a second clamp.
func (c *Controller) setThreshold(percent int) {
	c.threshold = clampPercent(percent)
	c.release = clampPercent(c.threshold + c.hysteresis)
}

func (c *Controller) event(now time.Time, t EventType, cause Cause) Event {
	return Event{
		Timestamp: now,
		Type:      t,
		Cause:     cause,
		Snapshot:  c.Snapshot(),
	}
}

// Snapshot returns the current outbound state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Humidity:  c.humidity,
		PumpOn:    c.pumpOn,
		Mode:      c.mode,
		Threshold: c.threshold,
	}
}

// ReleasePoint returns the humidity above which automatic watering stops.
func (c *Controller) ReleasePoint() int {
	return c.release
}

// AutoReleaseReachable reports whether automatic watering can stop on its
// own. Humidity never exceeds 100, so a release point of 100 cannot be
// crossed and the pump then stops only by button, command or mode change.
func (c *Controller) AutoReleaseReachable() bool {
	return c.release < 100
}

// LastActivation returns the start of the latest pump activation, if any.
func (c *Controller) LastActivation() (time.Time, bool) {
	return c.limiter.LastActivation()
}

// NextActivation returns the earliest time automatic watering may start again.
func (c *Controller) NextActivation() time.Time {
	return c.limiter.NextPermitted()
}

// EventCountsSnapshot returns a copy of the activity counters.
func (c *Controller) EventCountsSnapshot() EventCounts {
	return c.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}
	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.eventCounts,
	}
}
