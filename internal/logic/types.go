// Package logic contains pure business logic for soil-moisture irrigation control.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Mode selects which arbitration branch the controller runs.
type Mode string

const (
	ModeAutomatic Mode = "AUTO"
	ModeManual    Mode = "MANUAL"
)

// State represents the logical state of the pump relay.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// EventType represents a controller transition to be published.
type EventType string

const (
	EventPumpOn           EventType = "PUMP_ON"
	EventPumpOff          EventType = "PUMP_OFF"
	EventModeChanged      EventType = "MODE_CHANGED"
	EventThresholdChanged EventType = "THRESHOLD_CHANGED"
)

// Cause identifies which control source produced an event.
type Cause string

const (
	CauseAutomatic Cause = "AUTO"
	CauseButton    Cause = "BUTTON"
	CauseRemote    Cause = "REMOTE"
)

// Edge is a debounced transition of a digital input.
type Edge int

const (
	EdgeNone Edge = iota
	EdgePressed
	EdgeReleased
)

func (e Edge) String() string {
	switch e {
	case EdgePressed:
		return "PRESSED"
	case EdgeReleased:
		return "RELEASED"
	default:
		return "NONE"
	}
}

// CommandType identifies an inbound remote command.
type CommandType string

const (
	CommandSetMode      CommandType = "SET_MODE"
	CommandSetThreshold CommandType = "SET_THRESHOLD"
	CommandSetActuator  CommandType = "SET_ACTUATOR"
)

// Command is a single inbound remote command. Only the field matching Type
// is meaningful.
type Command struct {
	Type      CommandType
	Mode      Mode
	Threshold int
	On        bool
}

// SetMode builds a mode switch command.
func SetMode(m Mode) Command { return Command{Type: CommandSetMode, Mode: m} }

// SetThreshold builds a threshold update. Out-of-range values are clamped
// when the command is applied.
func SetThreshold(percent int) Command { return Command{Type: CommandSetThreshold, Threshold: percent} }

// SetActuator builds a direct pump command. It only takes effect in manual mode.
func SetActuator(on bool) Command { return Command{Type: CommandSetActuator, On: on} }

// Reading is a humidity sample. Valid is false when the sensor read failed,
// in which case the controller keeps the last known humidity.
type Reading struct {
	Percent int
	Valid   bool
}

// ValidReading wraps a successful sample.
func ValidReading(percent int) Reading { return Reading{Percent: percent, Valid: true} }

// Input is everything one controller cycle consumes.
type Input struct {
	Time     time.Time
	Reading  Reading
	Edge     Edge
	Commands []Command
}

// Snapshot is the outbound view of the controller state.
type Snapshot struct {
	Humidity  int
	PumpOn    bool
	Mode      Mode
	Threshold int
}

// Pump returns the pump state as a State.
func (s Snapshot) Pump() State {
	return boolToState(s.PumpOn)
}

// Event represents a controller transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Cause     Cause
	Snapshot  Snapshot
}

// Result is the outcome of one controller cycle.
type Result struct {
	Snapshot Snapshot
	Events   []Event
	// PumpChanged is true when the relay must be driven to Snapshot.PumpOn.
	PumpChanged bool
	// SettingsChanged is true when mode or threshold changed.
	SettingsChanged bool
	// Changed is true when any snapshot field differs from the previous cycle.
	Changed bool
}

// EventCounts tracks controller activity since startup.
type EventCounts struct {
	PumpOn         int
	PumpOff        int
	ButtonPresses  int
	RemoteCommands int
	// Deferred counts cycles where automatic watering was wanted but the
	// rate limiter refused it.
	Deferred int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

func boolToState(b bool) State {
	if b {
		return StateOn
	}
	return StateOff
}
