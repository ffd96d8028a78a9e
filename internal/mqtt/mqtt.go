// Package mqtt provides MQTT publishing and command intake with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "garden/irrigation"

// Command topic suffixes, relative to Topics.Command.
const (
	CommandMode      = "mode"
	CommandThreshold = "threshold"
	CommandPump      = "pump"
)

// Topics holds the topic names derived from a prefix.
type Topics struct {
	Events  string
	State   string
	System  string
	Command string // parent of the command topics, without trailing slash
}

// NewTopics derives all topics from prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Events:  prefix + "/events",
		State:   prefix + "/state",
		System:  prefix + "/system",
		Command: prefix + "/cmd",
	}
}

// CommandFilter is the subscription filter matching every command topic.
func (t Topics) CommandFilter() string {
	return t.Command + "/+"
}

// CommandName returns the command suffix of topic, or "" if topic is not a
// command topic.
func (t Topics) CommandName(topic string) string {
	name, ok := strings.CutPrefix(topic, t.Command+"/")
	if !ok || strings.Contains(name, "/") {
		return ""
	}
	return name
}

// Publisher publishes controller output to MQTT.
type Publisher interface {
	// Publish sends a transition event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishState sends the retained state snapshot.
	PublishState(snap logic.Snapshot, t time.Time) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandHandler receives parsed inbound commands. It is called from the
// MQTT client's goroutine and must not block.
type CommandHandler func(logic.Command)

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the MQTT message payload for transition events.
type Payload struct {
	Irrigation EventPayload `json:"irrigation"`
}

// EventPayload contains the transition details and the state after it.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Cause     string `json:"cause"`
	Humidity  int    `json:"humidity"`
	Pump      string `json:"pump"`
	Mode      string `json:"mode"`
	Threshold int    `json:"threshold"`
}

// FormatPayload creates the JSON payload for a transition event.
func FormatPayload(event logic.Event) ([]byte, error) {
	s := event.Snapshot
	payload := Payload{
		Irrigation: EventPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Cause:     string(event.Cause),
			Humidity:  s.Humidity,
			Pump:      string(s.Pump()),
			Mode:      string(s.Mode),
			Threshold: s.Threshold,
		},
	}
	return json.Marshal(payload)
}

// StatePayload is the retained snapshot published on every change.
type StatePayload struct {
	Irrigation StateInner `json:"irrigation"`
}

// StateInner contains the snapshot fields.
type StateInner struct {
	Timestamp string `json:"timestamp"`
	Humidity  int    `json:"humidity"`
	Pump      string `json:"pump"`
	Mode      string `json:"mode"`
	Threshold int    `json:"threshold"`
}

// FormatStatePayload creates the JSON payload for a state snapshot.
func FormatStatePayload(snap logic.Snapshot, t time.Time) ([]byte, error) {
	return json.Marshal(StatePayload{
		Irrigation: StateInner{
			Timestamp: t.UTC().Format(time.RFC3339),
			Humidity:  snap.Humidity,
			Pump:      string(snap.Pump()),
			Mode:      string(snap.Mode),
			Threshold: snap.Threshold,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
// A zero Timestamp is omitted, which is how the last-will message is sent.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// ParseCommand turns a command topic suffix and its plain-text payload into
// a controller command.
func ParseCommand(name string, payload []byte) (logic.Command, error) {
	v := strings.TrimSpace(string(payload))
	switch name {
	case CommandMode:
		m, err := ParseMode(v)
		if err != nil {
			return logic.Command{}, err
		}
		return logic.SetMode(m), nil
	case CommandThreshold:
		n, err := strconv.Atoi(v)
		if err != nil {
			return logic.Command{}, fmt.Errorf("invalid threshold %q", v)
		}
		return logic.SetThreshold(n), nil
	case CommandPump:
		on, err := ParseSwitch(v)
		if err != nil {
			return logic.Command{}, err
		}
		return logic.SetActuator(on), nil
	default:
		return logic.Command{}, fmt.Errorf("unknown command %q", name)
	}
}

// ParseMode accepts AUTO/MANUAL (any case) or 1/0.
func ParseMode(v string) (logic.Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "AUTO", "1":
		return logic.ModeAutomatic, nil
	case "MANUAL", "0":
		return logic.ModeManual, nil
	}
	return "", fmt.Errorf("invalid mode %q", v)
}

// ParseSwitch accepts ON/OFF (any case) and anything strconv.ParseBool accepts.
func ParseSwitch(v string) (bool, error) {
	v = strings.TrimSpace(v)
	switch strings.ToUpper(v) {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid switch value %q", v)
	}
	return on, nil
}
