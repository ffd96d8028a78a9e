package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string       `json:"event,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	Humidity       int          `json:"humidity"`
	Pump           string       `json:"pump"`
	Mode           string       `json:"mode"`
	Threshold      int          `json:"threshold"`
	ReleasePoint   int          `json:"release_point"`
	AutoReleaseOff bool         `json:"auto_release_disabled"`
	Ready          bool         `json:"ready"`
	Sensor         SensorJSON   `json:"sensor"`
	LastActivation string       `json:"last_activation,omitempty"`
	NextActivation string       `json:"next_activation,omitempty"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	StartTime      string       `json:"start_time"`
	Timestamp      string       `json:"timestamp"`
	MQTT           MQTTStatus   `json:"mqtt"`
	Counts         CountsJSON   `json:"event_counts"`
	Network        *NetworkJSON `json:"network,omitempty"`
	Config         ConfigJSON   `json:"config"`
}

// SensorJSON reports the latest sample outcome.
type SensorJSON struct {
	OK  bool `json:"ok"`
	Raw int  `json:"raw"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Prefix    string `json:"topic_prefix"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	PumpOn         int `json:"pump_on"`
	PumpOff        int `json:"pump_off"`
	ButtonPresses  int `json:"button_presses"`
	RemoteCommands int `json:"remote_commands"`
	Deferred       int `json:"deferred"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SamplePeriodMs    int64  `json:"sample_period_ms"`
	PollMs            int64  `json:"poll_ms"`
	DebounceMs        int64  `json:"debounce_guard_ms"`
	MinimumIntervalMs int64  `json:"minimum_interval_ms"`
	HysteresisPercent int    `json:"hysteresis_margin_percent"`
	HeartbeatMs       int64  `json:"heartbeat_ms"`
	HTTPAddr          string `json:"http_addr"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	mode := string(snap.State.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	inner := StatusInner{
		Humidity:       snap.State.Humidity,
		Pump:           string(snap.State.Pump()),
		Mode:           mode,
		Threshold:      snap.State.Threshold,
		ReleasePoint:   snap.ReleasePoint,
		AutoReleaseOff: snap.AutoReleaseDisabled,
		Ready:          snap.Sensed,
		Sensor:         SensorJSON{OK: snap.SensorOK, Raw: snap.RawReading},
		LastActivation: formatTime(snap.LastActivation),
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Prefix:    snap.Config.TopicPrefix,
		},
		Counts: CountsJSON{
			PumpOn:         snap.Counts.PumpOn,
			PumpOff:        snap.Counts.PumpOff,
			ButtonPresses:  snap.Counts.ButtonPresses,
			RemoteCommands: snap.Counts.RemoteCommands,
			Deferred:       snap.Counts.Deferred,
		},
		Config: ConfigJSON{
			SamplePeriodMs:    snap.Config.SamplePeriodMs,
			PollMs:            snap.Config.PollMs,
			DebounceMs:        snap.Config.DebounceMs,
			MinimumIntervalMs: snap.Config.MinimumIntervalMs,
			HysteresisPercent: snap.Config.HysteresisPercent,
			HeartbeatMs:       snap.Config.HeartbeatMs,
			HTTPAddr:          snap.Config.HTTPAddr,
		},
	}
	// Only report a future gate; a past one means activation is allowed now.
	if snap.NextActivation.After(snap.Now) {
		inner.NextActivation = formatTime(snap.NextActivation)
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
