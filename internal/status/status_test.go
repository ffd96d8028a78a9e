package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleControl() Control {
	return Control{
		State:          logic.Snapshot{Humidity: 25, PumpOn: true, Mode: logic.ModeAutomatic, Threshold: 30},
		ReleasePoint:   35,
		LastActivation: start.Add(10 * time.Minute),
		NextActivation: start.Add(40 * time.Minute),
		Counts:         logic.EventCounts{PumpOn: 5, PumpOff: 4, ButtonPresses: 2, RemoteCommands: 3, Deferred: 7},
	}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{PollMs: 20, DebounceMs: 50, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollMs != 20 {
		t.Errorf("Config.PollMs: got %d, want 20", snap.Config.PollMs)
	}
	if snap.Config.HTTPAddr != ":8080" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":8080")
	}
	if snap.Sensed {
		t.Error("expected Sensed=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(sampleControl())

	snap := tr.Snapshot()
	if snap.State.Humidity != 25 || !snap.State.PumpOn {
		t.Errorf("State: got %+v", snap.State)
	}
	if snap.ReleasePoint != 35 {
		t.Errorf("ReleasePoint: got %d, want 35", snap.ReleasePoint)
	}
	if snap.Counts.Deferred != 7 {
		t.Errorf("Counts.Deferred: got %d, want 7", snap.Counts.Deferred)
	}
}

func TestSetSensor(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetSensor(true, 2500)
	snap := tr.Snapshot()
	if !snap.Sensed || !snap.SensorOK || snap.RawReading != 2500 {
		t.Errorf("after good sample: got %+v", snap)
	}

	tr.SetSensor(false, 0)
	snap = tr.Snapshot()
	if snap.SensorOK {
		t.Error("expected SensorOK=false after a failed sample")
	}
	if !snap.Sensed {
		t.Error("Sensed must stay true after the first good sample")
	}
	if snap.RawReading != 2500 {
		t.Errorf("failed sample must keep the last raw value, got %d", snap.RawReading)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})
	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}
	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(sampleControl())
	snap1 := tr.Snapshot()

	c := sampleControl()
	c.State.PumpOn = false
	tr.Update(c)

	if !snap1.State.PumpOn {
		t.Error("snapshot should be a copy; pump state was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Control:       sampleControl(),
		Sensed:        true,
		SensorOK:      true,
		RawReading:    2900,
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{SamplePeriodMs: 2000, MinimumIntervalMs: 1800000, Broker: "tcp://localhost:1883", TopicPrefix: "garden/irrigation"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if s.Humidity != 25 || s.Pump != "ON" || s.Mode != "AUTO" || s.Threshold != 30 {
		t.Errorf("control fields: got %+v", s)
	}
	if s.ReleasePoint != 35 {
		t.Errorf("ReleasePoint: got %d, want 35", s.ReleasePoint)
	}
	if !s.Ready || !s.Sensor.OK || s.Sensor.Raw != 2900 {
		t.Errorf("sensor: ready=%v %+v", s.Ready, s.Sensor)
	}
	if s.LastActivation != "2026-01-01T00:10:00Z" {
		t.Errorf("LastActivation: got %q", s.LastActivation)
	}
	if s.NextActivation != "2026-01-01T00:40:00Z" {
		t.Errorf("NextActivation: got %q", s.NextActivation)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected || s.MQTT.Prefix != "garden/irrigation" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Counts.PumpOn != 5 || s.Counts.Deferred != 7 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.Config.MinimumIntervalMs != 1800000 {
		t.Errorf("Config.MinimumIntervalMs: got %d", s.Config.MinimumIntervalMs)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected no event/reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONBeforeFirstStep(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	var raw map[string]interface{}
	if err := json.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if status["mode"] != "UNKNOWN" {
		t.Errorf("mode: got %v, want UNKNOWN", status["mode"])
	}
	if status["pump"] != "OFF" {
		t.Errorf("pump: got %v, want OFF", status["pump"])
	}
	for _, key := range []string{"last_activation", "next_activation", "network"} {
		if _, exists := status[key]; exists {
			t.Errorf("%s should be omitted", key)
		}
	}
}

func TestFormatJSONPastNextActivationOmitted(t *testing.T) {
	c := sampleControl()
	snap := Snapshot{Control: c, StartTime: start, Now: c.NextActivation.Add(time.Second)}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)
	if parsed.Status.NextActivation != "" {
		t.Errorf("expired gate should be omitted, got %q", parsed.Status.NextActivation)
	}
}

func TestFormatJSONAutoReleaseDisabled(t *testing.T) {
	c := sampleControl()
	if parsed := decode(t, FormatJSON(Snapshot{Control: c, StartTime: start, Now: start})); parsed.Status.AutoReleaseOff {
		t.Error("release point 35 must not be flagged")
	}

	c.State.Threshold = 97
	c.ReleasePoint = 100
	c.AutoReleaseDisabled = true
	if parsed := decode(t, FormatJSON(Snapshot{Control: c, StartTime: start, Now: start})); !parsed.Status.AutoReleaseOff {
		t.Error("expected auto_release_disabled=true at release point 100")
	}
}

func decode(t *testing.T, data []byte) StatusJSON {
	t.Helper()
	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return parsed
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		Control:   sampleControl(),
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.Pump != "ON" {
		t.Errorf("Pump: got %q, want ON", parsed.Status.Pump)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	var raw map[string]interface{}
	json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(time.Minute),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)
	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c := sampleControl()
			c.State.Humidity = i % 101
			tr.Update(c)
			tr.SetSensor(i%3 != 0, i)
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
