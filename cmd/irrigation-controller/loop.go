package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/sweeney/irrigation-controller/internal/adc"
	"github.com/sweeney/irrigation-controller/internal/gpio"
	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/metrics"
	"github.com/sweeney/irrigation-controller/internal/mqtt"
	"github.com/sweeney/irrigation-controller/internal/status"
	"github.com/sweeney/irrigation-controller/internal/store"
)

type settingsStore interface {
	Save(store.Settings) error
}

// loop owns the controller. Only run touches it; everything else talks to
// it through the commands channel.
type loop struct {
	ctrl      *logic.Controller
	debouncer *logic.Debouncer
	cal       logic.Calibration

	sampler    adc.Sampler
	button     gpio.Button
	relay      gpio.Relay
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker
	metrics    *metrics.Metrics // may be nil
	settings   settingsStore    // may be nil

	commands <-chan logic.Command
	// restore holds persisted settings, applied before the first tick.
	restore []logic.Command

	heartbeat time.Duration
	notify    func(state string) // may be nil
	now       func() time.Time
}

// run drives the controller until a signal arrives. poll ticks read the
// button and queued commands; sample ticks also read the humidity sensor.
func (l *loop) run(poll, sample <-chan time.Time, sig <-chan os.Signal) error {
	l.seedButton()
	l.publishStartup()
	if len(l.restore) > 0 {
		t := l.now()
		l.apply(l.ctrl.Step(logic.Input{Time: t, Commands: l.restore}), t)
		l.restore = nil
	}
	l.sdNotify(daemon.SdNotifyReady)

	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil

		case <-poll:
			t := l.now()
			edge := l.pollButton(t)
			cmds := l.drainCommands()
			if edge == logic.EdgeNone && len(cmds) == 0 {
				continue
			}
			l.apply(l.ctrl.Step(logic.Input{Time: t, Edge: edge, Commands: cmds}), t)

		case <-sample:
			t := l.now()
			reading := l.readSensor()
			l.apply(l.ctrl.Step(logic.Input{Time: t, Reading: reading, Commands: l.drainCommands()}), t)
			l.refreshConnection()
			l.checkHeartbeat(t)
			l.sdNotify(daemon.SdNotifyWatchdog)
		}
	}
}

// seedButton takes the button level at boot as the debounced level, so a
// button held (or stuck) at startup is not reported as a press.
func (l *loop) seedButton() {
	pressed, err := l.button.Pressed()
	if err != nil {
		log.Printf("button read error at startup, assuming released: %v", err)
		return
	}
	if pressed {
		log.Printf("button held at startup, waiting for release")
	}
	l.debouncer.Seed(pressed)
}

func (l *loop) pollButton(t time.Time) logic.Edge {
	pressed, err := l.button.Pressed()
	if err != nil {
		log.Printf("button read error: %v", err)
		return logic.EdgeNone
	}
	edge := l.debouncer.Poll(pressed, t)
	if edge == logic.EdgePressed {
		log.Printf("button pressed")
	}
	return edge
}

func (l *loop) drainCommands() []logic.Command {
	var cmds []logic.Command
	for {
		select {
		case cmd := <-l.commands:
			cmds = append(cmds, cmd)
		default:
			return cmds
		}
	}
}

// readSensor samples the ADC. A failed sample yields an invalid reading so
// the controller keeps the last humidity.
func (l *loop) readSensor() logic.Reading {
	raw, err := l.sampler.Sample()
	if err != nil {
		log.Printf("sensor read error: %v", err)
		if l.tracker != nil {
			l.tracker.SetSensor(false, 0)
		}
		if l.metrics != nil {
			l.metrics.SensorError()
		}
		return logic.Reading{}
	}
	percent := l.cal.Percent(raw)
	if l.tracker != nil {
		l.tracker.SetSensor(true, raw)
	}
	if l.metrics != nil {
		l.metrics.Humidity(percent)
	}
	return logic.ValidReading(percent)
}

// apply carries the outcome of one step to the relay, MQTT, the settings
// store, metrics and the status tracker.
func (l *loop) apply(res logic.Result, t time.Time) {
	if res.PumpChanged {
		if err := l.relay.Set(res.Snapshot.PumpOn); err != nil {
			log.Printf("relay error: %v", err)
		}
	}

	for _, event := range res.Events {
		s := event.Snapshot
		log.Printf("event: %s cause=%s (humidity=%d%% pump=%s mode=%s threshold=%d%%)",
			event.Type, event.Cause, s.Humidity, s.Pump(), s.Mode, s.Threshold)
		if err := l.publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
		}
		if event.Type == logic.EventThresholdChanged {
			l.warnUnreachableRelease()
		}
	}

	if res.Changed {
		if err := l.publisher.PublishState(res.Snapshot, t); err != nil {
			log.Printf("publish state error: %v", err)
		}
	}

	if res.SettingsChanged && l.settings != nil {
		err := l.settings.Save(store.Settings{
			Mode:      res.Snapshot.Mode,
			Threshold: res.Snapshot.Threshold,
			UpdatedAt: t,
		})
		if err != nil {
			log.Printf("save settings: %v", err)
		}
	}

	counts := l.ctrl.EventCountsSnapshot()
	if l.metrics != nil {
		l.metrics.Observe(res, counts)
	}
	l.updateTracker(counts)
}

func (l *loop) updateTracker(counts logic.EventCounts) {
	if l.tracker == nil {
		return
	}
	last, _ := l.ctrl.LastActivation()
	l.tracker.Update(status.Control{
		State:               l.ctrl.Snapshot(),
		ReleasePoint:        l.ctrl.ReleasePoint(),
		AutoReleaseDisabled: !l.ctrl.AutoReleaseReachable(),
		LastActivation:      last,
		NextActivation:      l.ctrl.NextActivation(),
		Counts:              counts,
	})
}

func (l *loop) warnUnreachableRelease() {
	if !l.ctrl.AutoReleaseReachable() {
		log.Printf("warning: threshold %d%% puts the release point at %d%%, automatic watering will not stop on its own",
			l.ctrl.Snapshot().Threshold, l.ctrl.ReleasePoint())
	}
}

func (l *loop) refreshConnection() {
	if l.mqttStatus == nil {
		return
	}
	connected := l.mqttStatus.IsConnected()
	if l.tracker != nil {
		l.tracker.SetMQTTConnected(connected)
	}
	if l.metrics != nil {
		l.metrics.SetMQTTConnected(connected)
	}
}

func (l *loop) checkHeartbeat(t time.Time) {
	hb := l.ctrl.CheckHeartbeat(t, l.heartbeat)
	if hb == nil {
		return
	}
	log.Printf("heartbeat: uptime=%v pump_on=%d pump_off=%d presses=%d remote=%d deferred=%d",
		hb.Uptime, hb.Counts.PumpOn, hb.Counts.PumpOff, hb.Counts.ButtonPresses,
		hb.Counts.RemoteCommands, hb.Counts.Deferred)

	event := mqtt.SystemEvent{Timestamp: hb.Timestamp, Event: "HEARTBEAT"}
	if l.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (l *loop) publishStartup() {
	l.warnUnreachableRelease()
	l.updateTracker(l.ctrl.EventCountsSnapshot())
	event := mqtt.SystemEvent{Timestamp: l.now(), Event: "STARTUP", Retained: true}
	if l.tracker != nil {
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "STARTUP", "")
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}
}

// shutdown releases the pump and publishes the SHUTDOWN event.
func (l *loop) shutdown(s os.Signal) {
	log.Printf("received %v, shutting down", s)
	l.sdNotify(daemon.SdNotifyStopping)

	if l.ctrl.Snapshot().PumpOn {
		if err := l.relay.Set(false); err != nil {
			log.Printf("relay error on shutdown: %v", err)
		} else {
			log.Printf("pump released on shutdown")
		}
	}

	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if l.tracker != nil {
		l.refreshConnection()
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", signalName)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func (l *loop) sdNotify(state string) {
	if l.notify != nil {
		l.notify(state)
	}
}
