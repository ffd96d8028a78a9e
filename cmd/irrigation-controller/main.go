// Command irrigation-controller reads soil humidity, drives the pump relay and
// syncs mode, threshold and pump state with MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/sweeney/irrigation-controller/internal/adc"
	"github.com/sweeney/irrigation-controller/internal/config"
	"github.com/sweeney/irrigation-controller/internal/gpio"
	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/metrics"
	"github.com/sweeney/irrigation-controller/internal/mqtt"
	"github.com/sweeney/irrigation-controller/internal/status"
	"github.com/sweeney/irrigation-controller/internal/store"
	"github.com/sweeney/irrigation-controller/internal/web"
)

// commandQueueSize bounds the commands waiting for the next control step.
const commandQueueSize = 32

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	printState := flag.Bool("print-state", false, "Print current humidity and button state and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printState bool) error {
	cal := logic.Calibration{RawLow: cfg.RawLow, RawHigh: cfg.RawHigh}

	sampler, err := adc.NewRealSampler(cfg.ADCPath, cfg.ADCMax)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer sampler.Close()

	button, err := gpio.NewRealButton(cfg.GPIOChip, cfg.PinButton)
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}
	defer button.Close()

	if printState {
		return printCurrentState(sampler, button, cal)
	}

	relay, err := gpio.NewRealRelay(cfg.GPIOChip, cfg.PinRelay, cfg.RelayActiveLow)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}
	defer relay.Close()

	// Persistence is optional: without it the controller starts from defaults.
	var settings settingsStore
	var restore []logic.Command
	if st, err := store.Open(cfg.StateDB); err != nil {
		log.Printf("settings store unavailable, not persisting: %v", err)
	} else {
		defer st.Close()
		settings = st
		if saved, ok, err := st.Load(); err != nil {
			log.Printf("load settings: %v", err)
		} else if ok {
			log.Printf("restoring settings: mode=%s threshold=%d%%", saved.Mode, saved.Threshold)
			restore = saved.Commands()
		}
	}

	commands := make(chan logic.Command, commandQueueSize)
	submit := func(cmd logic.Command) bool {
		select {
		case commands <- cmd:
			return true
		default:
			return false
		}
	}

	client := mqtt.NewRealClient(mqtt.Options{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Topics:   mqtt.NewTopics(cfg.TopicPrefix),
		OnCommand: func(cmd logic.Command) {
			if !submit(cmd) {
				log.Printf("command queue full, dropping %s", cmd.Type)
			}
		},
	})
	defer client.Close()

	startTime := time.Now()
	tracker := status.NewTracker(startTime, status.Config{
		SamplePeriodMs:    cfg.SamplePeriodMs,
		PollMs:            cfg.PollIntervalMs,
		DebounceMs:        cfg.DebounceGuardMs,
		MinimumIntervalMs: cfg.MinimumIntervalMs,
		HysteresisPercent: cfg.HysteresisPercent,
		HeartbeatMs:       cfg.HeartbeatMs,
		Broker:            cfg.Broker,
		TopicPrefix:       cfg.TopicPrefix,
		HTTPAddr:          cfg.HTTPAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	m := metrics.New()

	ctrl := logic.NewController(logic.Params{
		Threshold:   cfg.ThresholdPercent,
		Hysteresis:  cfg.HysteresisPercent,
		MinInterval: cfg.MinimumInterval(),
	}, startTime)

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, submit, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	l := &loop{
		ctrl:       ctrl,
		debouncer:  logic.NewDebouncer(cfg.DebounceGuard(), false),
		cal:        cal,
		sampler:    sampler,
		button:     button,
		relay:      relay,
		publisher:  client,
		mqttStatus: client,
		tracker:    tracker,
		metrics:    m,
		settings:   settings,
		commands:   commands,
		restore:    restore,
		heartbeat:  cfg.Heartbeat(),
		notify:     sdNotify,
		now:        time.Now,
	}

	log.Printf("started: sample=%v poll=%v debounce=%v threshold=%d%% margin=%d%% interval=%v broker=%s",
		cfg.SamplePeriod(), cfg.PollInterval(), cfg.DebounceGuard(), cfg.ThresholdPercent,
		cfg.HysteresisPercent, cfg.MinimumInterval(), cfg.Broker)

	pollTicker := time.NewTicker(cfg.PollInterval())
	defer pollTicker.Stop()
	sampleTicker := time.NewTicker(cfg.SamplePeriod())
	defer sampleTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return l.run(pollTicker.C, sampleTicker.C, sigCh)
}

// sdNotify reports state to systemd. Outside systemd it is a no-op.
func sdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Printf("sd_notify: %v", err)
	}
}

func printCurrentState(sampler adc.Sampler, button gpio.Button, cal logic.Calibration) error {
	raw, err := sampler.Sample()
	if err != nil {
		return fmt.Errorf("read adc: %w", err)
	}
	pressed, err := button.Pressed()
	if err != nil {
		return fmt.Errorf("read button: %w", err)
	}
	fmt.Printf("humidity: %d%% (raw %d), button: %s\n", cal.Percent(raw), raw, pressedString(pressed))
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}
