// Package config loads daemon configuration from defaults, an optional YAML
// file and IRRIGATION_* environment variables (optionally from .env).
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/sweeney/irrigation-controller/internal/adc"
	"github.com/sweeney/irrigation-controller/internal/gpio"
)

const envPrefix = "IRRIGATION_"

// Config holds runtime configuration for the irrigation daemon.
type Config struct {
	// Control loop
	SamplePeriodMs    int64 `yaml:"sample_period_ms"`
	PollIntervalMs    int64 `yaml:"poll_interval_ms"`
	DebounceGuardMs   int64 `yaml:"debounce_guard_ms"`
	MinimumIntervalMs int64 `yaml:"minimum_interval_ms"`
	HysteresisPercent int   `yaml:"hysteresis_margin_percent"`
	ThresholdPercent  int   `yaml:"initial_threshold_percent"`
	HeartbeatMs       int64 `yaml:"heartbeat_ms"`

	// Sensor calibration
	RawLow  int    `yaml:"raw_low"`
	RawHigh int    `yaml:"raw_high"`
	ADCMax  int    `yaml:"adc_max"`
	ADCPath string `yaml:"adc_path"`

	// Hardware
	GPIOChip       string `yaml:"gpio_chip"`
	PinButton      int    `yaml:"pin_button"`
	PinRelay       int    `yaml:"pin_relay"`
	RelayActiveLow bool   `yaml:"relay_active_low"`

	// Remote sync and status
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	HTTPAddr    string `yaml:"http_addr"`
	StateDB     string `yaml:"state_db"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		SamplePeriodMs:    2000,
		PollIntervalMs:    20,
		DebounceGuardMs:   50,
		MinimumIntervalMs: (30 * time.Minute).Milliseconds(),
		HysteresisPercent: 5,
		ThresholdPercent:  30,
		HeartbeatMs:       (15 * time.Minute).Milliseconds(),

		RawLow:  3500,
		RawHigh: 1500,
		ADCMax:  4095,
		ADCPath: adc.DefaultPath,

		GPIOChip:       gpio.DefaultChip,
		PinButton:      gpio.DefaultPinButton,
		PinRelay:       gpio.DefaultPinRelay,
		RelayActiveLow: true,

		Broker:      "tcp://localhost:1883",
		ClientID:    "irrigation-controller",
		TopicPrefix: "garden/irrigation",
		HTTPAddr:    ":8080",
		StateDB:     "/var/lib/irrigation-controller/state.db",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides. Out-of-range values are
// clamped rather than rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: ignoring .env: %v", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	for _, msg := range cfg.Clamp() {
		log.Printf("config: %s", msg)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"HYSTERESIS_MARGIN_PERCENT", &cfg.HysteresisPercent},
		{"INITIAL_THRESHOLD_PERCENT", &cfg.ThresholdPercent},
		{"RAW_LOW", &cfg.RawLow},
		{"RAW_HIGH", &cfg.RawHigh},
		{"ADC_MAX", &cfg.ADCMax},
		{"PIN_BUTTON", &cfg.PinButton},
		{"PIN_RELAY", &cfg.PinRelay},
	}
	for _, e := range ints {
		if v := strings.TrimSpace(os.Getenv(envPrefix + e.key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, e.key, err)
			}
			*e.dst = n
		}
	}

	millis := []struct {
		key string
		dst *int64
	}{
		{"SAMPLE_PERIOD_MS", &cfg.SamplePeriodMs},
		{"POLL_INTERVAL_MS", &cfg.PollIntervalMs},
		{"DEBOUNCE_GUARD_MS", &cfg.DebounceGuardMs},
		{"MINIMUM_INTERVAL_MS", &cfg.MinimumIntervalMs},
		{"HEARTBEAT_MS", &cfg.HeartbeatMs},
	}
	for _, e := range millis {
		if v := strings.TrimSpace(os.Getenv(envPrefix + e.key)); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, e.key, err)
			}
			*e.dst = n
		}
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"ADC_PATH", &cfg.ADCPath},
		{"GPIO_CHIP", &cfg.GPIOChip},
		{"BROKER", &cfg.Broker},
		{"CLIENT_ID", &cfg.ClientID},
		{"TOPIC_PREFIX", &cfg.TopicPrefix},
		{"HTTP_ADDR", &cfg.HTTPAddr},
		{"STATE_DB", &cfg.StateDB},
	}
	for _, e := range strs {
		if v, ok := os.LookupEnv(envPrefix + e.key); ok {
			*e.dst = strings.TrimSpace(v)
		}
	}

	if v := strings.TrimSpace(os.Getenv(envPrefix + "RELAY_ACTIVE_LOW")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sRELAY_ACTIVE_LOW: %w", envPrefix, err)
		}
		cfg.RelayActiveLow = b
	}
	return nil
}

// Clamp forces every numeric option into its valid range and returns a
// description of each adjustment.
func (c *Config) Clamp() []string {
	var notes []string
	def := Default()

	clampInt := func(name string, v *int, lo, hi int) {
		orig := *v
		if *v < lo {
			*v = lo
		} else if *v > hi {
			*v = hi
		}
		if *v != orig {
			notes = append(notes, fmt.Sprintf("%s=%d out of range, using %d", name, orig, *v))
		}
	}
	positive := func(name string, v *int64, fallback int64) {
		if *v <= 0 {
			notes = append(notes, fmt.Sprintf("%s=%d must be positive, using %d", name, *v, fallback))
			*v = fallback
		}
	}
	nonNegative := func(name string, v *int64) {
		if *v < 0 {
			notes = append(notes, fmt.Sprintf("%s=%d is negative, using 0", name, *v))
			*v = 0
		}
	}

	if c.ADCMax <= 0 {
		notes = append(notes, fmt.Sprintf("adc_max=%d must be positive, using %d", c.ADCMax, def.ADCMax))
		c.ADCMax = def.ADCMax
	}
	clampInt("initial_threshold_percent", &c.ThresholdPercent, 0, 100)
	clampInt("hysteresis_margin_percent", &c.HysteresisPercent, 0, 100)
	clampInt("raw_low", &c.RawLow, 0, c.ADCMax)
	clampInt("raw_high", &c.RawHigh, 0, c.ADCMax)

	positive("sample_period_ms", &c.SamplePeriodMs, def.SamplePeriodMs)
	positive("poll_interval_ms", &c.PollIntervalMs, def.PollIntervalMs)
	nonNegative("debounce_guard_ms", &c.DebounceGuardMs)
	nonNegative("minimum_interval_ms", &c.MinimumIntervalMs)
	nonNegative("heartbeat_ms", &c.HeartbeatMs)

	if c.RawLow == c.RawHigh {
		notes = append(notes, fmt.Sprintf("raw_low == raw_high (%d): humidity will only read 0 or 100", c.RawLow))
	}
	return notes
}

// SamplePeriod returns the sensor sampling period.
func (c Config) SamplePeriod() time.Duration { return ms(c.SamplePeriodMs) }

// PollInterval returns the button/command polling period.
func (c Config) PollInterval() time.Duration { return ms(c.PollIntervalMs) }

// DebounceGuard returns the button debounce guard window.
func (c Config) DebounceGuard() time.Duration { return ms(c.DebounceGuardMs) }

// MinimumInterval returns the minimum time between pump activations.
func (c Config) MinimumInterval() time.Duration { return ms(c.MinimumIntervalMs) }

// Heartbeat returns the heartbeat interval (0 disables).
func (c Config) Heartbeat() time.Duration { return ms(c.HeartbeatMs) }

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}
