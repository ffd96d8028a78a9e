// Package metrics exposes controller state as Prometheus metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

const namespace = "irrigation"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	humidity      prometheus.Gauge
	threshold     prometheus.Gauge
	pump          prometheus.Gauge
	manual        prometheus.Gauge
	mqttConnected prometheus.Gauge
	events        *prometheus.CounterVec
	deferred      prometheus.Counter
	sensorErrors  prometheus.Counter

	lastDeferred int
	// humidity is registered on the first valid reading so no series is
	// exported before the sensor has been read.
	humidityOnce sync.Once
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Last valid soil humidity reading.",
		}),
		threshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold_percent",
			Help:      "Humidity below which automatic watering starts.",
		}),
		pump: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_on",
			Help:      "1 while the pump relay is energized.",
		}),
		manual: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "manual_mode",
			Help:      "1 in manual mode, 0 in automatic mode.",
		}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the broker connection is up.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Controller transitions by type and cause.",
		}, []string{"type", "cause"}),
		deferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deferred_activations_total",
			Help:      "Cycles where watering was wanted but the minimum interval had not elapsed.",
		}),
		sensorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_errors_total",
			Help:      "Failed humidity samples.",
		}),
	}
	m.registry.MustRegister(
		m.threshold, m.pump, m.manual, m.mqttConnected,
		m.events, m.deferred, m.sensorErrors,
	)
	return m
}

// Observe records the outcome of one controller step. counts is the
// controller's running total, used to advance the deferred counter.
func (m *Metrics) Observe(res logic.Result, counts logic.EventCounts) {
	s := res.Snapshot
	m.threshold.Set(float64(s.Threshold))
	m.pump.Set(boolToFloat(s.PumpOn))
	m.manual.Set(boolToFloat(s.Mode == logic.ModeManual))

	for _, e := range res.Events {
		m.events.WithLabelValues(string(e.Type), string(e.Cause)).Inc()
	}
	if d := counts.Deferred - m.lastDeferred; d > 0 {
		m.deferred.Add(float64(d))
	}
	m.lastDeferred = counts.Deferred
}

// Humidity records a valid reading.
func (m *Metrics) Humidity(percent int) {
	m.humidityOnce.Do(func() { m.registry.MustRegister(m.humidity) })
	m.humidity.Set(float64(percent))
}

// SensorError counts a failed sample.
func (m *Metrics) SensorError() {
	m.sensorErrors.Inc()
}

// SetMQTTConnected records the broker connection state.
func (m *Metrics) SetMQTTConnected(connected bool) {
	m.mqttConnected.Set(boolToFloat(connected))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
