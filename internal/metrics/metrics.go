// Package metrics exposes pipeline and persistence counters in Prometheus format.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Frame pipeline
	FramesProcessed   atomic.Uint64
	FramesSynthetic   atomic.Uint64
	DetectionMisses   atomic.Uint64
	MeasureFailures   atomic.Uint64
	EncodeFailures    atomic.Uint64
	PipelinePanics    atomic.Uint64
	ProcessLatencyUs  atomic.Uint64
	StreamSubscribers atomic.Int64

	// Side channel
	Emissions      atomic.Uint64
	EmitFailures   atomic.Uint64
	LiveWebClients atomic.Int64

	// Device
	AcquireAttempts atomic.Uint64
	AcquireFailures atomic.Uint64
	DeviceLive      atomic.Uint64 // 0 = closed/degraded, 1 = live

	// Snapshot log
	Captures        atomic.Uint64
	CaptureFailures atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) gauge(name, help string, value func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "posturecam", Name: name, Help: help},
		value,
	))
}

func (m *Metrics) registerPrometheusMetrics() {
	m.gauge("frames_processed_total", "Total frames run through the pipeline",
		func() float64 { return float64(m.FramesProcessed.Load()) })
	m.gauge("frames_synthetic_total", "Total synthetic frames served while degraded or after a failure",
		func() float64 { return float64(m.FramesSynthetic.Load()) })
	m.gauge("detection_misses_total", "Frames where the pose detector found no body",
		func() float64 { return float64(m.DetectionMisses.Load()) })
	m.gauge("measure_failures_total", "Frames whose landmarks could not be measured",
		func() float64 { return float64(m.MeasureFailures.Load()) })
	m.gauge("encode_failures_total", "Frames that failed JPEG encoding",
		func() float64 { return float64(m.EncodeFailures.Load()) })
	m.gauge("pipeline_panics_total", "Recovered panics in frame processing",
		func() float64 { return float64(m.PipelinePanics.Load()) })
	m.gauge("process_latency_us", "Latest frame processing latency in microseconds",
		func() float64 { return float64(m.ProcessLatencyUs.Load()) })
	m.gauge("stream_subscribers", "Active MJPEG stream subscribers",
		func() float64 { return float64(m.StreamSubscribers.Load()) })

	m.gauge("emissions_total", "Live readings delivered to the side channel",
		func() float64 { return float64(m.Emissions.Load()) })
	m.gauge("emit_failures_total", "Live readings the side channel failed to deliver",
		func() float64 { return float64(m.EmitFailures.Load()) })
	m.gauge("live_clients", "Connected live websocket clients",
		func() float64 { return float64(m.LiveWebClients.Load()) })

	m.gauge("acquire_attempts_total", "Device open attempts",
		func() float64 { return float64(m.AcquireAttempts.Load()) })
	m.gauge("acquire_failures_total", "Device acquisitions that exhausted their retries",
		func() float64 { return float64(m.AcquireFailures.Load()) })
	m.gauge("device_live", "Device state (0=closed or degraded, 1=live)",
		func() float64 { return float64(m.DeviceLive.Load()) })

	m.gauge("captures_total", "Measurements captured into the history",
		func() float64 { return float64(m.Captures.Load()) })
	m.gauge("capture_failures_total", "Captures rejected or not persisted",
		func() float64 { return float64(m.CaptureFailures.Load()) })
}

// UpdateProcessLatency records the duration of the latest frame.
func (m *Metrics) UpdateProcessLatency(d time.Duration) {
	m.ProcessLatencyUs.Store(uint64(d.Microseconds()))
}

// SetDeviceLive records whether the device manager is live.
func (m *Metrics) SetDeviceLive(live bool) {
	if live {
		m.DeviceLive.Store(1)
		return
	}
	m.DeviceLive.Store(0)
}

// Registry returns the private registry, for tests and additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
