// Package metrics exposes shapecam counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/naomi-pc/Autonomous-Vehicle/internal/detection"
)

const namespace = "shapecam"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	framesCaptured  prometheus.Counter
	framesDropped   prometheus.Counter
	framesProcessed prometheus.Counter
	decodeErrors    prometheus.Counter
	frameBytes      prometheus.Histogram
	processSeconds  prometheus.Histogram
	detections      *prometheus.CounterVec
	streamClients   prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_captured_total",
			Help:      "Frames decoded from the camera stream.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Captured frames overwritten before they were processed.",
		}),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames that went through detection.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Stream parts that could not be decoded as JPEG.",
		}),
		frameBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_size_bytes",
			Help:      "Size of the JPEG frames received from the camera.",
			Buckets:   prometheus.ExponentialBuckets(4<<10, 2, 8),
		}),
		processSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_seconds",
			Help:      "Time spent detecting and annotating one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Classified shapes by kind and arrow direction.",
		}, []string{"kind", "direction"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected MJPEG and websocket clients.",
		}),
	}

	m.registry.MustRegister(
		m.framesCaptured,
		m.framesDropped,
		m.framesProcessed,
		m.decodeErrors,
		m.frameBytes,
		m.processSeconds,
		m.detections,
		m.streamClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// FrameCaptured records a decoded frame. dropped reports that it replaced a
// frame nobody had processed yet.
func (m *Metrics) FrameCaptured(sizeBytes int, dropped bool) {
	m.framesCaptured.Inc()
	m.frameBytes.Observe(float64(sizeBytes))
	if dropped {
		m.framesDropped.Inc()
	}
}

// DecodeFailed records an undecodable frame.
func (m *Metrics) DecodeFailed() {
	m.decodeErrors.Inc()
}

// FrameProcessed records one detection pass and its result.
func (m *Metrics) FrameProcessed(elapsed time.Duration, result *detection.Result) {
	m.framesProcessed.Inc()
	m.processSeconds.Observe(elapsed.Seconds())
	if result == nil {
		return
	}
	for _, s := range result.Shapes {
		m.detections.WithLabelValues(string(s.Kind), string(s.Direction)).Inc()
	}
}

// ClientConnected and ClientDisconnected track live stream clients.
func (m *Metrics) ClientConnected()    { m.streamClients.Inc() }
func (m *Metrics) ClientDisconnected() { m.streamClients.Dec() }

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
