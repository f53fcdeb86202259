// Package metrics exposes Prometheus collectors for the presell engine.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	processingTotal           *prometheus.CounterVec
	processingDurationSeconds *prometheus.HistogramVec
	captureDurationSeconds    prometheus.Histogram
	deliveriesTotal           *prometheus.CounterVec
	overlayClicksTotal        *prometheus.CounterVec
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec
	activeWorkers             prometheus.Gauge
	queueDepth                prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		processingTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presell_processing_total",
				Help: "Total processing attempts, labeled by mode and resulting status.",
			},
			[]string{"mode", "status"},
		)

		processingDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "presell_processing_duration_seconds",
				Help:    "Histogram of processing attempt durations, labeled by mode.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"mode"},
		)

		captureDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "presell_capture_duration_seconds",
				Help:    "Histogram of full screenshot sweep durations.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		)

		deliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presell_deliveries_total",
				Help: "Total presell page deliveries, labeled by variant.",
			},
			[]string{"variant"},
		)

		overlayClicksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presell_overlay_clicks_total",
				Help: "Total overlay control clicks, labeled by control.",
			},
			[]string{"control"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "presell_active_workers",
				Help: "Number of workers currently running a processing attempt.",
			},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "presell_queue_depth",
				Help: "Number of processing requests waiting in the queue.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveProcessing records one finished processing attempt.
func ObserveProcessing(mode string, status string, duration time.Duration) {
	processingTotal.WithLabelValues(mode, status).Inc()
	processingDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveCapture records the duration of one full screenshot sweep.
func ObserveCapture(duration time.Duration) {
	captureDurationSeconds.Observe(duration.Seconds())
}

// ObserveDelivery increments the delivery counter for the given variant
// (clone, screenshot, placeholder).
func ObserveDelivery(variant string) {
	deliveriesTotal.WithLabelValues(variant).Inc()
}

// ObserveOverlayClick increments the click counter for the given control.
func ObserveOverlayClick(control string) {
	overlayClicksTotal.WithLabelValues(control).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// SetQueueDepth sets the current queue depth gauge.
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}
