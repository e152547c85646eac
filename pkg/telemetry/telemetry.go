// Package telemetry provides Prometheus instrumentation for the external AI
// calls: counters for call outcomes and histograms for call latency.
package telemetry

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// InferenceCalls counts LLM calls, labeled by operation (summary,
	// refine, correct, extract, tags) and status ("ok" or "error").
	InferenceCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comicinsights_inference_calls_total",
		Help: "Total number of LLM inference calls",
	}, []string{"operation", "status"})

	// InferenceDuration records LLM call latency in seconds.
	InferenceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "comicinsights_inference_duration_seconds",
		Help:    "LLM inference call latency in seconds",
		Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"operation"})

	// GenerationCalls counts image generation calls by status.
	GenerationCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comicinsights_generation_calls_total",
		Help: "Total number of image generation calls",
	}, []string{"status"})

	// GenerationDuration records image generation latency in seconds.
	GenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "comicinsights_generation_duration_seconds",
		Help:    "Image generation latency in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})

	// ActiveSessions tracks the number of live sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comicinsights_active_sessions",
		Help: "Current number of in-memory sessions",
	})
)

func init() {
	prometheus.MustRegister(
		InferenceCalls,
		InferenceDuration,
		GenerationCalls,
		GenerationDuration,
		ActiveSessions,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Track wraps an operation with timing, status counting, and start/finish
// logs.
func Track(operation string, fn func() error) error {
	log.Debug("starting operation", "operation", operation)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		log.Error("operation failed", "operation", operation, "duration", elapsed, "error", err)
	} else {
		log.Debug("completed operation", "operation", operation, "duration", elapsed)
	}

	InferenceCalls.WithLabelValues(operation, status).Inc()
	InferenceDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	return err
}
