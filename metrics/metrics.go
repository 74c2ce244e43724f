// Package metrics provides Prometheus metrics for the HTTP server and the
// forecast pipeline.
//
// HTTP:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Pipeline:
//   - forecast_runs_total: Counter with a result label (success, error, unchanged)
//   - forecast_run_duration_seconds: Histogram of full recomputations
//   - forecast_warnings_total: Counter of run warnings by code
//   - forecast_conservation_ratio: Gauge of the latest base allocation
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/giygas/regimen-forecast/entities"
)

// Run results
const (
	RunSuccess   = "success"
	RunError     = "error"
	RunUnchanged = "unchanged"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_runs_total",
			Help: "Forecast recomputations by result",
		},
		[]string{"result"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forecast_run_duration_seconds",
			Help:    "Duration of a full load, allocate, dose and forecast pass",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	WarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_warnings_total",
			Help: "Warnings recorded by computed runs, by code",
		},
		[]string{"code"},
	)

	ConservationRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forecast_conservation_ratio",
			Help: "Allocated patients over treated pool for the latest base allocation",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(WarningsTotal)
	prometheus.MustRegister(ConservationRatio)
}

// RecordRun updates the pipeline metrics after a recomputation
func RecordRun(result string, duration time.Duration, allocation *entities.AllocationResult, warnings []entities.Warning) {
	RunsTotal.WithLabelValues(result).Inc()
	if result != RunSuccess {
		return
	}

	RunDuration.Observe(duration.Seconds())
	for _, w := range warnings {
		WarningsTotal.WithLabelValues(w.Code).Inc()
	}
	if allocation != nil {
		ConservationRatio.Set(allocation.ConservationRatio)
	}
}
