package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for the scoring API

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "handler", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraud",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"method", "handler"},
	)

	// Scoring metrics
	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud",
			Subsystem: "scoring",
			Name:      "predictions_total",
			Help:      "Total number of scored transactions by verdict",
		},
		[]string{"verdict"},
	)

	// Model metrics
	modelReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud",
			Subsystem: "model",
			Name:      "reloads_total",
			Help:      "Total number of operator-triggered model reloads",
		},
		[]string{"result"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fraud",
			Name:      "build_info",
			Help:      "Build information of the running binary",
		},
		[]string{"version", "environment"},
	)
)

// promMetrics implements rest.Metrics on the default Prometheus registry
type promMetrics struct{}

func (promMetrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (promMetrics) ObservePrediction(isFraud bool) {
	verdict := "legit"
	if isFraud {
		verdict = "fraud"
	}
	predictionsTotal.WithLabelValues(verdict).Inc()
}

func (promMetrics) ObserveReload(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	modelReloadsTotal.WithLabelValues(result).Inc()
}

// metricsHandler exposes the default registry for scraping
func metricsHandler() http.Handler {
	return promhttp.Handler()
}
