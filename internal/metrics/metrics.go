// Package metrics exposes the Prometheus collectors shared by the functions.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricPrefix = "meter_reader_"

// Result labels
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultFallback = "fallback"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "requests_total",
			Help: "Total number of function invocations by function, method and status.",
		},
		[]string{"function", "method", "status"},
	)
	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "request_duration_seconds",
			Help:    "Function invocation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"function", "method"},
	)

	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "scans_total",
			Help: "Total meter photo scans by scanner and result.",
		},
		[]string{"scanner", "result"},
	)
	scanDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "scan_duration_seconds",
			Help:    "Meter photo scan latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scanner"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "notifications_total",
			Help: "Total notification deliveries by result.",
		},
		[]string{"result"},
	)
)

// ObserveRequest records one handled invocation
func ObserveRequest(function, method string, status int, dur time.Duration) {
	if function == "" {
		function = "unknown"
	}
	requestsTotal.WithLabelValues(function, method, strconv.Itoa(status)).Inc()
	requestDurationSeconds.WithLabelValues(function, method).Observe(dur.Seconds())
}

// ObserveScan records one scan attempt
func ObserveScan(scanner, result string, dur time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	scansTotal.WithLabelValues(scanner, result).Inc()
	scanDurationSeconds.WithLabelValues(scanner).Observe(dur.Seconds())
}

// IncNotification counts one notification delivery attempt
func IncNotification(result string) {
	if result == "" {
		result = ResultSuccess
	}
	notificationsTotal.WithLabelValues(result).Inc()
}
