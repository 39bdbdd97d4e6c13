// Package observability exposes Prometheus instrumentation shared across the service.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	schedulePersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "schedule_service",
		Subsystem: "persistence",
		Name:      "last_schedule_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent schedule persisted to Postgres.",
	})
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedule_service",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route and status code.",
	}, []string{"method", "route", "status"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "schedule_service",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of HTTP requests by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(schedulePersistGauge, httpRequests, httpDuration)
}

// RecordSchedulePersisted updates the persistence watermark gauge.
func RecordSchedulePersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	schedulePersistGauge.Set(float64(ts.Unix()))
}

// RecordHTTPRequest tracks a served request.
func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
