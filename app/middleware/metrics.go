package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	clicksTrackedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clicks_tracked_total",
			Help: "Total number of clicks tracked",
		},
	)

	conversionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversions_created_total",
			Help: "Total number of conversions created from postbacks",
		},
	)

	fraudFlagsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraud_flags_total",
			Help: "Total number of clicks flagged by the fraud rules",
		},
		[]string{"type", "severity"},
	)

	postbackRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postback_rejections_total",
			Help: "Total number of rejected postback attempts",
		},
		[]string{"reason"},
	)
)

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path // Use route template to avoid high cardinality
		}

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// Domain counter hooks, called from the handlers

func RecordClickTracked() {
	clicksTrackedTotal.Inc()
}

func RecordConversionCreated() {
	conversionsCreatedTotal.Inc()
}

func RecordFraudFlag(fraudType, severity string) {
	fraudFlagsTotal.With(prometheus.Labels{"type": fraudType, "severity": severity}).Inc()
}

func RecordPostbackRejection(reason string) {
	postbackRejectionsTotal.With(prometheus.Labels{"reason": reason}).Inc()
}
