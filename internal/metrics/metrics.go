// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ayasync_http_requests_total",
		Help: "HTTP requests by method, route template and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ayasync_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route template.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RealtimeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ayasync_realtime_sessions",
		Help: "Currently connected realtime sessions.",
	})

	RealtimeEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ayasync_realtime_events_published_total",
		Help: "Realtime events handed to sessions, by event name.",
	}, []string{"event"})

	RealtimeEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ayasync_realtime_events_dropped_total",
		Help: "Realtime events dropped because a session's send buffer was full.",
	}, []string{"event"})

	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ayasync_auth_failures_total",
		Help: "Rejected authentication attempts by reason.",
	}, []string{"reason"})
)

// Handler serves the default registry in the prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
