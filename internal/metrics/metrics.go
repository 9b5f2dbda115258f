// Package metrics exposes prometheus collectors for engagement and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "swirl"

// Collectors groups the service metrics. A nil *Collectors records nothing.
type Collectors struct {
	gatherer          prometheus.Gatherer
	toggleTransitions *prometheus.CounterVec
	guardRejections   *prometheus.CounterVec
	notifyFailures    *prometheus.CounterVec
	rateLimited       *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Collectors {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(registry, registry)
}

// NewWithRegistry registers the collectors on registerer and serves gatherer.
func NewWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Collectors {
	factory := promauto.With(registerer)
	return &Collectors{
		gatherer: gatherer,
		toggleTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggle_transitions_total",
			Help:      "Toggle engine outcomes by relation and transition.",
		}, []string{"relation", "transition"}),
		guardRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_guard_rejections_total",
			Help:      "Counter decrements refused because they would go below zero.",
		}, []string{"counter"}),
		notifyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be stored.",
		}, []string{"action"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"rule"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ToggleTransition records a toggle engine outcome.
func (c *Collectors) ToggleTransition(relation, transition string) {
	if c == nil {
		return
	}
	c.toggleTransitions.WithLabelValues(relation, transition).Inc()
}

// CounterGuardRejected records a refused decrement.
func (c *Collectors) CounterGuardRejected(counter string) {
	if c == nil {
		return
	}
	c.guardRejections.WithLabelValues(counter).Inc()
}

// NotificationFailed records a dropped notification.
func (c *Collectors) NotificationFailed(action string) {
	if c == nil {
		return
	}
	c.notifyFailures.WithLabelValues(action).Inc()
}

// RateLimited records a request rejected by rule.
func (c *Collectors) RateLimited(rule string) {
	if c == nil {
		return
	}
	c.rateLimited.WithLabelValues(rule).Inc()
}

// ObserveRequest records one completed HTTP request.
func (c *Collectors) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
