// Package metrics exposes the vault's prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "credvault"

// Collector is a prometheus.Collector for HTTP traffic and vault security
// events. Label values never include credential ids or actor ids.
type Collector struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	unlockAttempts *prometheus.CounterVec
	disclosures    *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "The number of HTTP requests served, by route pattern and status code.",
			}, []string{"route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "The time taken to serve an HTTP request, by route pattern.",
				Buckets: prometheus.DefBuckets,
			}, []string{"route"},
		),
		unlockAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "unlock_attempts_total",
				Help:      "The number of unlock attempts, by outcome.",
			}, []string{"outcome"},
		),
		disclosures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reveals_total",
				Help:      "The number of reveal attempts, by outcome.",
			}, []string{"outcome"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.requests.Describe(ch)
	c.duration.Describe(ch)
	c.unlockAttempts.Describe(ch)
	c.disclosures.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.requests.Collect(ch)
	c.duration.Collect(ch)
	c.unlockAttempts.Collect(ch)
	c.disclosures.Collect(ch)
}

// ObserveRequest records one served request. An empty route is reported as
// "unmatched" to keep label cardinality bounded.
func (c *Collector) ObserveRequest(route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// UnlockAttempt counts an unlock attempt with the given outcome.
func (c *Collector) UnlockAttempt(outcome string) {
	c.unlockAttempts.WithLabelValues(outcome).Inc()
}

// Reveal counts a reveal attempt with the given outcome.
func (c *Collector) Reveal(outcome string) {
	c.disclosures.WithLabelValues(outcome).Inc()
}

// NewRegistry returns a registry holding c plus the standard Go runtime and
// process collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the prometheus text exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
