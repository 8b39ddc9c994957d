// Package prom exposes authkit engine counters as a
// prometheus.Collector so hosts can plug the engine into an existing
// registry.
package prom

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authkit "github.com/authkit-go/authkit"
)

type metricsSource interface {
	MetricsSnapshot() authkit.MetricsSnapshot
	AuditDropped() uint64
}

// Collector reads counters from an [authkit.Engine] on every scrape.
// Counters are emitted as const metrics; the engine remains the single
// source of truth.
type Collector struct {
	source  metricsSource
	descs   map[authkit.MetricID]*prometheus.Desc
	dropped *prometheus.Desc
}

// NewCollector builds a Collector over the given engine.
func NewCollector(engine *authkit.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource builds a Collector over a custom source,
// useful in tests or when wrapping the engine.
func NewCollectorFromSource(source metricsSource) *Collector {
	c := &Collector{
		source:  source,
		descs:   make(map[authkit.MetricID]*prometheus.Desc),
		dropped: prometheus.NewDesc("authkit_audit_dropped_total", "Audit events dropped due to dispatcher backpressure.", nil, nil),
	}

	for id, help := range counterHelp {
		c.descs[id] = prometheus.NewDesc("authkit_"+id.Name()+"_total", help, nil, nil)
	}

	return c
}

var counterHelp = map[authkit.MetricID]string{
	authkit.MetricLoginSuccess:   "Successful credential logins.",
	authkit.MetricLoginFailure:   "Rejected credential logins.",
	authkit.MetricRegistration:   "Created accounts.",
	authkit.MetricAccessAccepted: "Requests authenticated by a valid access cookie.",
	authkit.MetricRefreshSuccess: "Requests authenticated via the refresh fallback.",
	authkit.MetricUnauthorized:   "Requests that failed both cookie paths.",
	authkit.MetricRevocation:     "Explicit token revocations.",
	authkit.MetricPasswordChange: "Completed password changes.",
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range c.descs {
		ch <- desc
	}
	ch <- c.dropped
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()
	for id, desc := range c.descs {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(snapshot.Counters[id]))
	}
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// Handler registers the collector on a fresh registry and returns a
// scrape handler, for hosts that do not run their own registry.
func Handler(engine *authkit.Engine) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(engine))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
