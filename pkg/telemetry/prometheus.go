package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors bundles the Prometheus metrics served on the scrape endpoint.
// They complement the OTLP pipeline for deployments that scrape rather than
// push.
type Collectors struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	ViolationsTotal *prometheus.CounterVec
	ScansTotal      prometheus.Counter
	QueueDepth      prometheus.Gauge
	RequestDuration *prometheus.HistogramVec
}

// NewCollectors creates and registers the collectors on a private registry.
func NewCollectors() *Collectors {
	registry := prometheus.NewRegistry()

	c := &Collectors{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lexinel_requests_total",
			Help: "Completed compliance requests partitioned by terminal stage.",
		}, []string{"terminal_stage"}),
		ViolationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lexinel_violations_total",
			Help: "Detected violations partitioned by rule.",
		}, []string{"rule_id"}),
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexinel_batch_scans_total",
			Help: "Batch transaction scans executed.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lexinel_violation_queue_depth",
			Help: "Violations currently pending analyst review.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lexinel_request_duration_seconds",
			Help:    "End-to-end request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"terminal_stage"}),
	}

	registry.MustRegister(
		c.RequestsTotal,
		c.ViolationsTotal,
		c.ScansTotal,
		c.QueueDepth,
		c.RequestDuration,
	)
	return c
}

// Handler serves the scrape endpoint for the private registry.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
