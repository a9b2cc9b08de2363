// Package metrics exposes workflow outcome counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the workflows report into.
type Recorder interface {
	RecordConnection(platform, outcome string)
	RecordDisconnect(platform string)
	RecordPreview(outcome string, latency time.Duration)
	RecordPublish(platform, outcome string)
	RecordDraftsSwept(count int)
}

type Collector struct {
	connections    *prometheus.CounterVec
	disconnects    *prometheus.CounterVec
	previews       *prometheus.CounterVec
	previewLatency prometheus.Histogram
	publishes      *prometheus.CounterVec
	draftsSwept    prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postify_connection_attempts_total",
			Help: "Credential submissions by platform and outcome.",
		}, []string{"platform", "outcome"}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postify_disconnects_total",
			Help: "Platforms disconnected by users.",
		}, []string{"platform"}),
		previews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postify_previews_total",
			Help: "Preview generations by outcome.",
		}, []string{"outcome"}),
		previewLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "postify_preview_latency_seconds",
			Help:    "Latency of the preview generation service.",
			Buckets: prometheus.DefBuckets,
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postify_publishes_total",
			Help: "Publish attempts by platform and outcome.",
		}, []string{"platform", "outcome"}),
		draftsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postify_drafts_swept_total",
			Help: "Idle drafts discarded by the sweeper.",
		}),
	}

	reg.MustRegister(
		c.connections,
		c.disconnects,
		c.previews,
		c.previewLatency,
		c.publishes,
		c.draftsSwept,
	)

	return c
}

func (c *Collector) RecordConnection(platform, outcome string) {
	c.connections.WithLabelValues(platform, outcome).Inc()
}

func (c *Collector) RecordDisconnect(platform string) {
	c.disconnects.WithLabelValues(platform).Inc()
}

func (c *Collector) RecordPreview(outcome string, latency time.Duration) {
	c.previews.WithLabelValues(outcome).Inc()
	c.previewLatency.Observe(latency.Seconds())
}

func (c *Collector) RecordPublish(platform, outcome string) {
	c.publishes.WithLabelValues(platform, outcome).Inc()
}

func (c *Collector) RecordDraftsSwept(count int) {
	c.draftsSwept.Add(float64(count))
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordConnection(string, string) {}
func (Nop) RecordDisconnect(string) {}
func (Nop) RecordPreview(string, time.Duration) {}
func (Nop) RecordPublish(string, string) {}
func (Nop) RecordDraftsSwept(int) {}

// Handler serves the gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
