// Package metrics records client-side counters for backend calls and alerts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the backend client and the expiry monitor report to.
type Recorder interface {
	RecordRequest(op string, outcome string, d time.Duration)
	RecordAlert(items int)
}

type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	alerts   prometheus.Counter
	alerted  prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pantry_backend_requests_total",
			Help: "Backend calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pantry_backend_request_seconds",
			Help:    "Backend call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pantry_expiry_alerts_total",
			Help: "Expiration notifications emitted.",
		}),
		alerted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pantry_expiry_alerted_items_total",
			Help: "Items named across all expiration notifications.",
		}),
	}
	reg.MustRegister(c.requests, c.latency, c.alerts, c.alerted)
	return c
}

func (c *Collector) RecordRequest(op string, outcome string, d time.Duration) {
	c.requests.WithLabelValues(op, outcome).Inc()
	c.latency.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) RecordAlert(items int) {
	c.alerts.Inc()
	c.alerted.Add(float64(items))
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRequest(string, string, time.Duration) {}
func (Nop) RecordAlert(int)                             {}

// Handler serves the gatherer for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
