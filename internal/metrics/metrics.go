// Package metrics exposes storage-tier and upload counters in the Prometheus
// exposition format. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gallery"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	registry   *prometheus.Registry
	storageOps *prometheus.CounterVec
	uploads    *prometheus.CounterVec
	likes      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		storageOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Storage operations by tier, operation and result.",
		}, []string{"tier", "op", "result"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Photo submissions by outcome.",
		}, []string{"result"}),
		likes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "like_toggles_total",
			Help:      "Like toggles applied to existing photos.",
		}),
	}
	reg.MustRegister(
		m.storageOps,
		m.uploads,
		m.likes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// StorageOp counts one operation against a storage tier.
func (m *Metrics) StorageOp(tier, op, result string) {
	if m == nil {
		return
	}
	m.storageOps.WithLabelValues(tier, op, result).Inc()
}

// Upload counts a submission outcome such as "created", "rejected" or "read_error".
func (m *Metrics) Upload(result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
}

func (m *Metrics) LikeToggled() {
	if m == nil {
		return
	}
	m.likes.Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
