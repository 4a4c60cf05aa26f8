// Package metrics exposes Prometheus collectors for sweep analysis and
// the HTTP service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kacperjurak/tafelcore"
)

const namespace = "tafel"

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	SweepsAnalyzed  *prometheus.CounterVec
	SearchSeconds   prometheus.Histogram
	CandidatePoints prometheus.Histogram
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New registers the collectors on reg, or on a fresh registry with the Go
// and process collectors when reg is nil.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SweepsAnalyzed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_analyzed_total",
			Help:      "Sweeps analyzed, by outcome.",
		}, []string{"outcome"}),
		SearchSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segment_search_seconds",
			Help:      "Time spent analyzing one sweep.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		CandidatePoints: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_points",
			Help:      "Forward-scan rows per analyzed sweep.",
			Buckets:   prometheus.ExponentialBuckets(8, 2, 10),
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAnalysis records one analyzed sweep. points is the number of
// forward-scan rows, zero when the sweep failed before derivation.
func (m *Metrics) ObserveAnalysis(err error, points int, d time.Duration) {
	m.SweepsAnalyzed.WithLabelValues(tafelcore.ErrorKind(err)).Inc()
	m.SearchSeconds.Observe(d.Seconds())
	if points > 0 {
		m.CandidatePoints.Observe(float64(points))
	}
}
