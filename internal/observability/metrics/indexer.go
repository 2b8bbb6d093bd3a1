package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type IndexerMetrics struct {
	registry *prometheus.Registry

	issueTotal    *prometheus.CounterVec
	issueDuration *prometheus.HistogramVec
	issueInFlight prometheus.Gauge
	chunksIndexed *prometheus.CounterVec
}

func NewIndexerMetrics(service string) *IndexerMetrics {
	registry := prometheus.NewRegistry()

	issueTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "indexer",
			Name:      "issues_total",
			Help:      "Total indexed issues by status.",
		},
		[]string{"service", "status"},
	)
	issueDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archive",
			Subsystem: "indexer",
			Name:      "issue_duration_seconds",
			Help:      "Issue indexing duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "status"},
	)
	issueInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "archive",
			Subsystem:   "indexer",
			Name:        "issues_in_flight",
			Help:        "Number of issues currently being indexed.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	chunksIndexed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "indexer",
			Name:      "chunks_total",
			Help:      "Total chunks written to the indices.",
		},
		[]string{"service"},
	)

	registry.MustRegister(issueTotal, issueDuration, issueInFlight, chunksIndexed)

	return &IndexerMetrics{
		registry:      registry,
		issueTotal:    issueTotal,
		issueDuration: issueDuration,
		issueInFlight: issueInFlight,
		chunksIndexed: chunksIndexed,
	}
}

func (m *IndexerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IndexerMetrics) StartIssue() {
	m.issueInFlight.Inc()
}

func (m *IndexerMetrics) FinishIssue(service string, duration time.Duration, err error) {
	m.issueInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.issueTotal.WithLabelValues(service, status).Inc()
	m.issueDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *IndexerMetrics) AddChunks(service string, count int) {
	if count <= 0 {
		return
	}
	m.chunksIndexed.WithLabelValues(service).Add(float64(count))
}
