// Package metrics exposes per-process Prometheus registries for the
// api and indexer services. Each service owns its own registry so a
// scrape never mixes the two.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal      *prometheus.CounterVec
	searchDegraded   *prometheus.CounterVec
	searchResults    *prometheus.HistogramVec
	searchDuration   *prometheus.HistogramVec
	quotaRejections  *prometheus.CounterVec
	exportsTotal     *prometheus.CounterVec
	aiResponsesTotal *prometheus.CounterVec
}

func NewAPIMetrics(service string) *APIMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archive",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "archive",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total completed searches by executed mode.",
		},
		[]string{"service", "mode"},
	)
	searchDegraded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "search",
			Name:      "degraded_total",
			Help:      "Searches that fell back from the requested mode.",
		},
		[]string{"service", "mode"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archive",
			Subsystem: "search",
			Name:      "result_count",
			Help:      "Distribution of result counts per search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 15, 20},
		},
		[]string{"service", "mode"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archive",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	quotaRejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "usage",
			Name:      "quota_rejections_total",
			Help:      "Requests rejected by usage limits.",
		},
		[]string{"service", "operation"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "export",
			Name:      "reports_total",
			Help:      "Generated report downloads by format.",
		},
		[]string{"service", "format"},
	)
	aiResponsesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "ai",
			Name:      "responses_total",
			Help:      "AI synthesis calls by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDegraded,
		searchResults,
		searchDuration,
		quotaRejections,
		exportsTotal,
		aiResponsesTotal,
	)

	return &APIMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		searchTotal:      searchTotal,
		searchDegraded:   searchDegraded,
		searchResults:    searchResults,
		searchDuration:   searchDuration,
		quotaRejections:  quotaRejections,
		exportsTotal:     exportsTotal,
		aiResponsesTotal: aiResponsesTotal,
	}
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/sessions/") {
		return "/v1/sessions/{session_id}"
	}
	return path
}

func (m *APIMetrics) RecordSearch(service, mode string, degraded bool, resultCount int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.searchTotal.WithLabelValues(service, mode).Inc()
	m.searchResults.WithLabelValues(service, mode).Observe(float64(resultCount))
	m.searchDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
	if degraded {
		m.searchDegraded.WithLabelValues(service, mode).Inc()
	}
}

func (m *APIMetrics) RecordQuotaRejection(service, operation string) {
	m.quotaRejections.WithLabelValues(service, operation).Inc()
}

func (m *APIMetrics) RecordExport(service, format string) {
	m.exportsTotal.WithLabelValues(service, format).Inc()
}

func (m *APIMetrics) RecordAIResponse(service, kind, status string) {
	if status == "" {
		status = "unknown"
	}
	m.aiResponsesTotal.WithLabelValues(service, kind, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
