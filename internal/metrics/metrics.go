// Package metrics exposes Prometheus metrics for the HTTP layer and the
// records service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

const namespace = "agrorecords"

// Metrics owns a registry and the collectors registered on it. It
// implements core.Observer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	recordsListed   *prometheus.CounterVec
	pageRows        prometheus.Histogram
	sortFallbacks   prometheus.Counter
	ingestBatches   *prometheus.CounterVec
	ingestRows      *prometheus.CounterVec
	ingestViolation prometheus.Counter
	recordsMutated  *prometheus.CounterVec
}

var _ core.Observer = (*Metrics)(nil)

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		recordsListed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_requests_total",
			Help:      "Record list queries served, by caller role.",
		}, []string{"role"}),
		pageRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "list_page_rows",
			Help:      "Records returned per list page.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		sortFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sort_fallbacks_total",
			Help:      "List or export requests whose sort key was replaced by the default.",
		}),
		ingestBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_batches_total",
			Help:      "CSV batches by final phase.",
		}, []string{"phase"}),
		ingestRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_total",
			Help:      "CSV data rows read, by the final phase of their batch.",
		}, []string{"phase"}),
		ingestViolation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_violations_total",
			Help:      "Validation violations found in rejected batches.",
		}),
		recordsMutated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_mutated_total",
			Help:      "Records created, updated or deleted, by audit action.",
		}, []string{"action"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.recordsListed,
		m.pageRows,
		m.sortFallbacks,
		m.ingestBatches,
		m.ingestRows,
		m.ingestViolation,
		m.recordsMutated,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterIngestGauges exposes the ingestion limiter state.
func (m *Metrics) RegisterIngestGauges(status func() core.IngestStatus) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_active",
			Help:      "CSV batches currently being ingested.",
		}, func() float64 { return float64(status().Active) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_slots",
			Help:      "Maximum concurrent CSV ingestions.",
		}, func() float64 { return float64(status().MaxConcurrent) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency. Routes are labelled by
// their chi pattern so path parameters do not create new series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RecordsListed(role core.Role, returned int) {
	m.recordsListed.WithLabelValues(string(role)).Inc()
	m.pageRows.Observe(float64(returned))
}

func (m *Metrics) SortFellBack(string) {
	m.sortFallbacks.Inc()
}

func (m *Metrics) IngestFinished(phase core.IngestPhase, rows, violations int) {
	m.ingestBatches.WithLabelValues(string(phase)).Inc()
	m.ingestRows.WithLabelValues(string(phase)).Add(float64(rows))
	if violations > 0 {
		m.ingestViolation.Add(float64(violations))
	}
}

func (m *Metrics) RecordsMutated(action core.AuditAction, n int64) {
	if n > 0 {
		m.recordsMutated.WithLabelValues(string(action)).Add(float64(n))
	}
}
