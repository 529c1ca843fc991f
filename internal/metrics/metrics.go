// Package metrics exposes Prometheus collectors for the search service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rolodex"

// Metrics holds the collectors of one registry. It implements
// search.Observer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	searchDuration *prometheus.HistogramVec
	searchesTotal  *prometheus.CounterVec
	zeroResults    prometheus.Counter
	degradedTotal  prometheus.Counter

	indexBuilds   *prometheus.CounterVec
	indexContacts prometheus.Histogram
}

// New creates the collectors on a fresh registry. withRuntime adds the Go
// runtime and process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Search latency by deepest tier used",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"tier"},
		),
		searchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total searches by tier",
			},
			[]string{"tier"},
		),
		zeroResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_zero_results_total",
			Help:      "Searches that returned no results",
		}),
		degradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_degraded_total",
			Help:      "Searches answered without a failed upper tier",
		}),

		indexBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_builds_total",
				Help:      "Contact index publications by operation",
			},
			[]string{"op"},
		),
		indexContacts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_batch_contacts",
			Help:      "Contacts per index mutation",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.httpRequestDuration, m.httpRequestsTotal,
		m.searchDuration, m.searchesTotal, m.zeroResults, m.degradedTotal,
		m.indexBuilds, m.indexContacts,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSearch records one search. tier is the telemetry label, "cached"
// for cache hits.
func (m *Metrics) ObserveSearch(tier string, _ bool, degraded bool, results int, latency time.Duration) {
	m.searchesTotal.WithLabelValues(tier).Inc()
	m.searchDuration.WithLabelValues(tier).Observe(latency.Seconds())
	if results == 0 {
		m.zeroResults.Inc()
	}
	if degraded {
		m.degradedTotal.Inc()
	}
}

// ObserveIndex records an index mutation of n contacts.
func (m *Metrics) ObserveIndex(op string, n int) {
	m.indexBuilds.WithLabelValues(op).Inc()
	m.indexContacts.Observe(float64(n))
}

// Middleware records HTTP request duration and count.
func (m *Metrics) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(ww.status)
			path := "unknown"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				path = normalizePath(rc.RoutePattern())
			}

			m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
			m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		})
	}
}

// normalizePath keeps label cardinality bounded by using the route pattern.
func normalizePath(path string) string {
	if path == "" {
		return "unknown"
	}
	return path
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}
