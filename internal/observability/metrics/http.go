package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics carries the api process metrics: HTTP surface plus the
// answer pipeline counters. It satisfies the pipeline's metrics contract.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	answersTotal      *prometheus.CounterVec
	cacheLookupsTotal *prometheus.CounterVec
	routeDecisions    *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	retrievalFused    prometheus.Histogram
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "parroquia",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: serviceLabel,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "parroquia",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "parroquia",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: serviceLabel,
		},
	)
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "parroquia",
			Subsystem:   "pipeline",
			Name:        "answers_total",
			Help:        "Answers served, by producing tier.",
			ConstLabels: serviceLabel,
		},
		[]string{"source"},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "parroquia",
			Subsystem:   "pipeline",
			Name:        "cache_lookups_total",
			Help:        "Cache lookups by tier and outcome.",
			ConstLabels: serviceLabel,
		},
		[]string{"tier", "result"},
	)
	routeDecisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "parroquia",
			Subsystem:   "pipeline",
			Name:        "route_decisions_total",
			Help:        "Router decisions by path and reason.",
			ConstLabels: serviceLabel,
		},
		[]string{"path", "reason"},
	)
	retrievalDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "parroquia",
			Subsystem:   "pipeline",
			Name:        "retrieval_duration_seconds",
			Help:        "Retrieval and fusion duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
	)
	retrievalFused := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "parroquia",
			Subsystem:   "pipeline",
			Name:        "retrieval_fused_candidates",
			Help:        "Fused candidates surviving per retrieval.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8},
			ConstLabels: serviceLabel,
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		answersTotal,
		cacheLookupsTotal,
		routeDecisions,
		retrievalDuration,
		retrievalFused,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		answersTotal:      answersTotal,
		cacheLookupsTotal: cacheLookupsTotal,
		routeDecisions:    routeDecisions,
		retrievalDuration: retrievalDuration,
		retrievalFused:    retrievalFused,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RouteDecision(path, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.routeDecisions.WithLabelValues(path, reason).Inc()
}

func (m *HTTPServerMetrics) CacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(tier, result).Inc()
}

func (m *HTTPServerMetrics) AnswerProduced(source string) {
	if source == "" {
		source = "unknown"
	}
	m.answersTotal.WithLabelValues(source).Inc()
}

func (m *HTTPServerMetrics) RetrievalObserved(duration time.Duration, fused int) {
	m.retrievalDuration.Observe(duration.Seconds())
	m.retrievalFused.Observe(float64(fused))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
