package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the persistence worker: answer events written to the
// durable tier and the periodic expiry sweep.
type WorkerMetrics struct {
	registry *prometheus.Registry

	persistTotal    *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
	persistInFlight prometheus.Gauge
	sweepDeleted    prometheus.Counter
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	persistTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "parroquia",
			Subsystem:   "worker",
			Name:        "answer_persist_total",
			Help:        "Total persisted answer events by status.",
			ConstLabels: serviceLabel,
		},
		[]string{"status"},
	)
	persistDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "parroquia",
			Subsystem:   "worker",
			Name:        "answer_persist_duration_seconds",
			Help:        "Answer persistence duration in seconds by status.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
		[]string{"status"},
	)
	persistInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "parroquia",
			Subsystem:   "worker",
			Name:        "answer_persist_in_flight",
			Help:        "Number of in-flight answer persistence tasks.",
			ConstLabels: serviceLabel,
		},
	)
	sweepDeleted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "parroquia",
			Subsystem:   "worker",
			Name:        "expired_rows_deleted_total",
			Help:        "Expired cache rows removed by the periodic sweep.",
			ConstLabels: serviceLabel,
		},
	)

	registry.MustRegister(persistTotal, persistDuration, persistInFlight, sweepDeleted)

	return &WorkerMetrics{
		registry:        registry,
		persistTotal:    persistTotal,
		persistDuration: persistDuration,
		persistInFlight: persistInFlight,
		sweepDeleted:    sweepDeleted,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartPersist() {
	m.persistInFlight.Inc()
}

func (m *WorkerMetrics) FinishPersist(duration time.Duration, err error) {
	m.persistInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.persistTotal.WithLabelValues(status).Inc()
	m.persistDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordSweep(deleted int) {
	if deleted > 0 {
		m.sweepDeleted.Add(float64(deleted))
	}
}
