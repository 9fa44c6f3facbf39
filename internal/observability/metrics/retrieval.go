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

// RetrievalMetrics carries every counter the engine exposes: HTTP surface,
// retrieval pipeline, fan-out behavior and cache effectiveness, all on one
// private registry.
type RetrievalMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrieveTotal    *prometheus.CounterVec
	retrieveDuration *prometheus.HistogramVec
	fanOutDuration   *prometheus.HistogramVec
	backendFailures  *prometheus.CounterVec
	degradedTotal    prometheus.Counter

	cacheLookups *prometheus.CounterVec
	corpusEpoch  prometheus.Gauge
}

func NewRetrievalMetrics(service string) *RetrievalMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fiscora",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fiscora",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fiscora",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrieveTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fiscora",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total retrieval requests by outcome and mode.",
		},
		[]string{"service", "status", "mode"},
	)
	retrieveDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fiscora",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "End-to-end retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	fanOutDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fiscora",
			Subsystem: "retrieval",
			Name:      "fanout_duration_seconds",
			Help:      "Concurrent backend dispatch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"service"},
	)
	backendFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fiscora",
			Subsystem: "retrieval",
			Name:      "backend_failures_total",
			Help:      "Backend dispatches that returned no usable candidates.",
		},
		[]string{"service"},
	)
	degradedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fiscora",
			Subsystem: "retrieval",
			Name:      "degraded_requests_total",
			Help:      "Requests served in degraded (lexical and authority only) mode.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fiscora",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by result.",
		},
		[]string{"service", "result"},
	)
	corpusEpoch := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fiscora",
			Subsystem: "retrieval",
			Name:      "corpus_epoch",
			Help:      "Current corpus epoch as seen by this instance.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrieveTotal,
		retrieveDuration,
		fanOutDuration,
		backendFailures,
		degradedTotal,
		cacheLookups,
		corpusEpoch,
	)

	return &RetrievalMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		retrieveTotal:    retrieveTotal,
		retrieveDuration: retrieveDuration,
		fanOutDuration:   fanOutDuration,
		backendFailures:  backendFailures,
		degradedTotal:    degradedTotal,
		cacheLookups:     cacheLookups,
		corpusEpoch:      corpusEpoch,
	}
}

func (m *RetrievalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *RetrievalMetrics) Middleware(service string, next http.Handler) http.Handler {
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
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// ObserveRetrieve and ObserveFanOut satisfy the engine's metrics hook.

func (m *RetrievalMetrics) ObserveRetrieve(service string, duration time.Duration, degraded bool, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	mode := "normal"
	if degraded {
		mode = "degraded"
		m.degradedTotal.Inc()
	}
	m.retrieveTotal.WithLabelValues(service, status, mode).Inc()
	m.retrieveDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
}

func (m *RetrievalMetrics) ObserveFanOut(service string, duration time.Duration, dispatched, failed int) {
	m.fanOutDuration.WithLabelValues(service).Observe(duration.Seconds())
	if failed > 0 {
		m.backendFailures.WithLabelValues(service).Add(float64(failed))
	}
}

// EngineRecorder binds the service label so the engine can report without
// knowing it. It is what gets passed into the use case options.
type EngineRecorder struct {
	metrics *RetrievalMetrics
	service string
}

func (m *RetrievalMetrics) EngineRecorder(service string) *EngineRecorder {
	return &EngineRecorder{metrics: m, service: service}
}

func (r *EngineRecorder) ObserveRetrieve(duration time.Duration, degraded bool, err error) {
	r.metrics.ObserveRetrieve(r.service, duration, degraded, err)
}

func (r *EngineRecorder) ObserveFanOut(duration time.Duration, dispatched, failed int) {
	r.metrics.ObserveFanOut(r.service, duration, dispatched, failed)
}

func (m *RetrievalMetrics) RecordCacheLookup(service string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(service, result).Inc()
}

func (m *RetrievalMetrics) SetCorpusEpoch(epoch uint64) {
	m.corpusEpoch.Set(float64(epoch))
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
