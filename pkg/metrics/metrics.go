// Package metrics owns the Prometheus registry exposed on /metrics. Every
// recorder method is safe on a nil *Metrics so components can run without it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skedit"

type Metrics struct {
	registry *prometheus.Registry

	lockOps      *prometheus.CounterVec
	locksSwept   prometheus.Counter
	sweepErrors  prometheus.Counter
	connections  prometheus.Gauge
	rooms        prometheus.Gauge
	eventsSent   *prometheus.CounterVec
	eventsDrop   *prometheus.CounterVec
	fanoutErrors *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lockOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_operations_total",
			Help:      "Lock manager operations by operation and result.",
		}, []string{"operation", "result"}),
		locksSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locks_swept_total",
			Help:      "Expired locks removed by the sweeper.",
		}),
		sweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_sweep_errors_total",
			Help:      "Sweeper ticks that failed.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "presence_connections",
			Help:      "Live realtime connections on this instance.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "presence_rooms",
			Help:      "Rooms with at least one occupant on this instance.",
		}),
		eventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_events_sent_total",
			Help:      "Frames queued to realtime connections by event.",
		}, []string{"event"}),
		eventsDrop: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_events_dropped_total",
			Help:      "Frames not delivered by reason.",
		}, []string{"reason"}),
		fanoutErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_errors_total",
			Help:      "Backplane publish or delivery failures.",
		}, []string{"driver", "stage"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.lockOps, m.locksSwept, m.sweepErrors,
		m.connections, m.rooms, m.eventsSent, m.eventsDrop,
		m.fanoutErrors, m.httpRequests, m.httpDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) LockOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.lockOps.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) LocksSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.locksSwept.Add(float64(n))
}

func (m *Metrics) SweepFailed() {
	if m == nil {
		return
	}
	m.sweepErrors.Inc()
}

func (m *Metrics) SetPresence(connections, rooms int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(connections))
	m.rooms.Set(float64(rooms))
}

func (m *Metrics) EventSent(event string) {
	if m == nil {
		return
	}
	m.eventsSent.WithLabelValues(event).Inc()
}

func (m *Metrics) EventDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDrop.WithLabelValues(reason).Inc()
}

func (m *Metrics) FanoutError(driver, stage string) {
	if m == nil {
		return
	}
	m.fanoutErrors.WithLabelValues(driver, stage).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Instrument records request counts and latency. Upgrade requests are passed
// through untouched so the websocket handler can hijack the connection.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") != "" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
