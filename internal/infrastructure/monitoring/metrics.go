package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cosmos_pty"

// Metrics holds all Prometheus metrics.
// All recording methods are safe to call on a nil *Metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionExits    *prometheus.CounterVec
	SpawnFailures   *prometheus.CounterVec
	SpawnDuration   prometheus.Histogram

	// Stream metrics
	OutputBytes   prometheus.Counter
	OutputBatches prometheus.Counter
	BatchSize     prometheus.Histogram
	InputBytes    prometheus.Counter

	// Breaker metrics
	BreakerState *prometheus.GaugeVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates the metric set and registers it with reg.
// Passing a fresh prometheus.NewRegistry() keeps tests independent of the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of registered terminal sessions",
		}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of terminal sessions spawned",
		}),
		SessionExits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_exits_total",
				Help:      "Terminal session terminations by reason",
			},
			[]string{"reason"},
		),
		SpawnFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_create_failures_total",
				Help:      "Rejected or failed session creations by error code",
			},
			[]string{"code"},
		),
		SpawnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "spawn_duration_seconds",
			Help:      "Time to open a PTY and start the shell",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		OutputBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Raw terminal output bytes delivered to sinks",
		}),
		OutputBatches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_batches_total",
			Help:      "Output batches delivered to sinks",
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "output_batch_bytes",
			Help:      "Raw size of each delivered output batch",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 7),
		}),
		InputBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_bytes_total",
			Help:      "Bytes written to terminal sessions",
		}),

		BreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),

		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Number of active WebSocket connections",
		}),
		WSMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Process uptime in seconds",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SessionCreated records a successful spawn.
func (m *Metrics) SessionCreated(spawn time.Duration) {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SpawnDuration.Observe(spawn.Seconds())
}

// CreateFailed records a rejected or failed creation.
func (m *Metrics) CreateFailed(code string) {
	if m == nil {
		return
	}
	m.SpawnFailures.WithLabelValues(code).Inc()
}

// SessionExited records how a session's child terminated.
func (m *Metrics) SessionExited(reason string) {
	if m == nil {
		return
	}
	m.SessionExits.WithLabelValues(reason).Inc()
}

// SetSessionsActive sets the number of registered sessions
func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(count))
}

// RecordBatch records one delivered output batch of raw size n.
func (m *Metrics) RecordBatch(n int) {
	if m == nil {
		return
	}
	m.OutputBatches.Inc()
	m.OutputBytes.Add(float64(n))
	m.BatchSize.Observe(float64(n))
}

// RecordInput records n bytes written to a session.
func (m *Metrics) RecordInput(n int) {
	if m == nil {
		return
	}
	m.InputBytes.Add(float64(n))
}

// SetBreakerState publishes a breaker's state as 0, 1 or 2.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
