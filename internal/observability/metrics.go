package observability

import (
	"strconv"
	"time"

	"github.com/danmuck/atlasgate/internal/direction"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "atlasgate"

// Metrics holds the gateway's collectors on a private registry. It implements
// engine.Observer.
type Metrics struct {
	registry *prometheus.Registry

	translations    *prometheus.CounterVec
	translationTime *prometheus.HistogramVec
	reinits         *prometheus.CounterVec
	loads           *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	sessionsTotal   prometheus.Counter
	rejected        *prometheus.CounterVec
	commands        *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		translations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "translations_total",
				Help:      "Translations by effective direction and outcome.",
			},
			[]string{"direction", "success"},
		),
		translationTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "translation_duration_seconds",
				Help:      "Time inside the engine critical section per translation.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"direction"},
		),
		reinits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "reinitializations_total",
				Help:      "Engine direction switches.",
			},
			[]string{"to", "success"},
		),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "loads_total",
				Help:      "Engine load attempts.",
			},
			[]string{"environment", "success"},
		),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "sessions_active",
			Help:      "Currently open client sessions.",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "sessions_total",
			Help:      "Client sessions opened after a TLS handshake.",
		}),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "connections_rejected_total",
				Help:      "Connections closed before a session started.",
			},
			[]string{"reason"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "protocol",
				Name:      "commands_total",
				Help:      "Handled command lines by verb and response code.",
			},
			[]string{"verb", "response"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.translations, m.translationTime, m.reinits, m.loads,
		m.sessionsActive, m.sessionsTotal, m.rejected, m.commands,
		m.httpRequests, m.httpDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) EngineLoaded(environment string, _ direction.Direction, ok bool) {
	m.loads.WithLabelValues(environment, strconv.FormatBool(ok)).Inc()
}

func (m *Metrics) EngineReinitialized(_, to direction.Direction, ok bool) {
	m.reinits.WithLabelValues(to.String(), strconv.FormatBool(ok)).Inc()
}

func (m *Metrics) TranslationCompleted(dir direction.Direction, ok bool, seconds float64) {
	m.translations.WithLabelValues(dir.String(), strconv.FormatBool(ok)).Inc()
	m.translationTime.WithLabelValues(dir.String()).Observe(seconds)
}

func (m *Metrics) SessionOpened() {
	m.sessionsTotal.Inc()
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	m.sessionsActive.Dec()
}

func (m *Metrics) ConnectionRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) CommandHandled(verb, response string) {
	if verb == "" {
		verb = "unknown"
	}
	m.commands.WithLabelValues(verb, response).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	m.httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
