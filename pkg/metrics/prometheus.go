package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the application layer reports to.
type Recorder interface {
	MatchCreated()
	MatchStatusChanged(status string)
	SessionCompleted(firstCompletion bool)
	LadderEvaluated(advanced bool)
	SuggestionServed(cached bool)
}

// Noop discards everything.
type Noop struct{}

func (Noop) MatchCreated() {}
func (Noop) MatchStatusChanged(string) {}
func (Noop) SessionCompleted(bool) {}
func (Noop) LadderEvaluated(bool) {}
func (Noop) SuggestionServed(bool) {}
func (Noop) ObserveHTTP(string, string, int, time.Duration) {}

// Manager owns the service's Prometheus collectors.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Business
	matchesCreated     prometheus.Counter
	matchStatusChanges *prometheus.CounterVec
	sessionsCompleted  *prometheus.CounterVec
	ladderEvaluations  *prometheus.CounterVec
	suggestionsServed  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ Recorder = (*Manager)(nil)

// NewManager creates a manager on a fresh registry unless one is supplied.
// Go runtime and process collectors are registered alongside.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ladder",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.matchesCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_created_total",
		Help:      "Total number of match requests created",
	})

	m.matchStatusChanges = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_status_changes_total",
		Help:      "Total number of match status changes by target status",
	}, []string{"status"})

	m.sessionsCompleted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_completed_total",
		Help:      "Total number of session completion requests",
	}, []string{"first"})

	m.ladderEvaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ladder_evaluations_total",
		Help:      "Total number of ladder evaluations by outcome",
	}, []string{"advanced"})

	m.suggestionsServed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "suggestions_served_total",
		Help:      "Total number of suggestion responses by cache outcome",
	}, []string{"cached"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

// Registry returns the registry backing the manager.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) MatchCreated() { m.matchesCreated.Inc() }

func (m *Manager) MatchStatusChanged(status string) {
	m.matchStatusChanges.WithLabelValues(status).Inc()
}

func (m *Manager) SessionCompleted(firstCompletion bool) {
	m.sessionsCompleted.WithLabelValues(strconv.FormatBool(firstCompletion)).Inc()
}

func (m *Manager) LadderEvaluated(advanced bool) {
	m.ladderEvaluations.WithLabelValues(strconv.FormatBool(advanced)).Inc()
}

func (m *Manager) SuggestionServed(cached bool) {
	m.suggestionsServed.WithLabelValues(strconv.FormatBool(cached)).Inc()
}

// ObserveHTTP records one finished HTTP request.
func (m *Manager) ObserveHTTP(route, method string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
