// Package metrics provides Prometheus metrics for the ballpark game server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the game server.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Core Game Metrics - What really matters for a game night
	teamsJoined          prometheus.Counter
	roundsStarted        prometheus.Counter
	roundsRevealed       prometheus.Counter
	submissionsAccepted  prometheus.Counter
	submissionsRejected  *prometheus.CounterVec
	submissionsSettled   prometheus.Counter
	submissionsAbandoned prometheus.Counter
	gameResets           prometheus.Counter

	// Operational Health Metrics
	teamCount        prometheus.Gauge
	totalBalance     prometheus.Gauge
	connectedClients prometheus.Gauge

	// Broadcast Metrics - Event fan-out to viewers
	clientConnects    prometheus.Counter
	clientDisconnects prometheus.Counter
	eventsBroadcast   *prometheus.CounterVec
	eventsDropped     *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ballpark",
		subsystem:        "game",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Core Game Metrics - Focus on what drives the competition
	m.teamsJoined = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "teams_joined_total",
		Help:      "Total number of teams that joined the game",
	})

	m.roundsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rounds_started_total",
		Help:      "Total number of rounds opened for wagering",
	})

	m.roundsRevealed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rounds_revealed_total",
		Help:      "Total number of rounds revealed and settled",
	})

	m.submissionsAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions_accepted_total",
		Help:      "Total number of accepted wagers (indicates active competition)",
	})

	m.submissionsRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "submissions_rejected_total",
			Help:      "Total number of rejected wagers by reason",
		},
		[]string{"reason"},
	)

	m.submissionsSettled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions_settled_total",
		Help:      "Total number of wagers scored and paid out",
	})

	m.submissionsAbandoned = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions_abandoned_total",
		Help:      "Total number of wagers left unsettled by force-closed rounds (indicates operator churn)",
	})

	m.gameResets = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "game_resets_total",
		Help:      "Total number of full game resets",
	})

	// Operational Health Metrics - System stability indicators
	m.teamCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "team_count",
		Help:      "Current number of registered teams (business scale)",
	})

	m.totalBalance = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "total_balance",
		Help:      "Sum of all team balances (conservation indicator between rounds)",
	})

	m.connectedClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connected_clients",
		Help:      "Current number of connected WebSocket viewers",
	})

	// Broadcast Metrics - Event fan-out health
	m.clientConnects = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "client_connects_total",
		Help:      "Total number of WebSocket viewer connections",
	})

	m.clientDisconnects = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "client_disconnects_total",
		Help:      "Total number of WebSocket viewer disconnections",
	})

	m.eventsBroadcast = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_broadcast_total",
			Help:      "Total number of game events broadcast to viewers by type",
		},
		[]string{"type"},
	)

	m.eventsDropped = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped instead of delivered (indicates slow viewers or backlog)",
		},
		[]string{"reason"},
	)

	// HTTP Performance Metrics - User experience indicators
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds (user experience)",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordTeamJoined increments the joined teams counter.
func RecordTeamJoined() {
	globalManager.teamsJoined.Inc()
}

// RecordRoundStarted increments the started rounds counter.
func RecordRoundStarted() {
	globalManager.roundsStarted.Inc()
}

// RecordRoundRevealed increments the revealed rounds counter and adds
// the number of wagers settled by the reveal.
func RecordRoundRevealed(settled int) {
	globalManager.roundsRevealed.Inc()
	globalManager.submissionsSettled.Add(float64(settled))
}

// RecordSubmissionAccepted increments the accepted wagers counter.
func RecordSubmissionAccepted() {
	globalManager.submissionsAccepted.Inc()
}

// RecordSubmissionRejected increments the rejected wagers counter for a reason.
func RecordSubmissionRejected(reason string) {
	globalManager.submissionsRejected.WithLabelValues(reason).Inc()
}

// RecordSubmissionsAbandoned adds wagers orphaned by a force-closed round.
func RecordSubmissionsAbandoned(count int) {
	globalManager.submissionsAbandoned.Add(float64(count))
}

// RecordGameReset increments the game resets counter.
func RecordGameReset() {
	globalManager.gameResets.Inc()
}

// UpdateTeamCount sets the current team count.
func UpdateTeamCount(count int) {
	globalManager.teamCount.Set(float64(count))
}

// UpdateTotalBalance sets the sum of all team balances.
func UpdateTotalBalance(total float64) {
	globalManager.totalBalance.Set(total)
}

// UpdateConnectedClients sets the current viewer count.
func UpdateConnectedClients(count int) {
	globalManager.connectedClients.Set(float64(count))
}

// RecordClientConnected increments the viewer connections counter.
func RecordClientConnected() {
	globalManager.clientConnects.Inc()
}

// RecordClientDisconnected increments the viewer disconnections counter.
func RecordClientDisconnected() {
	globalManager.clientDisconnects.Inc()
}

// RecordEventBroadcast increments the broadcast counter for an event type.
func RecordEventBroadcast(eventType string) {
	globalManager.eventsBroadcast.WithLabelValues(eventType).Inc()
}

// RecordEventDropped increments the dropped events counter for a reason.
func RecordEventDropped(reason string) {
	globalManager.eventsDropped.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError records an error with endpoint, method, and error type labels.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
