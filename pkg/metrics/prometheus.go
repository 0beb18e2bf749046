// Package metrics provides Prometheus metrics for the xpboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Leveling
	xpAwarded          *prometheus.CounterVec
	cooldownRejections prometheus.Counter
	levelUps           prometheus.Counter
	trackedUsers       prometheus.Gauge

	// Role synchronization
	roleMutations *prometheus.CounterVec

	// Starboard
	starboardActions *prometheus.CounterVec

	// Storage
	persistenceFailures *prometheus.CounterVec

	// Gateway dispatch
	gatewayEvents   *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	eventLatency    *prometheus.HistogramVec
	queueSize       prometheus.Gauge
	workerCount     prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics singleton

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "xpboard",
		subsystem:        "core",
		histogramBuckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.xpAwarded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "xp_awarded_total",
		Help:      "Total XP awarded, by source (message, grant)",
	}, []string{"source"})

	m.cooldownRejections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cooldown_rejections_total",
		Help:      "Messages that earned no XP because the author was inside the cooldown window",
	})

	m.levelUps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "level_ups_total",
		Help:      "Total level-up transitions",
	})

	m.trackedUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_users",
		Help:      "Number of users with a progress record",
	})

	m.roleMutations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "role_mutations_total",
		Help:      "Role grant/revoke attempts by outcome",
	}, []string{"op", "outcome"})

	m.starboardActions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "starboard_actions_total",
		Help:      "Starboard decisions by kind",
	}, []string{"kind"})

	m.persistenceFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persistence_failures_total",
		Help:      "Durable writes that did not complete, by component",
	}, []string{"component"})

	m.gatewayEvents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "gateway_events_total",
		Help:      "Gateway events by kind and outcome",
	}, []string{"kind", "outcome"})

	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "gateway_events_duplicate_total",
		Help:      "Redelivered gateway events dropped by deduplication",
	})

	m.eventLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "event_handling_latency_milliseconds",
		Help:      "Time spent handling one gateway event",
		Buckets:   m.histogramBuckets,
	}, []string{"kind"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Events waiting across all dispatcher shards",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of dispatcher shards",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// RecordXPAwarded adds amount to the awarded XP counter for source.
func RecordXPAwarded(source string, amount int64) {
	if amount > 0 {
		globalManager.xpAwarded.WithLabelValues(source).Add(float64(amount))
	}
}

// RecordCooldownRejection counts a message ignored by the cooldown gate.
func RecordCooldownRejection() {
	globalManager.cooldownRejections.Inc()
}

// RecordLevelUp counts a level-up transition.
func RecordLevelUp() {
	globalManager.levelUps.Inc()
}

// UpdateTrackedUsers sets the number of users with progress.
func UpdateTrackedUsers(count int) {
	globalManager.trackedUsers.Set(float64(count))
}

// RecordRoleMutation counts one grant/revoke attempt.
func RecordRoleMutation(op, outcome string) {
	globalManager.roleMutations.WithLabelValues(op, outcome).Inc()
}

// RecordStarboardAction counts a starboard decision.
func RecordStarboardAction(kind string) {
	globalManager.starboardActions.WithLabelValues(kind).Inc()
}

// RecordPersistenceFailure counts a failed durable write.
func RecordPersistenceFailure(component string) {
	globalManager.persistenceFailures.WithLabelValues(component).Inc()
}

// RecordGatewayEvent counts a gateway event outcome (accepted, filtered, dropped, handled, failed).
func RecordGatewayEvent(kind, outcome string) {
	globalManager.gatewayEvents.WithLabelValues(kind, outcome).Inc()
}

// RecordEventDuplicate counts a redelivered event.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordEventLatency observes the handling latency of one event.
func RecordEventLatency(kind string, latencyMs float64) {
	globalManager.eventLatency.WithLabelValues(kind).Observe(latencyMs)
}

// UpdateQueueSize sets the dispatcher backlog.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateWorkerCount sets the number of dispatcher shards.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
