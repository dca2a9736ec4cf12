// Package metrics provides Prometheus metrics for the weekgrid service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Grid operations
	operations          *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	conflictResolutions *prometheus.CounterVec
	lockedRejections    *prometheus.CounterVec

	// Visible week and store
	visibleEvents    prometheus.Gauge
	generatedEvents  prometheus.Gauge
	storedBaseEvents prometheus.Gauge
	expandDuration   prometheus.Histogram
	expandCollisions prometheus.Counter

	// Persistence
	persistDuration *prometheus.HistogramVec
	persistErrors   *prometheus.CounterVec
	lastSaveUnix    prometheus.Gauge

	// Snapshot queue
	snapshotQueueSize     prometheus.Gauge
	snapshotQueueCapacity prometheus.Gauge
	snapshotsEnqueued     prometheus.Counter
	snapshotsDropped      prometheus.Counter
	snapshotsWritten      prometheus.Counter

	// HTTP and live updates
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	wsClients           prometheus.Gauge
	wsBroadcasts        prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "weekgrid",
		subsystem:        "schedule",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		// collectors still exist but nothing scrapes them
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: name, Help: help, ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: name, Help: help, ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: name, Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.operations = auto.NewCounterVec(
		m.counterOpts("operations_total", "Grid operations by kind and result"),
		[]string{"operation", "result"},
	)
	m.operationDuration = auto.NewHistogramVec(
		m.histogramOpts("operation_duration_milliseconds", "Grid operation latency in milliseconds"),
		[]string{"operation"},
	)
	m.conflictResolutions = auto.NewCounterVec(
		m.counterOpts("conflict_resolutions_total", "Events carved by overlap resolution, by action"),
		[]string{"action"},
	)
	m.lockedRejections = auto.NewCounterVec(
		m.counterOpts("locked_rejections_total", "Operations refused because of a locked event"),
		[]string{"kind"},
	)

	m.visibleEvents = auto.NewGauge(m.gaugeOpts("visible_events", "Events materialized in the visible week"))
	m.generatedEvents = auto.NewGauge(m.gaugeOpts("generated_events", "Generated occurrences in the visible week"))
	m.storedBaseEvents = auto.NewGauge(m.gaugeOpts("stored_base_events", "Base events held in the week store"))
	m.expandDuration = auto.NewHistogram(m.histogramOpts("expand_duration_milliseconds", "Time to materialize a week"))
	m.expandCollisions = auto.NewCounter(m.counterOpts("expand_collisions_total", "Occurrences skipped because their rows were taken"))

	m.persistDuration = auto.NewHistogramVec(
		m.histogramOpts("persist_duration_milliseconds", "Repository load/save latency"),
		[]string{"backend", "op"},
	)
	m.persistErrors = auto.NewCounterVec(
		m.counterOpts("persist_errors_total", "Repository load/save failures"),
		[]string{"backend", "op"},
	)
	m.lastSaveUnix = auto.NewGauge(m.gaugeOpts("last_save_timestamp_seconds", "Unix time of the last successful save"))

	m.snapshotQueueSize = auto.NewGauge(m.gaugeOpts("snapshot_queue_size", "Snapshots waiting to be written"))
	m.snapshotQueueCapacity = auto.NewGauge(m.gaugeOpts("snapshot_queue_capacity", "Snapshot queue capacity"))
	m.snapshotsEnqueued = auto.NewCounter(m.counterOpts("snapshots_enqueued_total", "Snapshots accepted by the queue"))
	m.snapshotsDropped = auto.NewCounter(m.counterOpts("snapshots_dropped_total", "Snapshots rejected by a full or closed queue"))
	m.snapshotsWritten = auto.NewCounter(m.counterOpts("snapshots_written_total", "Snapshots persisted by the writer"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request latency in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.wsClients = auto.NewGauge(m.gaugeOpts("ws_clients", "Connected WebSocket clients"))
	m.wsBroadcasts = auto.NewCounter(m.counterOpts("ws_broadcasts_total", "Change notifications broadcast"))

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "HTTP errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause in milliseconds"))
}

// RecordOperation counts a grid operation outcome.
func RecordOperation(operation, result string) {
	globalManager.operations.WithLabelValues(operation, result).Inc()
}

// RecordOperationDuration observes a grid operation latency.
func RecordOperationDuration(operation string, ms float64) {
	globalManager.operationDuration.WithLabelValues(operation).Observe(ms)
}

// RecordConflictResolution counts one carved event.
func RecordConflictResolution(action string) {
	globalManager.conflictResolutions.WithLabelValues(action).Inc()
}

// RecordLockedRejection counts an operation refused by a lock.
func RecordLockedRejection(kind string) {
	globalManager.lockedRejections.WithLabelValues(kind).Inc()
}

// UpdateVisibleEvents sets the visible and generated event gauges.
func UpdateVisibleEvents(total, generated int) {
	globalManager.visibleEvents.Set(float64(total))
	globalManager.generatedEvents.Set(float64(generated))
}

// UpdateStoredBaseEvents sets the store size gauge.
func UpdateStoredBaseEvents(n int) {
	globalManager.storedBaseEvents.Set(float64(n))
}

// RecordExpand observes a week expansion.
func RecordExpand(ms float64, collisions int) {
	globalManager.expandDuration.Observe(ms)
	globalManager.expandCollisions.Add(float64(collisions))
}

// RecordPersist observes a repository call and counts failures.
func RecordPersist(backend, op string, ms float64, err error) {
	globalManager.persistDuration.WithLabelValues(backend, op).Observe(ms)
	if err != nil {
		globalManager.persistErrors.WithLabelValues(backend, op).Inc()
		return
	}
	if op == "save" {
		globalManager.lastSaveUnix.Set(float64(time.Now().Unix()))
	}
}

// UpdateSnapshotQueue sets the snapshot queue gauges.
func UpdateSnapshotQueue(size, capacity int) {
	globalManager.snapshotQueueSize.Set(float64(size))
	globalManager.snapshotQueueCapacity.Set(float64(capacity))
}

// RecordSnapshotEnqueued counts an accepted snapshot.
func RecordSnapshotEnqueued() { globalManager.snapshotsEnqueued.Inc() }

// RecordSnapshotDropped counts a rejected snapshot.
func RecordSnapshotDropped() { globalManager.snapshotsDropped.Inc() }

// RecordSnapshotWritten counts a persisted snapshot.
func RecordSnapshotWritten() { globalManager.snapshotsWritten.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateWSClients sets the connected client gauge.
func UpdateWSClients(n int) { globalManager.wsClients.Set(float64(n)) }

// RecordWSBroadcast counts a broadcast message.
func RecordWSBroadcast() { globalManager.wsBroadcasts.Inc() }

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

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

// Configure rebuilds the global manager from opts on a fresh registry, which
// /metrics then serves. It must run before anything is recorded.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// RefreshInterval is how often system gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the registry served at /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
