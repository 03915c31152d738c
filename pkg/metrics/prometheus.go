// Package metrics provides Prometheus metrics for the globepins session.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the session.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion
	ingestRowsWritten    prometheus.Counter
	ingestRowsSkipped    prometheus.Counter
	ingestRowsDuplicate  prometheus.Counter
	ingestBatches        prometheus.Counter
	ingestBatchRetries   prometheus.Counter
	ingestBatchLatency   prometheus.Histogram
	ingestOutcomes       *prometheus.CounterVec
	ingestCheckpointNext prometheus.Gauge

	// Gateway
	storeWrites      *prometheus.CounterVec
	storeWriteErrors *prometheus.CounterVec
	gateDenied       *prometheus.CounterVec
	subscriptions    prometheus.Gauge

	// Reconciliation
	snapshotsReceived *prometheus.CounterVec
	mergedViewSize    prometheus.Gauge
	sourceSize        *prometheus.GaugeVec
	reconcileLatency  prometheus.Histogram

	// Search
	searches      prometheus.Counter
	searchLatency prometheus.Histogram
	searchCache   *prometheus.CounterVec

	// Mailbox
	mailboxCapacity      prometheus.Gauge
	mailboxSize          prometheus.Gauge
	mailboxEnqueued      prometheus.Counter
	mailboxDequeued      prometheus.Counter
	mailboxEnqueueErrors prometheus.Counter

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global manager on a fresh registry. Call it once at
// startup, before any metric is recorded or scraped.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "globepins",
		subsystem:        "session",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		// collectors stay usable but are never scraped
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, Buckets: buckets, ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.ingestRowsWritten = m.counter("ingest_rows_written_total", "Rows committed to the remote store by CSV ingestion")
	m.ingestRowsSkipped = m.counter("ingest_rows_skipped_total", "Malformed CSV rows skipped")
	m.ingestRowsDuplicate = m.counter("ingest_rows_duplicate_total", "CSV rows collapsed into an earlier row with the same identity")
	m.ingestBatches = m.counter("ingest_batches_committed_total", "Ingestion batches committed")
	m.ingestBatchRetries = m.counter("ingest_batch_retries_total", "Ingestion batch commits retried after a quota error")
	m.ingestBatchLatency = m.histogram("ingest_batch_latency_milliseconds", "Batch commit latency including retries", m.histogramBuckets)
	m.ingestOutcomes = m.counterVec("ingest_outcomes_total", "Ingestion runs by final status", "status")
	m.ingestCheckpointNext = m.gauge("ingest_checkpoint_offset", "Next row offset recorded in the ingestion checkpoint")

	m.storeWrites = m.counterVec("store_writes_total", "Mutations issued to the remote store", "op")
	m.storeWriteErrors = m.counterVec("store_write_errors_total", "Failed mutations by operation and kind", "op", "kind")
	m.gateDenied = m.counterVec("gate_denied_total", "Mutations rejected by the access gate", "op")
	m.subscriptions = m.gauge("subscriptions_active", "Open snapshot subscriptions")

	m.snapshotsReceived = m.counterVec("snapshots_received_total", "Snapshots applied by the reconciliation store", "source")
	m.mergedViewSize = m.gauge("merged_view_size", "Entries in the merged render view")
	m.sourceSize = m.gaugeVec("source_size", "Records held per source set", "source")
	m.reconcileLatency = m.histogram("reconcile_latency_milliseconds", "Time to recompute the merged view", []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})

	m.searches = m.counter("searches_total", "Search queries executed")
	m.searchLatency = m.histogram("search_latency_milliseconds", "Search execution latency", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250})
	m.searchCache = m.counterVec("search_cache_total", "Search cache lookups", "result")

	m.mailboxCapacity = m.gauge("mailbox_capacity", "Capacity of the reconciliation mailbox")
	m.mailboxSize = m.gauge("mailbox_size", "Messages waiting in the reconciliation mailbox")
	m.mailboxEnqueued = m.counter("mailbox_enqueued_total", "Messages enqueued to the reconciliation mailbox")
	m.mailboxDequeued = m.counter("mailbox_dequeued_total", "Messages dequeued from the reconciliation mailbox")
	m.mailboxEnqueueErrors = m.counter("mailbox_enqueue_errors_total", "Rejected mailbox enqueues")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordIngestRows adds to the written/skipped/duplicate row counters.
func RecordIngestRows(written, skipped, duplicates int) {
	globalManager.ingestRowsWritten.Add(float64(written))
	globalManager.ingestRowsSkipped.Add(float64(skipped))
	globalManager.ingestRowsDuplicate.Add(float64(duplicates))
}

// RecordIngestBatch records a committed batch and its latency in milliseconds.
func RecordIngestBatch(latencyMs float64) {
	globalManager.ingestBatches.Inc()
	globalManager.ingestBatchLatency.Observe(latencyMs)
}

// RecordIngestRetry increments the quota retry counter.
func RecordIngestRetry() {
	globalManager.ingestBatchRetries.Inc()
}

// RecordIngestOutcome counts a finished ingestion run.
func RecordIngestOutcome(status string) {
	globalManager.ingestOutcomes.WithLabelValues(status).Inc()
}

// UpdateCheckpointOffset sets the checkpoint gauge.
func UpdateCheckpointOffset(offset int) {
	globalManager.ingestCheckpointNext.Set(float64(offset))
}

// RecordStoreWrite counts a mutation issued to the store.
func RecordStoreWrite(op string) {
	globalManager.storeWrites.WithLabelValues(op).Inc()
}

// RecordStoreWriteError counts a failed mutation.
func RecordStoreWriteError(op, kind string) {
	globalManager.storeWriteErrors.WithLabelValues(op, kind).Inc()
}

// RecordGateDenied counts a mutation rejected by the access gate.
func RecordGateDenied(op string) {
	globalManager.gateDenied.WithLabelValues(op).Inc()
}

// AddSubscriptions adjusts the open subscription gauge.
func AddSubscriptions(delta int) {
	globalManager.subscriptions.Add(float64(delta))
}

// RecordSnapshot counts a snapshot applied for a source and its size.
func RecordSnapshot(source string, size int) {
	globalManager.snapshotsReceived.WithLabelValues(source).Inc()
	globalManager.sourceSize.WithLabelValues(source).Set(float64(size))
}

// RecordReconcile records a merged view recompute.
func RecordReconcile(size int, latencyMs float64) {
	globalManager.mergedViewSize.Set(float64(size))
	globalManager.reconcileLatency.Observe(latencyMs)
}

// RecordSearch records a search execution.
func RecordSearch(latencyMs float64) {
	globalManager.searches.Inc()
	globalManager.searchLatency.Observe(latencyMs)
}

// RecordSearchCache records a cache hit or miss.
func RecordSearchCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.searchCache.WithLabelValues(result).Inc()
}

// UpdateMailboxCapacity sets the mailbox capacity gauge.
func UpdateMailboxCapacity(capacity int) {
	globalManager.mailboxCapacity.Set(float64(capacity))
}

// UpdateMailboxSize sets the mailbox size gauge.
func UpdateMailboxSize(size int) {
	globalManager.mailboxSize.Set(float64(size))
}

// RecordMailboxEnqueue increments the enqueue counter.
func RecordMailboxEnqueue() {
	globalManager.mailboxEnqueued.Inc()
}

// RecordMailboxDequeue increments the dequeue counter.
func RecordMailboxDequeue() {
	globalManager.mailboxDequeued.Inc()
}

// RecordMailboxEnqueueError increments the rejected enqueue counter.
func RecordMailboxEnqueueError() {
	globalManager.mailboxEnqueueErrors.Inc()
}

// RecordErrorByComponent records errors by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RefreshInterval returns how often periodic gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
