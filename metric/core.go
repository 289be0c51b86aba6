package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the core bridge metrics shared across components.
type Metrics struct {
	// Orchestrator metrics
	MessagesEnqueued  *prometheus.CounterVec
	MessagesProcessed *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	MessagesRejected  prometheus.Counter
	QueueDepth        prometheus.Gauge
	QueueCapacity     prometheus.Gauge
	ProcessingTime    prometheus.Histogram
	WorkerErrors      prometheus.Counter
	WorkerBackoffs    prometheus.Counter
	ServiceConnected  *prometheus.GaugeVec

	// State synchronization metrics
	StateEvents       *prometheus.CounterVec
	HistoryEvicted    prometheus.Counter
	ConflictsResolved *prometheus.CounterVec
	DiffOperations    prometheus.Counter
	FullSnapshots     prometheus.Counter
	StateSaves        prometheus.Counter
	StateLoads        prometheus.Counter
	PersistErrors     prometheus.Counter
}

// NewMetrics creates the core metric set. Collectors are created unregistered;
// the registry wires them into its private prometheus.Registry.
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxbridge_messages_enqueued_total",
				Help: "Messages accepted into the orchestrator queue by channel",
			},
			[]string{"channel"},
		),
		MessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxbridge_messages_processed_total",
				Help: "Messages dispatched to handlers by channel",
			},
			[]string{"channel"},
		),
		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxbridge_messages_dropped_total",
				Help: "Messages evicted from a full queue by channel",
			},
			[]string{"channel"},
		),
		MessagesRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maxbridge_messages_rejected_total",
				Help: "Messages refused at admission (full queue, lower priority)",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "maxbridge_queue_depth",
				Help: "Current number of messages waiting in the queue",
			},
		),
		QueueCapacity: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "maxbridge_queue_capacity",
				Help: "Configured queue capacity",
			},
		),
		ProcessingTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "maxbridge_processing_duration_seconds",
				Help:    "Handler execution time per message",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
		),
		WorkerErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maxbridge_worker_errors_total",
				Help: "Handler errors observed by worker threads",
			},
		),
		WorkerBackoffs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maxbridge_worker_backoffs_total",
				Help: "Backoff pauses taken by workers after consecutive errors",
			},
		),
		ServiceConnected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "maxbridge_service_connected",
				Help: "Connection state per registered service (1 connected, 0 not)",
			},
			[]string{"service"},
		),
		StateEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxbridge_state_events_total",
				Help: "State change events processed by category",
			},
			[]string{"category"},
		),
		HistoryEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maxbridge_history_evicted_total",
				Help: "Events aged out of the bounded history",
			},
		),
		ConflictsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxbridge_conflicts_resolved_total",
				Help: "Sync conflicts resolved by winner (local or remote)",
			},
			[]string{"winner"},
		),
		DiffOperations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maxbridge_diff_operations_total",
				Help: "Operations emitted by structural diff generation",
			},
		),
		FullSnapshots: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maxbridge_full_snapshots_total",
				Help: "Diff syncs that fell back to a full snapshot",
			},
		),
		StateSaves: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maxbridge_state_saves_total",
				Help: "Successful state persistence operations",
			},
		),
		StateLoads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maxbridge_state_loads_total",
				Help: "Successful state restore operations",
			},
		),
		PersistErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maxbridge_persist_errors_total",
				Help: "Failed state save or load operations",
			},
		),
	}
}
