package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Log store metrics
	LogLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftstore_log_length",
			Help: "Number of entries currently in the replicated log",
		},
	)

	LastAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftstore_last_applied_index",
			Help: "Index of the last log entry applied to the state machine",
		},
	)

	LastLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftstore_last_log_index",
			Help: "Index of the last log entry persisted in the log store",
		},
	)

	// State machine metrics
	IndexesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftstore_indexes_total",
			Help: "Total number of indexes in the embedded search engine",
		},
	)

	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raftstore_tasks_total",
			Help: "Total number of document mutation tasks recorded, by outcome",
		},
		[]string{"status"},
	)

	// Snapshot metrics
	SnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftstore_snapshots_total",
			Help: "Total number of snapshots created by compaction or received from a leader",
		},
	)

	CompactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftstore_compaction_duration_seconds",
			Help:    "Time taken to compact the log into a snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotInstallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftstore_snapshot_install_duration_seconds",
			Help:    "Time taken to install a snapshot streamed from a leader",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Apply-path metrics
	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftstore_apply_duration_seconds",
			Help:    "Time taken to apply one committed log entry to the state machine",
			Buckets: prometheus.DefBuckets,
		},
	)

	ApplySkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftstore_apply_skipped_total",
			Help: "Total number of apply calls skipped because the index was already covered by last-applied",
		},
	)

	SearchEngineReaders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftstore_search_engine_readers",
			Help: "Outstanding reader handles on the live embedded search engine",
		},
	)
)

func init() {
	prometheus.MustRegister(LogLength)
	prometheus.MustRegister(LastAppliedIndex)
	prometheus.MustRegister(LastLogIndex)
	prometheus.MustRegister(IndexesTotal)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(SnapshotsTotal)
	prometheus.MustRegister(CompactionDuration)
	prometheus.MustRegister(SnapshotInstallDuration)
	prometheus.MustRegister(ApplyDuration)
	prometheus.MustRegister(ApplySkippedTotal)
	prometheus.MustRegister(SearchEngineReaders)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
