/*
Package metrics provides Prometheus metrics collection and exposition for the
storage backend.

The metrics package defines and registers every metric using the Prometheus
client library, giving observability into log growth, compaction, snapshot
installation, and search-engine reader pressure. Metrics are exposed via an
HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │     raftlog.Collector (pkg/raftlog)          │          │
	│  │  - Polls Facade.Stats() and Engine() on a   │          │
	│  │    15s ticker                                │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

raftstore_log_length:
  - Type: Gauge
  - Description: Number of entries currently retained in the log

raftstore_last_log_index / raftstore_last_applied_index:
  - Type: Gauge
  - Description: Last log index and last-applied index; their difference
    is apply lag

raftstore_indexes_total:
  - Type: Gauge
  - Description: Number of indexes known to the search engine

raftstore_tasks_total{status}:
  - Type: GaugeVec
  - Description: Task count by status (succeeded/failed)

raftstore_snapshots_total:
  - Type: Counter
  - Description: Total snapshots produced by DoLogCompaction or installed
    by FinalizeSnapshotInstallation

raftstore_compaction_duration_seconds / raftstore_snapshot_install_duration_seconds:
  - Type: Histogram
  - Description: Time spent archiving the engine during compaction, and
    time spent installing an inbound snapshot

raftstore_apply_duration_seconds:
  - Type: Histogram
  - Description: Time spent applying one committed command

raftstore_apply_skipped_total:
  - Type: Counter
  - Description: Entries skipped by the last-applied idempotence guard

raftstore_search_engine_readers:
  - Type: Gauge
  - Description: Outstanding Acquire() calls against the live search engine

# Usage

	import "github.com/cuemby/raftstore/pkg/metrics"

	metrics.LogLength.Set(float64(stats.LogLength))
	metrics.SnapshotsTotal.Inc()

	timer := metrics.NewTimer()
	// ... perform a compaction ...
	timer.ObserveDuration(metrics.CompactionDuration)

	http.Handle("/metrics", metrics.Handler())

# Integration Points

  - pkg/raftlog: owns Collector (reads Facade.Stats()/Facade.Engine()) and
    calls Observe/Inc on ApplyDuration, CompactionDuration,
    SnapshotInstallDuration, ApplySkippedTotal, and SnapshotsTotal
    directly from DoLogCompaction, FinalizeSnapshotInstallation, and
    ApplyEntryToStateMachine
  - cmd/raftstored: wires raftlog.Collector.Start/Stop into the serve
    command and exposes /metrics, /health, /ready, /live

# Design Patterns

Package Init Registration:
  - All metrics registered in init(), MustRegister panics on duplicate
    registration

Timer Pattern:
  - Create a timer at operation start, call ObserveDuration/ObserveDurationVec
    when it completes

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
