// Package metrics exposes the daemon's internal counters and gauges for the
// node_exporter textfile collector. There is no HTTP endpoint: the process
// has no RPC surface, so metrics leave the process only via WriteTextfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ContainersTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dnssync_containers_tracked",
		Help: "Number of containers currently held in the state tracker, running or pending removal.",
	})
	RecordIntentsDesired = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dnssync_record_intents_desired",
		Help: "Number of record intents currently desired by this host.",
	})
	ReconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnssync_reconcile_runs_total",
		Help: "Total number of reconciliation passes completed.",
	})
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dnssync_reconcile_duration_seconds",
		Help:    "Duration of a full reconciliation pass, including lock acquisition and registry writes.",
		Buckets: prometheus.DefBuckets,
	})
	RecordsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnssync_records_applied_total",
		Help: "Total number of record additions and removals applied to the registry, by operation.",
	}, []string{"operation"})
	RegistryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnssync_registry_errors_total",
		Help: "Total number of registry operation failures by kind.",
	}, []string{"kind"})
	LockWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dnssync_lock_wait_duration_seconds",
		Help:    "Time spent waiting to acquire the registry lock transaction.",
		Buckets: prometheus.DefBuckets,
	})
	ContainerEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnssync_container_events_total",
		Help: "Total number of container lifecycle events observed, by status.",
	}, []string{"status"})
	StaleEntriesReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnssync_stale_entries_reaped_total",
		Help: "Total number of tracker entries reaped by the staleness sweep.",
	})
)
