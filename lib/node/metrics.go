package node

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/operation"
	vm "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// nodeMetrics implements operation.Observer.
//
// Counters and latency histograms go to the process-wide VictoriaMetrics set,
// which `dmap serve` exposes in the Prometheus text format. The backup health
// of the node is additionally tracked in a node-local go-metrics registry and
// reported by Node.Info.
type nodeMetrics struct {
	node cluster.NodeID

	registry       gometrics.Registry
	syncAcks       gometrics.Timer
	degraded       gometrics.Meter
	persistFails   gometrics.Counter
	backupsApplied gometrics.Counter
}

func newNodeMetrics(node cluster.NodeID) *nodeMetrics {
	m := &nodeMetrics{
		node:           node,
		registry:       gometrics.NewRegistry(),
		syncAcks:       gometrics.NewTimer(),
		degraded:       gometrics.NewMeter(),
		persistFails:   gometrics.NewCounter(),
		backupsApplied: gometrics.NewCounter(),
	}
	for name, metric := range map[string]any{
		"backup.sync.ack":    m.syncAcks,
		"backup.degraded":    m.degraded,
		"persistence.failed": m.persistFails,
		"backup.applied":     m.backupsApplied,
	} {
		if err := m.registry.Register(name, metric); err != nil {
			log.Warningf("node %s: cannot register metric %s: %v", node, name, err)
		}
	}
	return m
}

func (m *nodeMetrics) stop() {
	m.syncAcks.Stop()
	m.degraded.Stop()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see operation.Observer)
// --------------------------------------------------------------------------

func (m *nodeMetrics) OperationDone(kind operation.Kind, transactional bool, took time.Duration, err error) {
	vm.GetOrCreateCounter(fmt.Sprintf(`dmap_operations_total{node=%q,kind=%q,transactional="%t"}`, m.node, kind, transactional)).Inc()
	vm.GetOrCreateHistogram(fmt.Sprintf(`dmap_operation_duration_seconds{node=%q,kind=%q}`, m.node, kind)).Update(took.Seconds())
	if err != nil {
		vm.GetOrCreateCounter(fmt.Sprintf(`dmap_operation_errors_total{node=%q,kind=%q,code=%q}`, m.node, kind, operation.CodeOf(err))).Inc()
	}
}

func (m *nodeMetrics) BackupsAcked(kind operation.Kind, replicas int, took time.Duration) {
	m.syncAcks.Update(took)
	vm.GetOrCreateHistogram(fmt.Sprintf(`dmap_backup_ack_duration_seconds{node=%q,kind=%q}`, m.node, kind)).Update(took.Seconds())
	vm.GetOrCreateCounter(fmt.Sprintf(`dmap_backups_acked_total{node=%q}`, m.node)).Add(replicas)
}

func (m *nodeMetrics) BackupsDegraded(kind operation.Kind, _ error) {
	m.degraded.Mark(1)
	vm.GetOrCreateCounter(fmt.Sprintf(`dmap_backups_degraded_total{node=%q,kind=%q}`, m.node, kind)).Inc()
}

func (m *nodeMetrics) PersistenceFailed(kind operation.Kind, _ error) {
	m.persistFails.Inc(1)
	vm.GetOrCreateCounter(fmt.Sprintf(`dmap_persistence_failures_total{node=%q,kind=%q}`, m.node, kind)).Inc()
}

func (m *nodeMetrics) backupApplied(kind operation.Kind) {
	m.backupsApplied.Inc(1)
	vm.GetOrCreateCounter(fmt.Sprintf(`dmap_backups_applied_total{node=%q,kind=%q}`, m.node, kind)).Inc()
}

// --------------------------------------------------------------------------
// Snapshot
// --------------------------------------------------------------------------

// MetricsSnapshot summarizes the backup health of a node.
type MetricsSnapshot struct {
	SyncAcks            int64   `json:"sync_acks"`
	SyncAckMeanMs       float64 `json:"sync_ack_mean_ms"`
	SyncAckP99Ms        float64 `json:"sync_ack_p99_ms"`
	Degraded            int64   `json:"degraded"`
	DegradedRate1m      float64 `json:"degraded_rate_1m"`
	PersistenceFailures int64   `json:"persistence_failures"`
	BackupsApplied      int64   `json:"backups_applied"`
}

func (m *nodeMetrics) snapshot() MetricsSnapshot {
	acks := m.syncAcks.Snapshot()
	degraded := m.degraded.Snapshot()
	return MetricsSnapshot{
		SyncAcks:            acks.Count(),
		SyncAckMeanMs:       acks.Mean() / float64(time.Millisecond),
		SyncAckP99Ms:        acks.Percentile(0.99) / float64(time.Millisecond),
		Degraded:            degraded.Count(),
		DegradedRate1m:      degraded.Rate1(),
		PersistenceFailures: m.persistFails.Count(),
		BackupsApplied:      m.backupsApplied.Count(),
	}
}
