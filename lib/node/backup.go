package node

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/puzpuzpuz/xsync/v3"
)

// ApplyBackup replays b on the local replica of its partition. Backups for
// partitions this node does not replicate are rejected. The backup runs
// on the partition executor, so backups arriving in primary order are applied
// in primary order. With sync set ApplyBackup waits until b was applied.
func (n *Node) ApplyBackup(ctx context.Context, b operation.Backup, sync bool) error {
	if err := n.checkPartition(b.PartitionID); err != nil {
		return err
	}
	if n.table.IsOwner(b.PartitionID) {
		return operation.NewError(operation.RetCWrongPartition, fmt.Sprintf("node %s is the primary of partition %d", n.id, b.PartitionID))
	}
	if n.table.ReplicaIndex(b.PartitionID, n.MapConfig(b.MapName).TotalBackupCount()) == 0 {
		return operation.NewError(operation.RetCWrongPartition, fmt.Sprintf("node %s holds no backup of map %s in partition %d", n.id, b.MapName, b.PartitionID))
	}

	rs := n.Container(b.PartitionID).RecordStore(b.MapName)
	apply := func() (bool, error) {
		changed, err := b.Apply(rs)
		if err != nil {
			log.Errorf("applying %s: %v", b, err)
			return false, err
		}
		n.metrics.backupApplied(b.Kind)
		return changed, nil
	}

	if !sync {
		return n.executor(b.PartitionID).Submit(func() { _, _ = apply() })
	}
	_, err := call(ctx, n, b.PartitionID, apply)
	return err
}

// --------------------------------------------------------------------------
// In-process dispatcher
// --------------------------------------------------------------------------

// LocalDispatcher delivers backups to nodes of the same process. It is used
// by embedded clusters and tests.
type LocalDispatcher struct {
	nodes *xsync.MapOf[cluster.NodeID, *Node]
}

func NewLocalDispatcher() *LocalDispatcher {
	return &LocalDispatcher{nodes: xsync.NewMapOf[cluster.NodeID, *Node]()}
}

// Register makes n reachable as a backup target.
func (d *LocalDispatcher) Register(n *Node) {
	d.nodes.Store(n.ID(), n)
}

// Unregister makes id unreachable, e.g. to simulate a failed member.
func (d *LocalDispatcher) Unregister(id cluster.NodeID) {
	d.nodes.Delete(id)
}

// SendBackup implements operation.BackupDispatcher.
func (d *LocalDispatcher) SendBackup(ctx context.Context, b operation.Backup, target cluster.NodeID, sync bool) error {
	n, ok := d.nodes.Load(target)
	if !ok {
		return fmt.Errorf("unknown backup target %s", target)
	}
	return n.ApplyBackup(ctx, b, sync)
}
