package node

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/codec"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/lib/partition"
	"github.com/ValentinKolb/dMap/lib/persistence"
	"github.com/ValentinKolb/dMap/lib/record"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("node")

// Config holds everything a node is built from.
type Config struct {
	Table *cluster.Table
	// Maps holds explicitly configured maps. Other maps use
	// record.DefaultMapConfig.
	Maps map[string]record.MapConfig
	// Persistence creates the loader and store of a map. Nil disables
	// persistence.
	Persistence persistence.Factory
	// Codec converts keys and values for persistence plugins. Defaults to
	// the string codec.
	Codec         codec.ICodec
	Dispatcher    operation.BackupDispatcher
	BackupTimeout time.Duration
}

// Node is the local member of a dMap cluster. It owns a container and an
// executor for every partition it touched and routes map operations to them.
//
// Thread-safety: all methods can be called concurrently.
type Node struct {
	id            cluster.NodeID
	table         *cluster.Table
	maps          map[string]record.MapConfig
	persistence   persistence.Factory
	codec         codec.ICodec
	dispatcher    operation.BackupDispatcher
	backupTimeout time.Duration

	containers *xsync.MapOf[uint32, *partition.Container]
	executors  *xsync.MapOf[uint32, *partition.Executor]
	metrics    *nodeMetrics
}

// New creates a node from config.
func New(config Config) (*Node, error) {
	if config.Table == nil {
		return nil, fmt.Errorf("node: partition table is required")
	}
	if config.Dispatcher == nil {
		return nil, fmt.Errorf("node: backup dispatcher is required")
	}
	maps := make(map[string]record.MapConfig, len(config.Maps))
	for name, mc := range config.Maps {
		if mc.Name == "" {
			mc.Name = name
		}
		if err := mc.Validate(); err != nil {
			return nil, fmt.Errorf("node: %w", err)
		}
		maps[name] = mc
	}
	if config.Persistence == nil {
		config.Persistence = persistence.NoPersistence
	}
	if config.Codec == nil {
		config.Codec = codec.NewStringCodec()
	}
	if config.BackupTimeout <= 0 {
		config.BackupTimeout = operation.DefaultBackupTimeout
	}

	n := &Node{
		id:            config.Table.Local(),
		table:         config.Table,
		maps:          maps,
		persistence:   config.Persistence,
		codec:         config.Codec,
		dispatcher:    config.Dispatcher,
		backupTimeout: config.BackupTimeout,
		containers:    xsync.NewMapOf[uint32, *partition.Container](),
		executors:     xsync.NewMapOf[uint32, *partition.Executor](),
		metrics:       newNodeMetrics(config.Table.Local()),
	}
	log.Infof("node %s created: %d members, %d partitions, %d owned", n.id, n.table.Size(), n.table.PartitionCount(), len(n.table.OwnedPartitions()))
	return n, nil
}

func (n *Node) ID() cluster.NodeID    { return n.id }
func (n *Node) Table() *cluster.Table { return n.table }
func (n *Node) Codec() codec.ICodec   { return n.codec }

// MapConfig returns the configuration of mapName.
func (n *Node) MapConfig(mapName string) record.MapConfig {
	if mc, ok := n.maps[mapName]; ok {
		return mc
	}
	return record.DefaultMapConfig(mapName)
}

// --------------------------------------------------------------------------
// Partition state
// --------------------------------------------------------------------------

// Container returns the container of partition, creating it if needed.
func (n *Node) Container(partitionID uint32) *partition.Container {
	c, _ := n.containers.LoadOrCompute(partitionID, func() *partition.Container {
		return partition.NewContainer(partitionID, n.newRecordStore)
	})
	return c
}

func (n *Node) newRecordStore(partitionID uint32, mapName string) *record.Store {
	loader, store := n.persistence(mapName)
	return record.NewStore(partitionID, n.MapConfig(mapName), loader, store)
}

// executor returns the executor of partition, starting it if needed.
func (n *Node) executor(partitionID uint32) *partition.Executor {
	e, _ := n.executors.LoadOrCompute(partitionID, func() *partition.Executor {
		return partition.NewExecutor(partitionID)
	})
	return e
}

// deps returns the operation dependencies for partition.
func (n *Node) deps(partitionID uint32) operation.Deps {
	return operation.Deps{
		Table:         n.table,
		Container:     n.Container(partitionID),
		Codec:         n.codec,
		Dispatcher:    n.dispatcher,
		BackupTimeout: n.backupTimeout,
		Observer:      n.metrics,
	}
}

// checkPartition validates a partition id received from outside.
func (n *Node) checkPartition(partitionID uint32) error {
	if partitionID >= n.table.PartitionCount() {
		return operation.NewError(operation.RetCInvalidOperation, fmt.Sprintf("partition %d out of range [0, %d)", partitionID, n.table.PartitionCount()))
	}
	return nil
}

// ReleasePartition tears down the local state of partition, e.g. after it
// migrated to another member. Queued operations of the partition still run
// before the state is cleared. Touching the partition again starts with an
// empty container.
func (n *Node) ReleasePartition(partitionID uint32) {
	if e, ok := n.executors.LoadAndDelete(partitionID); ok {
		e.Close()
		<-e.Done()
	}
	if c, ok := n.containers.LoadAndDelete(partitionID); ok {
		c.Clear()
	}
	log.Infof("node %s released partition %d", n.id, partitionID)
}

// Close stops all executors after their queued operations ran.
func (n *Node) Close() {
	n.executors.Range(func(_ uint32, e *partition.Executor) bool {
		e.Close()
		return true
	})
	n.executors.Range(func(_ uint32, e *partition.Executor) bool {
		<-e.Done()
		return true
	})
	n.metrics.stop()
	log.Infof("node %s closed", n.id)
}

// call runs fn on the executor of partitionID and waits for its result or
// for ctx. A panic in fn is returned as RetCInternalError.
func call[T any](ctx context.Context, n *Node, partitionID uint32, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	err := n.executor(partitionID).Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: operation.NewError(operation.RetCInternalError, fmt.Sprintf("partition %d: %v", partitionID, r))}
			}
		}()
		v, err := fn()
		done <- result{v: v, err: err}
	})

	var zero T
	if err != nil {
		return zero, operation.WrapError(operation.RetCInternalError, fmt.Sprintf("partition %d", partitionID), err)
	}
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
