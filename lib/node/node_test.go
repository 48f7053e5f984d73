package node

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/lib/persistence"
	"github.com/ValentinKolb/dMap/lib/record"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replicatedMaps() map[string]record.MapConfig {
	return map[string]record.MapConfig{
		"m": {BackupCount: 1, AsyncBackupCount: 1},
	}
}

func TestPutRemoveReplicates(t *testing.T) {
	tc := newTestCluster(t, 3, replicatedMaps(), nil)
	ctx := context.Background()
	primary := tc.node("node-a")
	key := tc.keysOwnedBy(t, "node-a", 1)[0]
	replicas := tc.table.Replicas(tc.table.PartitionOf(key), 2)
	syncReplica, asyncReplica := tc.node(replicas[0]), tc.node(replicas[1])

	resp, err := primary.Put(ctx, "m", key, record.Data("v"), 0)
	require.NoError(t, err)
	require.NoError(t, resp.Err)
	assert.False(t, resp.Degraded)

	rec, ok := peek(syncReplica, "m", key)
	require.True(t, ok, "sync replica applied the backup before the put returned")
	assert.Equal(t, record.Data("v"), rec.Value)
	assert.Eventually(t, func() bool {
		_, ok := peek(asyncReplica, "m", key)
		return ok
	}, time.Second, 5*time.Millisecond)

	resp, err = primary.Remove(ctx, "m", key)
	require.NoError(t, err)
	require.NoError(t, resp.Err)
	assert.True(t, resp.Found)
	assert.Equal(t, record.Data("v"), resp.Value)

	_, found, err := primary.Get(ctx, "m", key)
	require.NoError(t, err)
	assert.False(t, found)

	_, ok = peek(syncReplica, "m", key)
	assert.False(t, ok)
	assert.Eventually(t, func() bool {
		_, ok := peek(asyncReplica, "m", key)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestNonOwnerRejects(t *testing.T) {
	tc := newTestCluster(t, 2, nil, nil)
	ctx := context.Background()
	key := tc.keysOwnedBy(t, "node-a", 1)[0]
	other := tc.node("node-b")

	resp, err := other.Remove(ctx, "m", key)
	require.NoError(t, err)
	assert.True(t, operation.IsCode(resp.Err, operation.RetCWrongPartition))

	_, _, err = other.Get(ctx, "m", key)
	assert.True(t, operation.IsCode(err, operation.RetCWrongPartition))

	_, _, err = other.Lock("m", key, 0)
	assert.True(t, operation.IsCode(err, operation.RetCWrongPartition))
}

func TestTransactionCommit(t *testing.T) {
	tc := newTestCluster(t, 2, replicatedMaps(), nil)
	ctx := context.Background()
	primary := tc.node("node-a")
	replica := tc.node("node-b")
	keys := tc.keysOwnedBy(t, "node-a", 2)
	pid := tc.table.PartitionOf(keys[0])

	_, err := primary.Put(ctx, "m", keys[0], record.Data("old"), 0)
	require.NoError(t, err)

	txn := primary.BeginTransaction()
	resp, err := primary.Mutate(ctx, "m", keys[0], operation.Remove{}, MutateOptions{TxnID: txn})
	require.NoError(t, err)
	assert.NoError(t, resp.Err)
	assert.False(t, resp.Found, "transactional mutations answer nil")

	_, err = primary.Mutate(ctx, "m", keys[1], operation.Put{Value: record.Data("new")}, MutateOptions{TxnID: txn})
	require.NoError(t, err)

	_, ok := peek(primary, "m", keys[0])
	assert.True(t, ok, "nothing is applied before commit")
	_, ok = peek(primary, "m", keys[1])
	assert.False(t, ok)

	applied, err := primary.Commit(ctx, txn, pid, "")
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	_, ok = peek(primary, "m", keys[0])
	assert.False(t, ok)
	rec, ok := peek(replica, "m", keys[1])
	require.True(t, ok, "committed items are backed up")
	assert.Equal(t, record.Data("new"), rec.Value)

	_, err = primary.Commit(ctx, txn, pid, "")
	assert.True(t, operation.IsCode(err, operation.RetCUnknownTransaction))
}

func TestCommitAggregatesErrors(t *testing.T) {
	tc := newTestCluster(t, 1, nil, nil)
	ctx := context.Background()
	n := tc.nodes[0]
	keys := tc.keysOwnedBy(t, "node-a", 3)
	pid := tc.table.PartitionOf(keys[0])

	txn := n.BeginTransaction()
	for _, key := range keys {
		_, err := n.Mutate(ctx, "m", key, operation.Put{Value: record.Data("v")}, MutateOptions{TxnID: txn})
		require.NoError(t, err)
	}

	// another owner locks a key between logging and commit
	ok, _, err := n.Lock("m", keys[1], 0)
	require.NoError(t, err)
	require.True(t, ok)

	applied, err := n.Commit(ctx, txn, pid, "")
	assert.Equal(t, 2, applied)
	require.Error(t, err)
	assert.True(t, operation.IsCode(err, operation.RetCKeyLocked))

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 1)

	_, ok = peek(n, "m", keys[1])
	assert.False(t, ok)
}

func TestTransactionRollback(t *testing.T) {
	tc := newTestCluster(t, 1, nil, nil)
	ctx := context.Background()
	n := tc.nodes[0]
	key := tc.keysOwnedBy(t, "node-a", 1)[0]
	pid := tc.table.PartitionOf(key)

	txn := n.BeginTransaction()
	_, err := n.Mutate(ctx, "m", key, operation.Put{Value: record.Data("v")}, MutateOptions{TxnID: txn})
	require.NoError(t, err)
	assert.Equal(t, 1, n.Info().Transactions)

	dropped, err := n.Rollback(ctx, txn, pid)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	dropped, err = n.Rollback(ctx, txn, pid)
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)

	_, found, err := n.Get(ctx, "m", key)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = n.Rollback(ctx, txn, testPartitions)
	assert.True(t, operation.IsCode(err, operation.RetCInvalidOperation))
}

func TestLockedKey(t *testing.T) {
	tc := newTestCluster(t, 1, nil, nil)
	ctx := context.Background()
	n := tc.nodes[0]
	key := tc.keysOwnedBy(t, "node-a", 1)[0]

	ok, token, err := n.Lock("m", key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	locked, err := n.IsLocked("m", key)
	require.NoError(t, err)
	assert.True(t, locked)

	resp, err := n.Put(ctx, "m", key, record.Data("v"), 0)
	require.NoError(t, err)
	assert.True(t, operation.IsCode(resp.Err, operation.RetCKeyLocked))

	resp, err = n.Mutate(ctx, "m", key, operation.Put{Value: record.Data("v")}, MutateOptions{Token: token})
	require.NoError(t, err)
	assert.NoError(t, resp.Err)

	ok, err = n.Unlock("m", key, token)
	require.NoError(t, err)
	assert.True(t, ok)

	resp, err = n.Remove(ctx, "m", key)
	require.NoError(t, err)
	assert.NoError(t, resp.Err)
	assert.Equal(t, record.Data("v"), resp.Value)
}

func TestDegradedWhenReplicaUnreachable(t *testing.T) {
	tc := newTestCluster(t, 2, map[string]record.MapConfig{"m": {BackupCount: 1}}, nil)
	ctx := context.Background()
	primary := tc.node("node-a")
	key := tc.keysOwnedBy(t, "node-a", 1)[0]

	tc.dispatcher.Unregister("node-b")

	resp, err := primary.Put(ctx, "m", key, record.Data("v"), 0)
	require.NoError(t, err)
	assert.NoError(t, resp.Err)
	assert.True(t, resp.Degraded)

	_, ok := peek(primary, "m", key)
	assert.True(t, ok, "the write stays applied")
	assert.Equal(t, int64(1), primary.Info().Metrics.Degraded)
}

func TestPersistence(t *testing.T) {
	factory := persistence.MemoryFactory()
	tc := newTestCluster(t, 1, nil, factory)
	ctx := context.Background()
	n := tc.nodes[0]
	keys := tc.keysOwnedBy(t, "node-a", 2)
	loader, store := factory("m")

	// write-through put
	_, err := n.Put(ctx, "m", keys[0], record.Data("v"), 0)
	require.NoError(t, err)
	value, found, err := loader.Load(ctx, string(keys[0]))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)

	// read through the loader without caching
	require.NoError(t, store.Store(ctx, string(keys[1]), "persisted"))
	data, found, err := n.Get(ctx, "m", keys[1])
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record.Data("persisted"), data)
	_, ok := peek(n, "m", keys[1])
	assert.False(t, ok)

	// write-through remove
	_, err = n.Remove(ctx, "m", keys[0])
	require.NoError(t, err)
	_, found, err = loader.Load(ctx, string(keys[0]))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConcurrentRemovesOnNode(t *testing.T) {
	tc := newTestCluster(t, 1, nil, nil)
	ctx := context.Background()
	n := tc.nodes[0]
	key := tc.keysOwnedBy(t, "node-a", 1)[0]

	_, err := n.Put(ctx, "m", key, record.Data("v"), 0)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		found int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := n.Remove(ctx, "m", key)
			assert.NoError(t, err)
			if resp.Found {
				mu.Lock()
				found++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, found)
}

func TestApplyBackupOnPrimaryRejected(t *testing.T) {
	tc := newTestCluster(t, 2, nil, nil)
	key := tc.keysOwnedBy(t, "node-a", 1)[0]

	err := tc.node("node-a").ApplyBackup(context.Background(), operation.Backup{
		MapName:     "m",
		PartitionID: tc.table.PartitionOf(key),
		Key:         key,
		Kind:        operation.KindRemove,
	}, true)
	assert.True(t, operation.IsCode(err, operation.RetCWrongPartition))
}

func TestApplyBackupOnNonReplicaRejected(t *testing.T) {
	tc := newTestCluster(t, 3, map[string]record.MapConfig{"m": {Name: "m", BackupCount: 1}}, nil)
	key := tc.keysOwnedBy(t, "node-a", 1)[0]
	pid := tc.table.PartitionOf(key)
	replicas := tc.table.Replicas(pid, 2)

	b := operation.Backup{MapName: "m", PartitionID: pid, Key: key, Value: record.Data("v"), Version: 1, Kind: operation.KindPut}
	require.NoError(t, tc.node(replicas[0]).ApplyBackup(context.Background(), b, true))

	err := tc.node(replicas[1]).ApplyBackup(context.Background(), b, true)
	assert.True(t, operation.IsCode(err, operation.RetCWrongPartition), "got %v", err)
	_, ok := peek(tc.node(replicas[1]), "m", key)
	assert.False(t, ok)
}

func TestInfoAndReleasePartition(t *testing.T) {
	tc := newTestCluster(t, 2, map[string]record.MapConfig{"m": {BackupCount: 1}}, nil)
	ctx := context.Background()
	primary := tc.node("node-a")
	keys := tc.keysOwnedBy(t, "node-a", 3)
	pid := tc.table.PartitionOf(keys[0])

	for _, key := range keys {
		_, err := primary.Put(ctx, "m", key, record.Data("value"), 0)
		require.NoError(t, err)
	}

	info := primary.Info()
	assert.Equal(t, 3, info.Entries)
	assert.Equal(t, 2, info.Members)
	assert.Equal(t, testPartitions/2, info.OwnedPartitions)
	assert.Equal(t, int64(3), info.Metrics.SyncAcks)
	assert.Positive(t, info.SizeBytes)
	require.Len(t, info.Partitions, 1)
	assert.Equal(t, pid, info.Partitions[0].PartitionID)

	assert.Equal(t, int64(3), tc.node("node-b").Info().Metrics.BackupsApplied)

	primary.ReleasePartition(pid)
	assert.Equal(t, 0, primary.Info().Entries)

	_, found, err := primary.Get(ctx, "m", keys[0])
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewValidatesConfig(t *testing.T) {
	tc := newTestCluster(t, 1, nil, nil)

	_, err := New(Config{Dispatcher: tc.dispatcher})
	assert.Error(t, err)

	_, err = New(Config{Table: tc.table})
	assert.Error(t, err)

	_, err = New(Config{
		Table:      tc.table,
		Dispatcher: tc.dispatcher,
		Maps:       map[string]record.MapConfig{"m": {BackupCount: 7}},
	})
	assert.Error(t, err)
}
