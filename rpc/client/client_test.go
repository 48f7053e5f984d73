package client

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/node"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/lib/record"
	"github.com/ValentinKolb/dMap/rpc/common"
	"github.com/ValentinKolb/dMap/rpc/serializer"
	"github.com/ValentinKolb/dMap/rpc/server"
	"github.com/ValentinKolb/dMap/rpc/transport/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPartitions = 16

// testMember is one node of an in-process cluster connected by the local
// transport.
type testMember struct {
	node       *node.Node
	server     *server.RPCServer
	dispatcher *RemoteBackupDispatcher
	done       chan error
}

func (m *testMember) stop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.server.Shutdown(ctx))
	require.NoError(t, <-m.done)
}

type testCluster struct {
	members map[cluster.NodeID]*testMember
	config  common.ClientConfig
	table   *cluster.Table
}

func newTestCluster(t *testing.T, size int, maps ...record.MapConfig) *testCluster {
	t.Helper()

	endpoints := make(map[string]string, size)
	for i := 0; i < size; i++ {
		id := fmt.Sprintf("node-%c", 'a'+i)
		endpoints[id] = fmt.Sprintf("%s/%s", t.Name(), id)
	}
	tc := &testCluster{
		members: make(map[cluster.NodeID]*testMember, size),
		config: common.ClientConfig{
			Members:        endpoints,
			PartitionCount: testPartitions,
			TimeoutSecond:  2,
		},
	}

	for id, endpoint := range endpoints {
		serverConfig := common.ServerConfig{
			NodeID:         id,
			Members:        endpoints,
			PartitionCount: testPartitions,
			Maps:           maps,
			BackupTimeout:  200 * time.Millisecond,
			Transport:      common.ServerTransportConfig{Endpoint: endpoint},
		}
		table, err := serverConfig.Table()
		require.NoError(t, err)

		dispatcher, err := NewRemoteBackupDispatcher(tc.config, local.NewLocalClientTransport, serializer.NewBinarySerializer(), 0)
		require.NoError(t, err)

		n, err := node.New(node.Config{
			Table:         table,
			Maps:          serverConfig.MapConfigs(),
			Dispatcher:    dispatcher,
			BackupTimeout: serverConfig.BackupTimeout,
		})
		require.NoError(t, err)

		m := &testMember{
			node:       n,
			server:     server.NewRPCServer(serverConfig, local.NewLocalServerTransport(), serializer.NewBinarySerializer(), n),
			dispatcher: dispatcher,
			done:       make(chan error, 1),
		}
		go func() { m.done <- m.server.Serve() }()
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = m.server.Shutdown(ctx)
			_ = dispatcher.Close(ctx)
			n.Close()
		})
		tc.members[cluster.NodeID(id)] = m
		tc.table = table
	}
	return tc
}

// client connects a client and waits until every member serves requests.
func (tc *testCluster) client(t *testing.T) *RPCMapClient {
	t.Helper()
	c, err := NewRPCMapClient(tc.config, local.NewLocalClientTransport, serializer.NewBinarySerializer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.Eventually(t, func() bool {
		_, err := c.Info(context.Background())
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	return c
}

// keysOfPartitions returns one key for each of count different partitions.
func keysOfPartitions(table *cluster.Table, count int) [][]byte {
	seen := make(map[uint32]bool)
	var keys [][]byte
	for i := 0; len(keys) < count; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		if pid := table.PartitionOf(key); !seen[pid] {
			seen[pid] = true
			keys = append(keys, key)
		}
	}
	return keys
}

func peek(n *node.Node, mapName string, key []byte) (record.Record, bool) {
	return n.Container(n.Table().PartitionOf(key)).RecordStore(mapName).Peek(key)
}

func TestMapOperationsAcrossCluster(t *testing.T) {
	tc := newTestCluster(t, 3, record.MapConfig{Name: "m", BackupCount: 1, AsyncBackupCount: 1})
	c := tc.client(t)
	ctx := context.Background()

	keys := keysOfPartitions(tc.table, 8)
	for i, key := range keys {
		resp, err := c.Put(ctx, "m", key, []byte(fmt.Sprintf("v%d", i)), 0)
		require.NoError(t, err)
		assert.False(t, resp.Found)
		assert.False(t, resp.Degraded)
	}

	for i, key := range keys {
		value, found, err := c.Get(ctx, "m", key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte(fmt.Sprintf("v%d", i)), value)

		pid := tc.table.PartitionOf(key)
		replicas := tc.table.Replicas(pid, 2)
		rec, ok := peek(tc.members[replicas[0]].node, "m", key)
		require.True(t, ok, "sync replica applied the backup before the put returned")
		assert.Equal(t, record.Data(value), rec.Value)

		asyncReplica := tc.members[replicas[1]].node
		assert.Eventually(t, func() bool {
			_, ok := peek(asyncReplica, "m", key)
			return ok
		}, time.Second, 5*time.Millisecond)
	}

	resp, err := c.Remove(ctx, "m", keys[0])
	require.NoError(t, err)
	assert.True(t, resp.Found)
	assert.Equal(t, []byte("v0"), []byte(resp.Value))

	_, found, err := c.Get(ctx, "m", keys[0])
	require.NoError(t, err)
	assert.False(t, found)
	for _, m := range tc.members {
		assert.Eventually(t, func() bool {
			_, ok := peek(m.node, "m", keys[0])
			return !ok
		}, time.Second, 5*time.Millisecond)
	}

	resp, err = c.Update(ctx, "m", keys[1], []byte("new"), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), []byte(resp.Value))
}

func TestAsyncBackupsKeepOrder(t *testing.T) {
	tc := newTestCluster(t, 2, record.MapConfig{Name: "m", AsyncBackupCount: 1})
	c := tc.client(t)
	ctx := context.Background()
	key := keysOfPartitions(tc.table, 1)[0]

	for i := 0; i < 50; i++ {
		_, err := c.Put(ctx, "m", key, []byte(fmt.Sprintf("v%d", i)), 0)
		require.NoError(t, err)
	}

	replica := tc.members[tc.table.Replicas(tc.table.PartitionOf(key), 1)[0]].node
	assert.Eventually(t, func() bool {
		rec, ok := peek(replica, "m", key)
		return ok && string(rec.Value) == "v49"
	}, time.Second, 5*time.Millisecond)
}

func TestDegradedWhenReplicaIsDown(t *testing.T) {
	tc := newTestCluster(t, 2, record.MapConfig{Name: "m", BackupCount: 1})
	c := tc.client(t)
	ctx := context.Background()
	key := keysOfPartitions(tc.table, 1)[0]
	pid := tc.table.PartitionOf(key)

	tc.members[tc.table.Replicas(pid, 1)[0]].stop(t)

	resp, err := c.Put(ctx, "m", key, []byte("v"), 0)
	require.NoError(t, err, "a missing ack is not an error")
	assert.True(t, resp.Degraded)

	value, found, err := c.Get(ctx, "m", key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), value)
}

func TestLocksOverRPC(t *testing.T) {
	tc := newTestCluster(t, 2)
	c := tc.client(t)
	ctx := context.Background()
	key := []byte("locked")

	ok, token, err := c.Lock(ctx, "m", key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = c.Put(ctx, "m", key, []byte("v"), 0)
	assert.True(t, operation.IsCode(err, operation.RetCKeyLocked), "got %v", err)

	_, err = c.Mutate(ctx, "m", key, operation.Put{Value: []byte("v")}, node.MutateOptions{Token: token})
	require.NoError(t, err)

	ok, err = c.Unlock(ctx, "m", key, token)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.Put(ctx, "m", key, []byte("w"), 0)
	assert.NoError(t, err)
}

func TestTransactionAcrossPartitions(t *testing.T) {
	tc := newTestCluster(t, 3)
	c := tc.client(t)
	ctx := context.Background()
	keys := keysOfPartitions(tc.table, 4)

	tx := c.BeginTransaction("")
	for _, key := range keys {
		require.NoError(t, tx.Put(ctx, "m", key, []byte("v"), 0))
	}
	require.NoError(t, tx.Remove(ctx, "m", keys[0]))

	for _, key := range keys {
		_, found, err := c.Get(ctx, "m", key)
		require.NoError(t, err)
		assert.False(t, found, "not visible before commit")
	}

	applied, err := tx.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(keys)+1, applied)

	_, found, err := c.Get(ctx, "m", keys[0])
	require.NoError(t, err)
	assert.False(t, found, "removed after the put in log order")
	for _, key := range keys[1:] {
		value, found, err := c.Get(ctx, "m", key)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v"), value)
	}

	_, err = tx.Commit(ctx)
	assert.Error(t, err, "already committed")
	assert.Error(t, tx.Put(ctx, "m", keys[0], []byte("v"), 0))
}

func TestTransactionRollback(t *testing.T) {
	tc := newTestCluster(t, 2)
	c := tc.client(t)
	ctx := context.Background()
	keys := keysOfPartitions(tc.table, 3)

	tx := c.BeginTransaction("")
	for _, key := range keys {
		require.NoError(t, tx.Put(ctx, "m", key, []byte("v"), 0))
	}
	dropped, err := tx.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(keys), dropped)

	for _, key := range keys {
		_, found, err := c.Get(ctx, "m", key)
		require.NoError(t, err)
		assert.False(t, found)
	}
}

func TestInfo(t *testing.T) {
	tc := newTestCluster(t, 3)
	c := tc.client(t)

	infos, err := c.Info(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 3)
	for id, info := range infos {
		assert.Equal(t, id, info.NodeID)
		assert.Equal(t, 3, info.Members)
		assert.Equal(t, uint32(testPartitions), info.PartitionCount)
	}
}

func TestClientWithoutServer(t *testing.T) {
	c, err := NewRPCMapClient(common.ClientConfig{
		Members:        map[string]string{"a": "nowhere"},
		PartitionCount: testPartitions,
	}, local.NewLocalClientTransport, serializer.NewBinarySerializer())
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), "m", []byte("k"))
	assert.Error(t, err)

	require.NoError(t, c.Close())
	_, _, err = c.Get(context.Background(), "m", []byte("k"))
	assert.Error(t, err)
}
