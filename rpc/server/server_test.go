package server

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/node"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/rpc/common"
	"github.com/ValentinKolb/dMap/rpc/serializer"
	"github.com/ValentinKolb/dMap/rpc/transport/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPartitions = 8

type testServer struct {
	*RPCServer
	node       *node.Node
	serializer serializer.IRPCSerializer
}

func newTestServer(t *testing.T, localID cluster.NodeID, memberIDs ...cluster.NodeID) *testServer {
	t.Helper()
	if len(memberIDs) == 0 {
		memberIDs = []cluster.NodeID{localID}
	}
	members := make([]cluster.Member, len(memberIDs))
	for i, id := range memberIDs {
		members[i] = cluster.Member{ID: id}
	}
	table, err := cluster.NewTable(localID, members, testPartitions)
	require.NoError(t, err)

	n, err := node.New(node.Config{
		Table:         table,
		Dispatcher:    node.NewLocalDispatcher(),
		BackupTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(n.Close)

	s := serializer.NewBinarySerializer()
	return &testServer{
		RPCServer:  NewRPCServer(common.ServerConfig{NodeID: string(localID)}, local.NewLocalServerTransport(), s, n),
		node:       n,
		serializer: s,
	}
}

// send routes msg to the partition of its key and decodes the response.
func (ts *testServer) send(t *testing.T, msg *common.Message) *common.Message {
	t.Helper()
	return ts.sendTo(t, ts.node.Table().PartitionOf(msg.Key), msg)
}

func (ts *testServer) sendTo(t *testing.T, partitionID uint32, msg *common.Message) *common.Message {
	t.Helper()
	req, err := ts.serializer.Serialize(*msg)
	require.NoError(t, err)

	var resp common.Message
	require.NoError(t, ts.serializer.Deserialize(ts.Handle(context.Background(), partitionID, req), &resp))
	return &resp
}

// keyOwnedBy returns a key whose partition is owned by id.
func keyOwnedBy(t *testing.T, table *cluster.Table, id cluster.NodeID) []byte {
	t.Helper()
	for i := 0; i < 1000; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		if table.Owner(table.PartitionOf(key)) == id {
			return key
		}
	}
	t.Fatalf("no key owned by %s", id)
	return nil
}

func TestMapOperations(t *testing.T) {
	ts := newTestServer(t, "a")
	key := []byte("k")

	resp := ts.send(t, common.NewMutationRequest(common.MsgTMapPut, "m", key, []byte("v1"), 0, "", ""))
	require.NoError(t, resp.AsError())
	assert.False(t, resp.Ok, "no prior value")

	resp = ts.send(t, common.NewMutationRequest(common.MsgTMapPut, "m", key, []byte("v2"), 0, "", ""))
	require.NoError(t, resp.AsError())
	assert.True(t, resp.Ok)
	assert.Equal(t, []byte("v1"), resp.Value)

	resp = ts.send(t, common.NewGetRequest("m", key))
	require.NoError(t, resp.AsError())
	assert.True(t, resp.Ok)
	assert.Equal(t, []byte("v2"), resp.Value)

	resp = ts.send(t, common.NewMutationRequest(common.MsgTMapRemove, "m", key, nil, 0, "", ""))
	require.NoError(t, resp.AsError())
	assert.Equal(t, []byte("v2"), resp.Value)

	resp = ts.send(t, common.NewMutationRequest(common.MsgTMapUpdate, "m", key, []byte("v3"), 0, "", ""))
	require.NoError(t, resp.AsError())
	assert.False(t, resp.Ok, "update of a missing key")

	resp = ts.send(t, common.NewGetRequest("m", key))
	require.NoError(t, resp.AsError())
	assert.False(t, resp.Ok)
}

func TestRequestForWrongPartition(t *testing.T) {
	ts := newTestServer(t, "a")
	key := []byte("k")
	other := (ts.node.Table().PartitionOf(key) + 1) % testPartitions

	resp := ts.sendTo(t, other, common.NewGetRequest("m", key))
	assert.True(t, operation.IsCode(resp.AsError(), operation.RetCWrongPartition), "a misrouted key can be retried")

	resp = ts.sendTo(t, other, common.NewMutationRequest(common.MsgTMapRemove, "m", key, nil, 0, "", ""))
	assert.True(t, operation.IsCode(resp.AsError(), operation.RetCWrongPartition))

	resp = ts.sendTo(t, testPartitions, common.NewCommitRequest("txn", ""))
	assert.True(t, operation.IsCode(resp.AsError(), operation.RetCInvalidOperation))
}

func TestRequestForForeignPartition(t *testing.T) {
	ts := newTestServer(t, "a", "a", "b")
	key := keyOwnedBy(t, ts.node.Table(), "b")

	resp := ts.send(t, common.NewMutationRequest(common.MsgTMapPut, "m", key, []byte("v"), 0, "", ""))
	assert.True(t, operation.IsCode(resp.AsError(), operation.RetCWrongPartition))
}

func TestInvalidRequests(t *testing.T) {
	ts := newTestServer(t, "a")

	var resp common.Message
	require.NoError(t, ts.serializer.Deserialize(ts.Handle(context.Background(), 0, []byte{0xff}), &resp))
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.True(t, operation.IsCode(resp.AsError(), operation.RetCInvalidOperation))

	r := ts.sendTo(t, 0, &common.Message{MsgType: common.MsgTSuccess})
	assert.Equal(t, common.MsgTError, r.MsgType)
	assert.True(t, operation.IsCode(r.AsError(), operation.RetCInvalidOperation))
}

func TestLocks(t *testing.T) {
	ts := newTestServer(t, "a")
	key := []byte("locked")

	resp := ts.send(t, common.NewAcquireRequest("m", key, time.Minute))
	require.NoError(t, resp.AsError())
	require.True(t, resp.Ok)
	token := resp.Token
	require.NotEmpty(t, token)

	resp = ts.send(t, common.NewAcquireRequest("m", key, time.Minute))
	require.NoError(t, resp.AsError())
	assert.False(t, resp.Ok, "held by another owner")

	resp = ts.send(t, common.NewMutationRequest(common.MsgTMapPut, "m", key, []byte("v"), 0, "", ""))
	assert.True(t, operation.IsCode(resp.AsError(), operation.RetCKeyLocked))

	resp = ts.send(t, common.NewMutationRequest(common.MsgTMapPut, "m", key, []byte("v"), 0, "", token))
	require.NoError(t, resp.AsError())

	resp = ts.send(t, common.NewReleaseRequest("m", key, token))
	require.NoError(t, resp.AsError())
	assert.True(t, resp.Ok)

	resp = ts.send(t, common.NewReleaseRequest("m", key, token))
	require.NoError(t, resp.AsError())
	assert.True(t, resp.Ok, "releasing a released lock succeeds")
}

func TestTransactions(t *testing.T) {
	ts := newTestServer(t, "a")
	key := []byte("k")
	pid := ts.node.Table().PartitionOf(key)

	resp := ts.send(t, common.NewMutationRequest(common.MsgTMapPut, "m", key, []byte("v"), 0, "txn-1", ""))
	require.NoError(t, resp.AsError())

	resp = ts.send(t, common.NewGetRequest("m", key))
	require.NoError(t, resp.AsError())
	assert.False(t, resp.Ok, "not visible before commit")

	resp = ts.sendTo(t, pid, common.NewCommitRequest("txn-1", ""))
	require.NoError(t, resp.AsError())
	assert.Equal(t, uint64(1), resp.Count)

	resp = ts.send(t, common.NewGetRequest("m", key))
	require.NoError(t, resp.AsError())
	assert.Equal(t, []byte("v"), resp.Value)

	resp = ts.sendTo(t, pid, common.NewCommitRequest("txn-1", ""))
	assert.True(t, operation.IsCode(resp.AsError(), operation.RetCUnknownTransaction))

	resp = ts.send(t, common.NewMutationRequest(common.MsgTMapRemove, "m", key, nil, 0, "txn-2", ""))
	require.NoError(t, resp.AsError())
	resp = ts.sendTo(t, pid, common.NewRollbackRequest("txn-2"))
	require.NoError(t, resp.AsError())
	assert.Equal(t, uint64(1), resp.Count)
}

func TestBackup(t *testing.T) {
	ts := newTestServer(t, "b", "a", "b")
	table := ts.node.Table()
	key := keyOwnedBy(t, table, "a")
	pid := table.PartitionOf(key)

	b := operation.Backup{MapName: "m", PartitionID: pid, Key: key, Value: []byte("v"), Version: 1, Kind: operation.KindPut}
	resp := ts.sendTo(t, pid, common.NewBackupRequest(b, true))
	require.NoError(t, resp.AsError())

	rec, ok := ts.node.Container(pid).RecordStore("m").Peek(key)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), []byte(rec.Value))

	// the local node is the primary of its own partitions
	own := keyOwnedBy(t, table, "b")
	b = operation.Backup{MapName: "m", PartitionID: table.PartitionOf(own), Key: own, Value: []byte("v"), Version: 1, Kind: operation.KindPut}
	resp = ts.sendTo(t, b.PartitionID, common.NewBackupRequest(b, true))
	assert.True(t, operation.IsCode(resp.AsError(), operation.RetCWrongPartition))
}

func TestInfo(t *testing.T) {
	ts := newTestServer(t, "a")
	ts.send(t, common.NewMutationRequest(common.MsgTMapPut, "m", []byte("k"), []byte("v"), 0, "", ""))

	resp := ts.sendTo(t, 0, common.NewInfoRequest())
	require.NoError(t, resp.AsError())

	var info node.Info
	require.NoError(t, json.Unmarshal(resp.Meta, &info))
	assert.Equal(t, cluster.NodeID("a"), info.NodeID)
	assert.Equal(t, 1, info.Entries)
}

func TestServeOverTransport(t *testing.T) {
	ts := newTestServer(t, "a")
	ts.config.Transport.Endpoint = "server-test"

	done := make(chan error, 1)
	go func() { done <- ts.Serve() }()

	client := local.NewLocalClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{Transport: common.ClientTransportConfig{Endpoints: []string{"server-test"}}}))

	req, err := ts.serializer.Serialize(*common.NewInfoRequest())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := client.Send(context.Background(), 0, req)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, ts.Shutdown(context.Background()))
	require.NoError(t, <-done)
}
