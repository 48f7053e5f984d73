package node

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/persistence"
	"github.com/ValentinKolb/dMap/lib/record"
	"github.com/stretchr/testify/require"
)

const testPartitions = 16

// testCluster is an in-process cluster connected by a LocalDispatcher.
type testCluster struct {
	nodes      []*Node
	dispatcher *LocalDispatcher
	table      *cluster.Table
}

func newTestCluster(t *testing.T, size int, maps map[string]record.MapConfig, factory persistence.Factory) *testCluster {
	t.Helper()

	members := make([]cluster.Member, size)
	for i := range members {
		members[i] = cluster.Member{ID: cluster.NodeID(fmt.Sprintf("node-%c", 'a'+i))}
	}

	tc := &testCluster{dispatcher: NewLocalDispatcher()}
	for _, m := range members {
		table, err := cluster.NewTable(m.ID, members, testPartitions)
		require.NoError(t, err)

		n, err := New(Config{
			Table:         table,
			Maps:          maps,
			Persistence:   factory,
			Dispatcher:    tc.dispatcher,
			BackupTimeout: 500 * time.Millisecond,
		})
		require.NoError(t, err)

		tc.dispatcher.Register(n)
		tc.nodes = append(tc.nodes, n)
		t.Cleanup(n.Close)
	}
	tc.table = tc.nodes[0].Table()
	return tc
}

// node returns the member with id.
func (tc *testCluster) node(id cluster.NodeID) *Node {
	for _, n := range tc.nodes {
		if n.ID() == id {
			return n
		}
	}
	return nil
}

// keysOwnedBy returns count keys of one partition owned by id.
func (tc *testCluster) keysOwnedBy(t *testing.T, id cluster.NodeID, count int) []record.Data {
	t.Helper()
	var (
		keys []record.Data
		pid  uint32
	)
	for i := 0; i < 100000 && len(keys) < count; i++ {
		key := record.Data(fmt.Sprintf("key-%d", i))
		p := tc.table.PartitionOf(key)
		if tc.table.Owner(p) != id || (len(keys) > 0 && p != pid) {
			continue
		}
		pid = p
		keys = append(keys, key)
	}
	require.Len(t, keys, count)
	return keys
}

// peek reads key from the record store of n without going through the
// executor.
func peek(n *Node, mapName string, key record.Data) (record.Record, bool) {
	pid := n.Table().PartitionOf(key)
	return n.Container(pid).RecordStore(mapName).Peek(key)
}
