package cluster

import (
	"fmt"
	"sort"

	"github.com/ValentinKolb/dMap/lib/util"
)

// NodeID identifies a cluster member.
type NodeID string

// Member is a cluster member and the address its RPC endpoint listens on.
type Member struct {
	ID      NodeID
	Address string
}

// Table is a static partition table.
//
// Partition p is owned by the member at position p mod n of the members
// sorted by id; its replicas are the following members on that ring. The
// table never changes once created: membership changes and partition
// migration are handled outside of this package.
type Table struct {
	local          NodeID
	members        []Member
	index          map[NodeID]int
	partitionCount uint32
}

// NewTable creates the partition table as seen by local. An empty local
// creates the table of a client, which owns no partition.
func NewTable(local NodeID, members []Member, partitionCount uint32) (*Table, error) {
	if partitionCount == 0 {
		return nil, fmt.Errorf("partition count must be positive")
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("at least one member is required")
	}

	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	index := make(map[NodeID]int, len(sorted))
	for i, m := range sorted {
		if _, dup := index[m.ID]; dup {
			return nil, fmt.Errorf("duplicate member %s", m.ID)
		}
		index[m.ID] = i
	}
	if _, ok := index[local]; !ok && local != "" {
		return nil, fmt.Errorf("local node %s is not a member", local)
	}

	return &Table{
		local:          local,
		members:        sorted,
		index:          index,
		partitionCount: partitionCount,
	}, nil
}

// SingleNode creates a table for a cluster consisting only of local.
func SingleNode(local NodeID, partitionCount uint32) (*Table, error) {
	return NewTable(local, []Member{{ID: local}}, partitionCount)
}

// --------------------------------------------------------------------------
// Routing
// --------------------------------------------------------------------------

// PartitionOf returns the partition owning a serialized key.
func (t *Table) PartitionOf(key []byte) uint32 {
	return util.PartitionOf(key, t.partitionCount)
}

// Owner returns the primary of partition.
func (t *Table) Owner(partition uint32) NodeID {
	return t.members[int(partition%uint32(len(t.members)))].ID
}

// Replicas returns up to n backup holders of partition in replica order.
// Fewer than n are returned if the cluster is too small.
func (t *Table) Replicas(partition uint32, n int) []NodeID {
	if max := len(t.members) - 1; n > max {
		n = max
	}
	if n <= 0 {
		return nil
	}
	start := int(partition % uint32(len(t.members)))
	replicas := make([]NodeID, 0, n)
	for i := 1; i <= n; i++ {
		replicas = append(replicas, t.members[(start+i)%len(t.members)].ID)
	}
	return replicas
}

// IsOwner reports whether the local node is the primary of partition.
func (t *Table) IsOwner(partition uint32) bool {
	return t.local != "" && partition < t.partitionCount && t.Owner(partition) == t.local
}

// ReplicaIndex returns the position (1 = first backup) of the local node in
// the replica list of partition, or 0 if it is the primary or not within the
// first maxBackups replicas.
func (t *Table) ReplicaIndex(partition uint32, maxBackups int) int {
	for i, id := range t.Replicas(partition, maxBackups) {
		if id == t.local {
			return i + 1
		}
	}
	return 0
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

func (t *Table) Local() NodeID          { return t.local }
func (t *Table) PartitionCount() uint32 { return t.partitionCount }

// Size returns the number of cluster members.
func (t *Table) Size() int {
	return len(t.members)
}

// Members returns a copy of the members sorted by id.
func (t *Table) Members() []Member {
	out := make([]Member, len(t.members))
	copy(out, t.members)
	return out
}

// Member looks up a member by id.
func (t *Table) Member(id NodeID) (Member, bool) {
	i, ok := t.index[id]
	if !ok {
		return Member{}, false
	}
	return t.members[i], true
}

// OwnedPartitions returns the partitions whose primary is the local node.
func (t *Table) OwnedPartitions() []uint32 {
	var owned []uint32
	for p := uint32(0); p < t.partitionCount; p++ {
		if t.IsOwner(p) {
			owned = append(owned, p)
		}
	}
	return owned
}
