package node

import (
	"sort"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/partition"
	"github.com/ValentinKolb/dMap/lib/util"
)

// Info describes the local state of a node.
// It is not guaranteed that all fields are up-to-date!
type Info struct {
	NodeID          cluster.NodeID            `json:"node_id"`
	Members         int                       `json:"members"`
	PartitionCount  uint32                    `json:"partition_count"`
	OwnedPartitions int                       `json:"owned_partitions"`
	Entries         int                       `json:"entries"`
	SizeBytes       int                       `json:"size_bytes"`
	Transactions    int                       `json:"transactions"`
	Pending         int                       `json:"pending"`
	Distribution    util.DistributionStats    `json:"distribution"`
	Partitions      []partition.ContainerInfo `json:"partitions"`
	Metrics         MetricsSnapshot           `json:"metrics"`
}

// Info collects statistics over all local partitions, primaries and
// replicas alike. Distribution is computed over the entry counts of the
// partitions that hold data.
func (n *Node) Info() Info {
	info := Info{
		NodeID:          n.id,
		Members:         n.table.Size(),
		PartitionCount:  n.table.PartitionCount(),
		OwnedPartitions: len(n.table.OwnedPartitions()),
		Metrics:         n.metrics.snapshot(),
	}

	var sizes []float64
	n.containers.Range(func(_ uint32, c *partition.Container) bool {
		ci := c.Info()
		info.Entries += ci.Entries
		info.SizeBytes += ci.SizeBytes
		info.Transactions += ci.Transactions
		info.Partitions = append(info.Partitions, ci)
		if ci.Entries > 0 {
			sizes = append(sizes, float64(ci.Entries))
		}
		return true
	})
	n.executors.Range(func(_ uint32, e *partition.Executor) bool {
		info.Pending += e.Pending()
		return true
	})

	sort.Slice(info.Partitions, func(i, j int) bool {
		return info.Partitions[i].PartitionID < info.Partitions[j].PartitionID
	})
	info.Distribution = util.NewDistributionStats(sizes)
	return info
}
