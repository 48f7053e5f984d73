package partition

import (
	"sort"

	"github.com/ValentinKolb/dMap/lib/lockmgr"
	"github.com/ValentinKolb/dMap/lib/record"
	"github.com/puzpuzpuz/xsync/v3"
)

// StoreFactory creates the record store of mapName within a partition.
type StoreFactory func(partitionID uint32, mapName string) *record.Store

// Container groups everything a node holds for one partition: the record
// stores of all maps, the transaction log and the key lock table.
//
// Record stores are created lazily on first access of a map.
type Container struct {
	id      uint32
	factory StoreFactory
	stores  *xsync.MapOf[string, *record.Store]
	txLog   *TxLog
	locks   lockmgr.ILockManager
}

// NewContainer creates the container of partition id.
func NewContainer(id uint32, factory StoreFactory) *Container {
	return &Container{
		id:      id,
		factory: factory,
		stores:  xsync.NewMapOf[string, *record.Store](),
		txLog:   NewTxLog(),
		locks:   lockmgr.NewLockManager(),
	}
}

func (c *Container) ID() uint32                  { return c.id }
func (c *Container) TxLog() *TxLog               { return c.txLog }
func (c *Container) Locks() lockmgr.ILockManager { return c.locks }

// RecordStore returns the record store of mapName, creating it if needed.
func (c *Container) RecordStore(mapName string) *record.Store {
	rs, _ := c.stores.LoadOrCompute(mapName, func() *record.Store {
		return c.factory(c.id, mapName)
	})
	return rs
}

// ExistingRecordStore returns the record store of mapName without creating it.
func (c *Container) ExistingRecordStore(mapName string) (*record.Store, bool) {
	return c.stores.Load(mapName)
}

// MapNames returns the names of all maps with a record store, sorted.
func (c *Container) MapNames() []string {
	var names []string
	c.stores.Range(func(name string, _ *record.Store) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Clear drops all record stores and pending transaction items.
func (c *Container) Clear() {
	c.stores.Range(func(_ string, rs *record.Store) bool {
		rs.Clear()
		return true
	})
	c.stores.Clear()
	for _, txn := range c.txLog.Transactions() {
		c.txLog.Discard(txn)
	}
}

// ContainerInfo describes a partition container.
type ContainerInfo struct {
	PartitionID  uint32             `json:"partition_id"`
	Entries      int                `json:"entries"`
	SizeBytes    int                `json:"size_bytes"`
	Transactions int                `json:"transactions"`
	Maps         []record.StoreInfo `json:"maps"`
}

// Info returns statistics about the container and its record stores.
func (c *Container) Info() ContainerInfo {
	info := ContainerInfo{
		PartitionID:  c.id,
		Transactions: c.txLog.Len(),
	}
	for _, name := range c.MapNames() {
		rs, ok := c.stores.Load(name)
		if !ok {
			continue
		}
		si := rs.Info()
		info.Entries += si.Entries
		info.SizeBytes += si.SizeBytes
		info.Maps = append(info.Maps, si)
	}
	return info
}
