package node

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dMap/lib/lockmgr"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/lib/record"
)

// Lock acquires the lock of key in mapName for ttl (zero = until released).
// Mutations of the key fail with RetCKeyLocked unless they carry the returned
// token.
func (n *Node) Lock(mapName string, key record.Data, ttl time.Duration) (bool, lockmgr.Token, error) {
	locks, err := n.locksOf(key)
	if err != nil {
		return false, "", err
	}
	return locks.AcquireLock(mapName, key, ttl)
}

// Unlock releases the lock of key if token owns it.
func (n *Node) Unlock(mapName string, key record.Data, token lockmgr.Token) (bool, error) {
	locks, err := n.locksOf(key)
	if err != nil {
		return false, err
	}
	return locks.ReleaseLock(mapName, key, token)
}

// IsLocked reports whether key has an unexpired lock.
func (n *Node) IsLocked(mapName string, key record.Data) (bool, error) {
	locks, err := n.locksOf(key)
	if err != nil {
		return false, err
	}
	return locks.IsLocked(mapName, key), nil
}

// locksOf returns the lock table of the partition owning key.
func (n *Node) locksOf(key record.Data) (lockmgr.ILockManager, error) {
	pid := n.table.PartitionOf(key)
	if !n.table.IsOwner(pid) {
		return nil, operation.NewError(operation.RetCWrongPartition, fmt.Sprintf("partition %d is owned by %s", pid, n.table.Owner(pid)))
	}
	return n.Container(pid).Locks(), nil
}
