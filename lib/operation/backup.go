package operation

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/partition"
	"github.com/ValentinKolb/dMap/lib/record"
)

// Kind tags the mutation a backup replays.
type Kind = partition.Kind

const (
	KindRemove = partition.KindRemove
	KindPut    = partition.KindPut
	KindUpdate = partition.KindUpdate
)

// Backup is the replica-side counterpart of a mutation. It is created by the
// primary after a mutation was applied and replayed on each replica of the
// partition.
type Backup struct {
	MapName     string      `json:"map_name"`
	PartitionID uint32      `json:"partition_id"`
	Key         record.Data `json:"key"`
	// Value is the installed value for PUT and UPDATE. For REMOVE it is the
	// prior value, nil if the key was absent on the primary.
	Value   record.Data   `json:"value"`
	TTL     time.Duration `json:"ttl"`
	Version uint64        `json:"version"`
	Kind    Kind          `json:"kind"`
}

// Apply replays the backup on the replica's record store and reports whether
// the store changed.
//
// Replaying a backup twice has the same effect as replaying it once: REMOVE
// removes the key unconditionally, PUT and UPDATE only install their value if
// the replica holds no newer version of the key.
func (b Backup) Apply(rs *record.Store) (bool, error) {
	switch b.Kind {
	case KindRemove:
		return rs.ApplyRemove(b.Key, b.Version), nil
	case KindPut, KindUpdate:
		return rs.ApplyVersioned(b.Key, b.Value, b.TTL, b.Version), nil
	default:
		return false, NewError(RetCInvalidOperation, fmt.Sprintf("backup of unknown kind %s", b.Kind))
	}
}

func (b Backup) String() string {
	return fmt.Sprintf("Backup{%s %s/%d key=%s version=%d}", b.Kind, b.MapName, b.PartitionID, b.Key, b.Version)
}

// BackupDispatcher delivers backups to replicas.
//
// With sync set, SendBackup returns once the replica applied the backup or ctx
// is done. Without sync it returns as soon as the backup is queued for the
// target; backups queued for the same target are applied in queue order.
type BackupDispatcher interface {
	SendBackup(ctx context.Context, backup Backup, target cluster.NodeID, sync bool) error
}
