package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/lib/util"
	"github.com/ValentinKolb/dMap/rpc/common"
	"github.com/ValentinKolb/dMap/rpc/serializer"
	"github.com/ValentinKolb/dMap/rpc/transport"
)

// asyncBackup is a queued fire-and-forget backup.
type asyncBackup struct {
	backup operation.Backup
	target cluster.NodeID
}

// RemoteBackupDispatcher delivers backups to the members of a cluster over
// RPC. It implements operation.BackupDispatcher.
//
// Sync backups are sent directly. Async backups are queued per target and
// sent one at a time; the next one is only sent after the target queued the
// previous one on its partition executor, so each target applies them in
// queue order.
type RemoteBackupDispatcher struct {
	adapter *rpcClientAdapter
	timeout time.Duration

	mu     sync.Mutex
	queues map[cluster.NodeID]*util.LockFreeMPSC[asyncBackup]
	closed bool
}

// NewRemoteBackupDispatcher creates a dispatcher for the cluster described by
// config. timeout bounds the delivery of a single async backup; zero uses
// the config's TimeoutSecond.
func NewRemoteBackupDispatcher(
	config common.ClientConfig,
	newTransport transport.ClientFactory,
	serializer serializer.IRPCSerializer,
	timeout time.Duration,
) (*RemoteBackupDispatcher, error) {
	adapter, err := newRPCClientAdapter(config, newTransport, serializer)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = time.Duration(config.TimeoutSecond) * time.Second
	}
	if timeout <= 0 {
		timeout = operation.DefaultBackupTimeout
	}
	return &RemoteBackupDispatcher{
		adapter: adapter,
		timeout: timeout,
		queues:  make(map[cluster.NodeID]*util.LockFreeMPSC[asyncBackup]),
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see operation.BackupDispatcher)
// --------------------------------------------------------------------------

func (d *RemoteBackupDispatcher) SendBackup(ctx context.Context, b operation.Backup, target cluster.NodeID, sync bool) error {
	if sync {
		return d.send(ctx, b, target, true)
	}

	q, err := d.queue(target)
	if err != nil {
		return err
	}
	if !q.Push(asyncBackup{backup: b, target: target}) {
		return fmt.Errorf("backup queue of %s is closed", target)
	}
	return nil
}

// Pending returns the number of async backups not yet delivered.
func (d *RemoteBackupDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	pending := 0
	for _, q := range d.queues {
		pending += q.Len()
	}
	return pending
}

// Close delivers the queued async backups until ctx is done and closes all
// connections.
func (d *RemoteBackupDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	queues := make([]*util.LockFreeMPSC[asyncBackup], 0, len(d.queues))
	for _, q := range d.queues {
		q.Close()
		queues = append(queues, q)
	}
	d.mu.Unlock()

	var err error
	for _, q := range queues {
		select {
		case <-q.Done():
		case <-ctx.Done():
			err = fmt.Errorf("dropping %d undelivered backups: %w", q.Len(), ctx.Err())
		}
		if err != nil {
			break
		}
	}
	if cErr := d.adapter.close(); cErr != nil && err == nil {
		err = cErr
	}
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// queue returns the async queue of target, creating it if needed.
func (d *RemoteBackupDispatcher) queue(target cluster.NodeID) (*util.LockFreeMPSC[asyncBackup], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("backup dispatcher is closed")
	}
	if q, ok := d.queues[target]; ok {
		return q, nil
	}
	q := util.NewLockFreeMPSC(d.deliver)
	d.queues[target] = q
	return q, nil
}

// deliver runs on the consumer of a target's queue. A backup that cannot be
// delivered is dropped; the replica catches up with later backups of the key.
func (d *RemoteBackupDispatcher) deliver(item asyncBackup) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.send(ctx, item.backup, item.target, false); err != nil {
		Logger.Warningf("dropping async %s for %s: %v", item.backup, item.target, err)
	}
}

func (d *RemoteBackupDispatcher) send(ctx context.Context, b operation.Backup, target cluster.NodeID, sync bool) error {
	_, err := d.adapter.invoke(ctx, target, b.PartitionID, common.NewBackupRequest(b, sync))
	return err
}
