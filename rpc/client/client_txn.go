package client

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ValentinKolb/dMap/lib/lockmgr"
	"github.com/ValentinKolb/dMap/lib/node"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/rpc/common"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Transaction collects mutations in the transaction logs of their partitions.
// Nothing is applied until Commit; Rollback drops the collected mutations.
//
// A transaction is not atomic across partitions: each partition commits its
// own log and a failing partition does not undo the others.
type Transaction struct {
	client *RPCMapClient
	id     string
	token  lockmgr.Token

	mu         sync.Mutex
	partitions map[uint32]struct{}
	done       bool
}

// BeginTransaction starts a transaction. token is the key lock presented
// while mutating and committing, empty if the keys are not locked.
func (c *RPCMapClient) BeginTransaction(token lockmgr.Token) *Transaction {
	return c.ResumeTransaction(uuid.NewString(), token)
}

// ResumeTransaction continues transaction id, e.g. one started by another
// process. Only partitions touched through the returned value are committed.
func (c *RPCMapClient) ResumeTransaction(id string, token lockmgr.Token) *Transaction {
	return &Transaction{
		client:     c,
		id:         id,
		token:      token,
		partitions: make(map[uint32]struct{}),
	}
}

// ID returns the transaction id.
func (tx *Transaction) ID() string { return tx.id }

// Remove logs the removal of key.
func (tx *Transaction) Remove(ctx context.Context, mapName string, key []byte) error {
	return tx.mutate(ctx, mapName, key, operation.Remove{})
}

// Put logs mapping key to value.
func (tx *Transaction) Put(ctx context.Context, mapName string, key, value []byte, ttl time.Duration) error {
	return tx.mutate(ctx, mapName, key, operation.Put{Value: value, TTL: ttl})
}

// Update logs replacing the value of key.
func (tx *Transaction) Update(ctx context.Context, mapName string, key, value []byte, ttl time.Duration) error {
	return tx.mutate(ctx, mapName, key, operation.Update{Value: value, TTL: ttl})
}

func (tx *Transaction) mutate(ctx context.Context, mapName string, key []byte, m operation.Mutation) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return fmt.Errorf("transaction %s is already finished", tx.id)
	}

	if _, err := tx.client.Mutate(ctx, mapName, key, m, node.MutateOptions{TxnID: tx.id, Token: tx.token}); err != nil {
		return err
	}
	tx.partitions[tx.client.Table().PartitionOf(key)] = struct{}{}
	return nil
}

// Commit applies the logged mutations partition by partition and returns how
// many were applied. The errors of all partitions are aggregated.
func (tx *Transaction) Commit(ctx context.Context) (int, error) {
	return tx.finish(func(pid uint32) (int, error) {
		return tx.client.commit(ctx, tx.id, pid, tx.token)
	})
}

// Rollback drops the logged mutations and returns how many were dropped.
func (tx *Transaction) Rollback(ctx context.Context) (int, error) {
	return tx.finish(func(pid uint32) (int, error) {
		return tx.client.rollback(ctx, tx.id, pid)
	})
}

// finish runs fn for every touched partition in ascending order.
func (tx *Transaction) finish(fn func(pid uint32) (int, error)) (int, error) {
	tx.mu.Lock()
	if tx.done {
		tx.mu.Unlock()
		return 0, fmt.Errorf("transaction %s is already finished", tx.id)
	}
	tx.done = true
	pids := make([]uint32, 0, len(tx.partitions))
	for pid := range tx.partitions {
		pids = append(pids, pid)
	}
	tx.mu.Unlock()
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	var (
		total int
		errs  *multierror.Error
	)
	for _, pid := range pids {
		n, err := fn(pid)
		total += n
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("partition %d: %w", pid, err))
		}
	}
	return total, errs.ErrorOrNil()
}

// --------------------------------------------------------------------------
// Partition level commands
// --------------------------------------------------------------------------

func (c *RPCMapClient) commit(ctx context.Context, txnID string, pid uint32, token lockmgr.Token) (int, error) {
	resp, err := c.adapter.invoke(ctx, c.adapter.table.Owner(pid), pid, common.NewCommitRequest(txnID, string(token)))
	if resp == nil {
		return 0, err
	}
	return int(resp.Count), err
}

func (c *RPCMapClient) rollback(ctx context.Context, txnID string, pid uint32) (int, error) {
	resp, err := c.adapter.invoke(ctx, c.adapter.table.Owner(pid), pid, common.NewRollbackRequest(txnID))
	if resp == nil {
		return 0, err
	}
	return int(resp.Count), err
}
