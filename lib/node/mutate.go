package node

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dMap/lib/lockmgr"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/lib/record"
)

// MutateOptions are the optional parameters of a mutation.
type MutateOptions struct {
	// TxnID makes the mutation part of a transaction.
	TxnID string
	// Token is the key lock held by the caller.
	Token lockmgr.Token
}

// Mutate runs m on key of mapName on the partition executor and waits for the
// response. A cancelled ctx abandons the wait, not the operation.
func (n *Node) Mutate(ctx context.Context, mapName string, key record.Data, m operation.Mutation, opts MutateOptions) (operation.Response, error) {
	pid := n.table.PartitionOf(key)
	future := operation.NewFuture()

	op, err := operation.New(n.deps(pid), operation.Request{
		MapName:     mapName,
		PartitionID: pid,
		Key:         key,
		Mutation:    m,
		TxnID:       opts.TxnID,
		Token:       opts.Token,
		Responder:   future,
	})
	if err != nil {
		return operation.Response{}, err
	}

	// the operation outlives the caller's context
	runCtx := context.WithoutCancel(ctx)
	if err := n.executor(pid).Submit(func() { op.Run(runCtx) }); err != nil {
		return operation.Response{}, operation.WrapError(operation.RetCInternalError, fmt.Sprintf("partition %d", pid), err)
	}
	return future.Wait(ctx)
}

// Remove removes key and returns its prior value.
func (n *Node) Remove(ctx context.Context, mapName string, key record.Data) (operation.Response, error) {
	return n.Mutate(ctx, mapName, key, operation.Remove{}, MutateOptions{})
}

// Put maps key to value and returns the prior value.
func (n *Node) Put(ctx context.Context, mapName string, key, value record.Data, ttl time.Duration) (operation.Response, error) {
	return n.Mutate(ctx, mapName, key, operation.Put{Value: value, TTL: ttl}, MutateOptions{})
}

// Update replaces the value of key if it has one and returns the prior value.
func (n *Node) Update(ctx context.Context, mapName string, key, value record.Data, ttl time.Duration) (operation.Response, error) {
	return n.Mutate(ctx, mapName, key, operation.Update{Value: value, TTL: ttl}, MutateOptions{})
}

// Get returns the value of key. On a miss the map's loader is consulted; a
// loaded value is returned but not cached.
func (n *Node) Get(ctx context.Context, mapName string, key record.Data) (value record.Data, found bool, err error) {
	pid := n.table.PartitionOf(key)
	if !n.table.IsOwner(pid) {
		return nil, false, operation.NewError(operation.RetCWrongPartition, fmt.Sprintf("partition %d is owned by %s", pid, n.table.Owner(pid)))
	}

	type lookup struct {
		value record.Data
		found bool
	}
	rs := n.Container(pid).RecordStore(mapName)
	runCtx := context.WithoutCancel(ctx)
	res, err := call(ctx, n, pid, func() (lookup, error) {
		if rec, ok := rs.Get(key); ok {
			return lookup{value: rec.Value.Clone(), found: true}, nil
		}
		v, ok, err := operation.Load(runCtx, rs, n.codec, key)
		return lookup{value: v, found: ok}, err
	})
	return res.value, res.found, err
}
