package node

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dMap/lib/lockmgr"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// BeginTransaction returns a new transaction id. Mutations carrying the id are
// logged in the partition of their key until the transaction is committed or
// rolled back there.
func (n *Node) BeginTransaction() string {
	return uuid.NewString()
}

// Commit replays the log of txnID in partitionID, in log order, through the
// regular mutation path (apply, persist, backup) and clears the log. It
// returns how many items were applied; the errors of failed items are
// aggregated.
func (n *Node) Commit(ctx context.Context, txnID string, partitionID uint32, token lockmgr.Token) (int, error) {
	if err := n.checkPartition(partitionID); err != nil {
		return 0, err
	}
	deps := n.deps(partitionID)
	runCtx := context.WithoutCancel(ctx)

	return call(ctx, n, partitionID, func() (int, error) {
		items, found := deps.Container.TxLog().Drain(txnID)
		if !found {
			return 0, operation.NewError(operation.RetCUnknownTransaction, fmt.Sprintf("transaction %s has no items in partition %d", txnID, partitionID))
		}

		var (
			applied int
			errs    *multierror.Error
		)
		for i, item := range items {
			m, err := operation.MutationOf(item)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("item %d: %w", i, err))
				continue
			}

			var resp operation.Response
			op, err := operation.New(deps, operation.Request{
				MapName:     item.MapName,
				PartitionID: partitionID,
				Key:         item.Key,
				Mutation:    m,
				Token:       token,
				Responder:   operation.ResponderFunc(func(r operation.Response) { resp = r }),
			})
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("item %d: %w", i, err))
				continue
			}
			// already on the partition executor
			op.Run(runCtx)

			if resp.Err != nil {
				errs = multierror.Append(errs, fmt.Errorf("item %d (%s %s): %w", i, m.Kind(), item.Key, resp.Err))
				continue
			}
			applied++
		}

		log.Debugf("transaction %s committed in partition %d: %d of %d items applied", txnID, partitionID, applied, len(items))
		return applied, errs.ErrorOrNil()
	})
}

// Rollback drops the log of txnID in partitionID and returns how many items
// were dropped. Rolling back an unknown transaction is a no-op.
func (n *Node) Rollback(ctx context.Context, txnID string, partitionID uint32) (int, error) {
	if err := n.checkPartition(partitionID); err != nil {
		return 0, err
	}
	container := n.Container(partitionID)
	return call(ctx, n, partitionID, func() (int, error) {
		dropped := container.TxLog().Discard(txnID)
		log.Debugf("transaction %s rolled back in partition %d: %d items dropped", txnID, partitionID, dropped)
		return dropped, nil
	})
}
