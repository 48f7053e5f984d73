package operation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/codec"
	"github.com/ValentinKolb/dMap/lib/lockmgr"
	"github.com/ValentinKolb/dMap/lib/partition"
	"github.com/ValentinKolb/dMap/lib/record"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var log = logger.GetLogger("operation")

// DefaultBackupTimeout bounds the wait for sync backup acknowledgements when
// Deps.BackupTimeout is not set.
const DefaultBackupTimeout = 5 * time.Second

// --------------------------------------------------------------------------
// Dependencies
// --------------------------------------------------------------------------

// Deps is everything an operation needs from the node it runs on.
type Deps struct {
	Table *cluster.Table
	// Container is the container of the partition the operation targets.
	Container *partition.Container
	// Codec converts keys and values to the form persistence plugins expect.
	Codec         codec.ICodec
	Dispatcher    BackupDispatcher
	BackupTimeout time.Duration
	// Observer is notified about outcomes. May be nil.
	Observer Observer
}

// Observer receives measurements of operations, e.g. to export metrics.
type Observer interface {
	OperationDone(kind Kind, transactional bool, took time.Duration, err error)
	BackupsAcked(kind Kind, replicas int, took time.Duration)
	BackupsDegraded(kind Kind, err error)
	PersistenceFailed(kind Kind, err error)
}

type noopObserver struct{}

func (noopObserver) OperationDone(Kind, bool, time.Duration, error) {}
func (noopObserver) BackupsAcked(Kind, int, time.Duration)          {}
func (noopObserver) BackupsDegraded(Kind, error)                    {}
func (noopObserver) PersistenceFailed(Kind, error)                  {}

// --------------------------------------------------------------------------
// Request
// --------------------------------------------------------------------------

// Request describes a single-key mutation.
type Request struct {
	MapName     string
	PartitionID uint32
	Key         record.Data
	Mutation    Mutation
	// TxnID is set for transactional mutations, which are only logged.
	TxnID string
	// Token is the key lock owned by the caller, if any.
	Token     lockmgr.Token
	Responder Responder
}

// --------------------------------------------------------------------------
// Operation
// --------------------------------------------------------------------------

// Operation is a mutation bound to the partition that owns its key.
//
// An operation is immutable after New and is run exactly once, on the
// executor of its partition. It delivers exactly one response.
type Operation struct {
	deps Deps
	req  Request
}

// New validates req and creates the operation.
func New(deps Deps, req Request) (*Operation, error) {
	switch {
	case req.Mutation == nil:
		return nil, NewError(RetCInvalidOperation, "request without mutation")
	case req.Responder == nil:
		return nil, NewError(RetCInvalidOperation, "request without responder")
	case req.MapName == "":
		return nil, NewError(RetCInvalidOperation, "request without map name")
	case req.Key == nil:
		return nil, NewError(RetCInvalidOperation, "request without key")
	case deps.Table == nil || deps.Container == nil || deps.Codec == nil || deps.Dispatcher == nil:
		return nil, NewError(RetCInternalError, "incomplete operation dependencies")
	}
	if deps.BackupTimeout <= 0 {
		deps.BackupTimeout = DefaultBackupTimeout
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	return &Operation{deps: deps, req: req}, nil
}

func (o *Operation) Request() Request { return o.req }

// Run executes the operation and delivers its response. It never panics:
// a panic is reported as RetCInternalError.
//
// Run must be called from the executor of the operation's partition.
func (o *Operation) Run(ctx context.Context) {
	start := time.Now()
	resp := Response{}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s on %s/%d panicked: %v\n%s", o.req.Mutation.Kind(), o.req.MapName, o.req.PartitionID, r, debug.Stack())
			resp = Response{Err: NewError(RetCInternalError, fmt.Sprintf("operation panicked: %v", r))}
		}
		o.deps.Observer.OperationDone(o.req.Mutation.Kind(), o.req.TxnID != "", time.Since(start), resp.Err)
		if err := o.req.Responder.SendResponse(resp); err != nil {
			log.Warningf("%s on %s/%d: %v", o.req.Mutation.Kind(), o.req.MapName, o.req.PartitionID, err)
		}
	}()

	resp = o.run(ctx)
}

func (o *Operation) run(ctx context.Context) Response {
	req := o.req
	kind := req.Mutation.Kind()

	if err := o.checkPartition(); err != nil {
		return Response{Err: err}
	}

	if !o.deps.Container.Locks().CanWrite(req.MapName, req.Key, req.Token) {
		return Response{Err: NewError(RetCKeyLocked, fmt.Sprintf("key %s of map %s is locked", req.Key, req.MapName))}
	}

	// transactional mutations are applied on commit
	if req.TxnID != "" {
		o.deps.Container.TxLog().Append(req.TxnID, req.Mutation.logItem(req.MapName, req.Key))
		log.Debugf("%s on %s/%d logged for transaction %s", kind, req.MapName, req.PartitionID, req.TxnID)
		return Response{}
	}

	rs := o.deps.Container.RecordStore(req.MapName)

	prior, err := o.resolve(ctx, rs)
	if err != nil {
		return Response{Err: err}
	}

	eff := req.Mutation.apply(rs, req.Key, prior)
	resp := Response{Value: eff.prior, Found: eff.priorFound}
	if !eff.changed {
		return resp
	}

	if err := o.persist(ctx, rs, eff); err != nil {
		o.deps.Observer.PersistenceFailed(kind, err)
		log.Warningf("%s on %s/%d: persistence failed, in-memory change kept: %v", kind, req.MapName, req.PartitionID, err)
		resp.Err = err
	}

	// a removal backs up the value it removed
	backupValue := eff.value
	if kind == KindRemove {
		backupValue = eff.prior
	}
	resp.Degraded = o.backup(ctx, rs.Config(), Backup{
		MapName:     req.MapName,
		PartitionID: req.PartitionID,
		Key:         req.Key,
		Value:       backupValue,
		TTL:         eff.ttl,
		Version:     eff.version,
		Kind:        kind,
	})
	if kind == KindRemove && !resp.Found {
		log.Debugf("REMOVE on %s/%d: key %s was absent", req.MapName, req.PartitionID, req.Key)
	}
	return resp
}

// checkPartition verifies that the local node is the primary of the key's
// partition.
func (o *Operation) checkPartition() error {
	req := o.req
	table := o.deps.Table
	switch {
	case o.deps.Container.ID() != req.PartitionID:
		return NewError(RetCInternalError, fmt.Sprintf("operation for partition %d scheduled on partition %d", req.PartitionID, o.deps.Container.ID()))
	case table.PartitionOf(req.Key) != req.PartitionID:
		return NewError(RetCWrongPartition, fmt.Sprintf("key %s belongs to partition %d, not %d", req.Key, table.PartitionOf(req.Key), req.PartitionID))
	case !table.IsOwner(req.PartitionID):
		return NewError(RetCWrongPartition, fmt.Sprintf("partition %d is owned by %s", req.PartitionID, table.Owner(req.PartitionID)))
	}
	return nil
}

// resolve looks up the prior value of the key: first in memory, then through
// the map's loader. A loaded value is not cached.
func (o *Operation) resolve(ctx context.Context, rs *record.Store) (resolved, error) {
	if rec, ok := rs.Peek(o.req.Key); ok {
		return resolved{value: rec.Value, found: true, inMemory: true}, nil
	}
	value, found, err := Load(ctx, rs, o.deps.Codec, o.req.Key)
	if err != nil {
		return resolved{}, err
	}
	return resolved{value: value, found: found}, nil
}

// Load reads key through the loader of rs. found is false if rs has no loader
// or the loader has no value.
func Load(ctx context.Context, rs *record.Store, c codec.ICodec, key record.Data) (value record.Data, found bool, err error) {
	loader := rs.Loader()
	if loader == nil {
		return nil, false, nil
	}
	keyObj, err := c.ToObject(key)
	if err != nil {
		return nil, false, WrapError(RetCInvalidOperation, "cannot decode key", err)
	}
	obj, found, err := loader.Load(ctx, keyObj)
	if err != nil {
		return nil, false, WrapError(RetCPersistence, fmt.Sprintf("loading key %s of map %s", key, rs.MapName()), err)
	}
	if !found {
		return nil, false, nil
	}
	data, err := c.ToData(obj)
	if err != nil {
		return nil, false, WrapError(RetCPersistence, "cannot encode loaded value", err)
	}
	return data, true, nil
}

// persist invokes the external store when the map is write-through.
func (o *Operation) persist(ctx context.Context, rs *record.Store, eff effect) error {
	if !rs.WriteThrough() {
		return nil
	}
	keyObj, err := o.deps.Codec.ToObject(o.req.Key)
	if err != nil {
		return WrapError(RetCPersistence, "cannot decode key", err)
	}
	var valueObj any
	if eff.value != nil {
		if valueObj, err = o.deps.Codec.ToObject(eff.value); err != nil {
			return WrapError(RetCPersistence, "cannot decode value", err)
		}
	}
	if err := o.req.Mutation.persist(ctx, rs.PersistStore(), keyObj, valueObj); err != nil {
		return WrapError(RetCPersistence, fmt.Sprintf("storing key %s of map %s", o.req.Key, o.req.MapName), err)
	}
	return nil
}

// backup sends b to the replicas of the partition: the first BackupCount
// replicas synchronously, the next AsyncBackupCount without waiting. It
// reports whether the sync replicas failed to acknowledge in time.
func (o *Operation) backup(ctx context.Context, config record.MapConfig, b Backup) (degraded bool) {
	replicas := o.deps.Table.Replicas(b.PartitionID, config.TotalBackupCount())
	syncCount := min(config.BackupCount, len(replicas))

	for _, target := range replicas[syncCount:] {
		if err := o.deps.Dispatcher.SendBackup(ctx, b, target, false); err != nil {
			log.Warningf("async %s to %s failed: %v", b, target, err)
		}
	}
	if syncCount == 0 {
		return false
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, o.deps.BackupTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(waitCtx)
	for _, target := range replicas[:syncCount] {
		g.Go(func() error {
			if err := o.deps.Dispatcher.SendBackup(gctx, b, target, true); err != nil {
				return fmt.Errorf("backup to %s: %w", target, err)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-waitCtx.Done():
		err = waitCtx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = WrapError(RetCBackupTimeout, fmt.Sprintf("no ack from %d sync replicas within %s", syncCount, o.deps.BackupTimeout), err)
		}
		o.deps.Observer.BackupsDegraded(b.Kind, err)
		log.Warningf("%s degraded: %v", b, err)
		return true
	}
	o.deps.Observer.BackupsAcked(b.Kind, syncCount, time.Since(start))
	return false
}
