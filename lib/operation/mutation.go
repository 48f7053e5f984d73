package operation

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dMap/lib/partition"
	"github.com/ValentinKolb/dMap/lib/persistence"
	"github.com/ValentinKolb/dMap/lib/record"
)

// Mutation is a single-key write. The set of mutations is closed: Remove, Put
// and Update.
type Mutation interface {
	Kind() Kind

	// apply changes rs and reports the effect. prior is the value resolved
	// before the change.
	apply(rs *record.Store, key record.Data, prior resolved) effect
	// persist writes the effect to the external store.
	persist(ctx context.Context, store persistence.Store, key, value any) error
	// logItem returns the transaction log entry of the mutation.
	logItem(mapName string, key record.Data) partition.LogItem
}

// resolved is the prior value of a key before a mutation.
type resolved struct {
	value    record.Data
	found    bool
	inMemory bool
}

// effect describes what a mutation did to a record store.
type effect struct {
	prior      record.Data
	priorFound bool
	// changed is false only if the mutation did nothing, which suppresses
	// persistence and backups.
	changed bool
	value   record.Data
	ttl     time.Duration
	version uint64
}

// --------------------------------------------------------------------------
// Remove
// --------------------------------------------------------------------------

// Remove removes a key. It always persists (write-through) and backs up, even
// if the key was absent.
type Remove struct{}

func (Remove) Kind() Kind { return KindRemove }

func (Remove) apply(rs *record.Store, key record.Data, prior resolved) effect {
	rec, ok, version := rs.RemoveVersioned(key)
	e := effect{
		prior:      prior.value,
		priorFound: prior.found,
		changed:    true,
		version:    version,
	}
	if ok {
		e.prior, e.priorFound = rec.Value, true
		e.ttl = rec.TTL
	}
	return e
}

func (Remove) persist(ctx context.Context, store persistence.Store, key, _ any) error {
	return store.Delete(ctx, key)
}

func (Remove) logItem(mapName string, key record.Data) partition.LogItem {
	return partition.LogItem{
		MapName:       mapName,
		Key:           key,
		Removed:       true,
		Transactional: true,
		Kind:          KindRemove,
	}
}

// --------------------------------------------------------------------------
// Put
// --------------------------------------------------------------------------

// Put maps a key to Value. A zero TTL applies the map default.
type Put struct {
	Value record.Data
	TTL   time.Duration
}

func (Put) Kind() Kind { return KindPut }

func (p Put) apply(rs *record.Store, key record.Data, prior resolved) effect {
	old, ok := rs.Put(key, p.Value, p.TTL)
	e := effect{prior: prior.value, priorFound: prior.found, changed: true}
	if ok {
		e.prior, e.priorFound = old.Value, true
	}
	rec, _ := rs.Peek(key)
	e.value, e.ttl, e.version = rec.Value, rec.TTL, rec.Version
	return e
}

func (Put) persist(ctx context.Context, store persistence.Store, key, value any) error {
	return store.Store(ctx, key, value)
}

func (p Put) logItem(mapName string, key record.Data) partition.LogItem {
	return partition.LogItem{
		MapName:       mapName,
		Key:           key,
		Value:         p.Value,
		TTL:           p.TTL,
		Transactional: true,
		Kind:          KindPut,
	}
}

// --------------------------------------------------------------------------
// Update
// --------------------------------------------------------------------------

// Update replaces the value of a key only if the key has a value, either in
// memory or in the external system of record.
type Update struct {
	Value record.Data
	TTL   time.Duration
}

func (Update) Kind() Kind { return KindUpdate }

func (u Update) apply(rs *record.Store, key record.Data, prior resolved) effect {
	e := effect{prior: prior.value, priorFound: prior.found}
	switch {
	case prior.inMemory:
		old, ok := rs.Update(key, u.Value, u.TTL)
		if !ok {
			return e
		}
		e.prior = old.Value
	case prior.found:
		// loaded from the external store, not cached yet
		rs.Put(key, u.Value, u.TTL)
	default:
		return e
	}
	rec, _ := rs.Peek(key)
	e.changed = true
	e.value, e.ttl, e.version = rec.Value, rec.TTL, rec.Version
	return e
}

func (Update) persist(ctx context.Context, store persistence.Store, key, value any) error {
	return store.Store(ctx, key, value)
}

func (u Update) logItem(mapName string, key record.Data) partition.LogItem {
	return partition.LogItem{
		MapName:       mapName,
		Key:           key,
		Value:         u.Value,
		TTL:           u.TTL,
		Transactional: true,
		Kind:          KindUpdate,
	}
}

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// NewMutation creates the mutation of kind. value and ttl are ignored for
// removals.
func NewMutation(kind Kind, value record.Data, ttl time.Duration) (Mutation, error) {
	switch kind {
	case KindRemove:
		return Remove{}, nil
	case KindPut:
		return Put{Value: value, TTL: ttl}, nil
	case KindUpdate:
		return Update{Value: value, TTL: ttl}, nil
	default:
		return nil, NewError(RetCInvalidOperation, fmt.Sprintf("unknown mutation kind %s", kind))
	}
}

// MutationOf recreates the mutation a transaction log item was built from.
func MutationOf(item partition.LogItem) (Mutation, error) {
	if item.Removed {
		return Remove{}, nil
	}
	return NewMutation(item.Kind, item.Value, item.TTL)
}
