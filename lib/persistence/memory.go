package persistence

import (
	"context"
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("persistence")

// MemoryStore is an in-process Loader and Store.
// It stands in for an external database in tests and in single-node
// deployments. Keys are compared by their fmt %v representation.
type MemoryStore struct {
	entries *xsync.MapOf[string, any]
	name    string
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		entries: xsync.NewMapOf[string, any](),
		name:    name,
	}
}

func keyOf(key any) string {
	return fmt.Sprintf("%v", key)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see persistence.Loader and persistence.Store)
// --------------------------------------------------------------------------

func (m *MemoryStore) Load(ctx context.Context, key any) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	value, ok := m.entries.Load(keyOf(key))
	return value, ok, nil
}

func (m *MemoryStore) Store(ctx context.Context, key, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries.Store(keyOf(key), value)
	log.Debugf("%s: stored key=%v", m.name, key)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries.Delete(keyOf(key))
	log.Debugf("%s: deleted key=%v", m.name, key)
	return nil
}

// Len returns the number of persisted entries.
func (m *MemoryStore) Len() int {
	return m.entries.Size()
}
