package persistence

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Factory creates the persistence plugins of one map.
// Returning a nil Loader or Store disables that direction for the map.
// The same instances may be shared by every partition of the map, so they
// must be safe for concurrent use.
type Factory func(mapName string) (Loader, Store)

// NoPersistence is a Factory for maps without persistence.
func NoPersistence(string) (Loader, Store) {
	return nil, nil
}

// MemoryFactory returns a Factory that gives every map its own MemoryStore,
// created on first use and shared by all partitions of that map.
func MemoryFactory() Factory {
	stores := xsync.NewMapOf[string, *MemoryStore]()
	return func(mapName string) (Loader, Store) {
		s, _ := stores.LoadOrCompute(mapName, func() *MemoryStore {
			return NewMemoryStore(fmt.Sprintf("memory(%s)", mapName))
		})
		return s, s
	}
}

// FactoryFromName returns the Factory registered under name ("none" or
// "memory").
func FactoryFromName(name string) (Factory, error) {
	switch name {
	case "", "none":
		return NoPersistence, nil
	case "memory":
		return MemoryFactory(), nil
	default:
		return nil, fmt.Errorf("unknown persistence: %s. must be one of none, memory", name)
	}
}
