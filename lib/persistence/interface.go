package persistence

import "context"

// Loader reads entries from an external system of record.
// It is consulted on cache misses and must never mutate a record store.
// Keys and values are in their deserialized form.
type Loader interface {
	// Load returns the persisted value for key. found is false if the external
	// system has no value for the key.
	Load(ctx context.Context, key any) (value any, found bool, err error)
}

// Store writes entries to an external system of record.
// With a write delay of zero the map invokes it synchronously from the
// mutating operation (write-through). Keys and values are in their
// deserialized form.
type Store interface {
	// Store persists value under key.
	Store(ctx context.Context, key, value any) error
	// Delete removes key from the external system. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key any) error
}
