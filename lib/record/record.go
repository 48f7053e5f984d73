package record

import (
	"bytes"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Data (serialized form)
// --------------------------------------------------------------------------

// Data is the serialized form of a key or value.
// Record stores, transaction logs and backups only ever see Data; the
// deserialized form is produced by the map's codec when a persistence plugin
// or a caller needs it.
type Data []byte

// Equal reports whether two Data values hold the same bytes.
func (d Data) Equal(other Data) bool {
	return bytes.Equal(d, other)
}

// Clone returns a copy of d that does not share memory with it.
// The copy of nil is nil.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	c := make(Data, len(d))
	copy(c, d)
	return c
}

func (d Data) String() string {
	return fmt.Sprintf("%q", []byte(d))
}

// --------------------------------------------------------------------------
// Record
// --------------------------------------------------------------------------

// Stats holds the access statistics of a record.
type Stats struct {
	Hits         uint64    `json:"hits"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastAccessAt time.Time `json:"last_access_at"`
}

// Record is the stored state of one key.
// A record exists in a Store iff its key is currently mapped.
type Record struct {
	Key     Data          `json:"key"`
	Value   Data          `json:"value"`
	Version uint64        `json:"version"` // sequence of the last mutation, see Store.nextVersion
	TTL     time.Duration `json:"ttl"`     // zero means the record never expires
	Stats   Stats         `json:"stats"`
}

// ExpiresAt returns when the record expires and whether it expires at all.
// Expiry itself is enforced outside of the record store.
func (r Record) ExpiresAt() (time.Time, bool) {
	if r.TTL <= 0 {
		return time.Time{}, false
	}
	return r.Stats.UpdatedAt.Add(r.TTL), true
}

func (r Record) String() string {
	return fmt.Sprintf("Record{Key: %s, Version: %d, TTL: %s}", r.Key, r.Version, r.TTL)
}
