package record

import (
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dMap/lib/persistence"
	"github.com/ValentinKolb/dMap/lib/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// Store is the key space of one map within one partition.
//
// Locking: the store does not lock keys. Every mutating method must be called
// by the serial executor owning the partition, which gives per-key
// linearizability. The underlying map is concurrent only so that read-only
// inspection (Size, Range, Info) from other goroutines is safe.
type Store struct {
	partitionID uint32
	config      MapConfig
	loader      persistence.Loader
	store       persistence.Store

	records  *xsync.MapOf[string, Record]
	sequence atomic.Uint64
	now      func() time.Time
}

// NewStore creates the record store for config.Name in partitionID.
// loader and store may be nil.
func NewStore(partitionID uint32, config MapConfig, loader persistence.Loader, store persistence.Store) *Store {
	return &Store{
		partitionID: partitionID,
		config:      config,
		loader:      loader,
		store:       store,
		records:     xsync.NewMapOf[string, Record](),
		now:         time.Now,
	}
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

func (s *Store) MapName() string                 { return s.config.Name }
func (s *Store) PartitionID() uint32             { return s.partitionID }
func (s *Store) Config() MapConfig               { return s.config }
func (s *Store) Loader() persistence.Loader      { return s.loader }
func (s *Store) PersistStore() persistence.Store { return s.store }

// WriteThrough reports whether mutations must invoke the persistence store
// synchronously, that is a store is configured and the write delay is zero.
func (s *Store) WriteThrough() bool {
	return s.store != nil && s.config.WriteThrough()
}

// --------------------------------------------------------------------------
// Version handling
// --------------------------------------------------------------------------

// nextVersion returns a new version for a mutation of this store.
// Versions never repeat within a store, even across remove and re-put.
func (s *Store) nextVersion() uint64 {
	return s.sequence.Add(1)
}

// observeVersion raises the store sequence to at least v.
// It only updates if v is greater than the current sequence.
func (s *Store) observeVersion(v uint64) {
	for {
		curr := s.sequence.Load()
		if v <= curr {
			return
		}
		if s.sequence.CompareAndSwap(curr, v) {
			return
		}
	}
}

// Sequence returns the version of the latest mutation.
func (s *Store) Sequence() uint64 {
	return s.sequence.Load()
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns the record for key and records the access.
func (s *Store) Get(key Data) (Record, bool) {
	now := s.now()
	var found bool
	rec, _ := s.records.Compute(string(key), func(old Record, loaded bool) (Record, bool) {
		if !loaded {
			return old, true
		}
		found = true
		old.Stats.Hits++
		old.Stats.LastAccessAt = now
		return old, false
	})
	return rec, found
}

// Peek returns the record for key without touching its statistics.
func (s *Store) Peek(key Data) (Record, bool) {
	return s.records.Load(string(key))
}

// Contains reports whether key is mapped.
func (s *Store) Contains(key Data) bool {
	_, ok := s.records.Load(string(key))
	return ok
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Remove removes key and returns the prior record, if any.
func (s *Store) Remove(key Data) (Record, bool) {
	return s.records.LoadAndDelete(string(key))
}

// RemoveVersioned removes key like Remove and returns the version assigned
// to the removal. The version is drawn even if key was absent.
func (s *Store) RemoveVersioned(key Data) (Record, bool, uint64) {
	rec, ok := s.records.LoadAndDelete(string(key))
	return rec, ok, s.nextVersion()
}

// ApplyRemove replays a removal of key at version. The removal is
// unconditional; the store sequence is raised to version.
func (s *Store) ApplyRemove(key Data, version uint64) bool {
	_, removed := s.records.LoadAndDelete(string(key))
	s.observeVersion(version)
	return removed
}

// Put maps key to value and returns the prior record, if any.
// A ttl of zero applies the map's default TTL.
func (s *Store) Put(key, value Data, ttl time.Duration) (Record, bool) {
	var (
		prior  Record
		loaded bool
	)
	s.records.Compute(string(key), func(old Record, exists bool) (Record, bool) {
		prior, loaded = old, exists
		return s.newRecord(key, value, ttl, s.nextVersion(), old, exists), false
	})
	return prior, loaded
}

// Update replaces the value of key only if key is mapped.
// It returns the prior record and whether the replacement happened.
func (s *Store) Update(key, value Data, ttl time.Duration) (Record, bool) {
	var (
		prior  Record
		loaded bool
	)
	s.records.Compute(string(key), func(old Record, exists bool) (Record, bool) {
		if !exists {
			return old, true
		}
		prior, loaded = old, true
		return s.newRecord(key, value, ttl, s.nextVersion(), old, true), false
	})
	return prior, loaded
}

// ApplyVersioned installs value for key unless the store already holds a
// newer version of the key. It is used to replay backups and returns whether
// the value was installed. Replaying the same version twice is a no-op in
// effect.
func (s *Store) ApplyVersioned(key, value Data, ttl time.Duration, version uint64) bool {
	applied := false
	s.records.Compute(string(key), func(old Record, exists bool) (Record, bool) {
		if exists && old.Version > version {
			return old, false
		}
		applied = true
		return s.newRecord(key, value, ttl, version, old, exists), false
	})
	s.observeVersion(version)
	return applied
}

// newRecord builds the successor of old (or a fresh record if !exists).
func (s *Store) newRecord(key, value Data, ttl time.Duration, version uint64, old Record, exists bool) Record {
	now := s.now()
	if ttl == 0 {
		ttl = s.config.TTL
	}
	rec := Record{
		Key:     key.Clone(),
		Value:   value.Clone(),
		Version: version,
		TTL:     ttl,
		Stats: Stats{
			CreatedAt:    now,
			UpdatedAt:    now,
			LastAccessAt: now,
		},
	}
	if exists {
		rec.Stats.CreatedAt = old.Stats.CreatedAt
		rec.Stats.Hits = old.Stats.Hits
	}
	return rec
}

// Clear removes all records, e.g. when the partition migrates away.
func (s *Store) Clear() {
	s.records.Clear()
}

// --------------------------------------------------------------------------
// Inspection
// --------------------------------------------------------------------------

// Size returns the number of records.
func (s *Store) Size() int {
	return s.records.Size()
}

// Range calls fn for every record until fn returns false.
// The iteration is not a consistent snapshot.
func (s *Store) Range(fn func(Record) bool) {
	s.records.Range(func(_ string, rec Record) bool {
		return fn(rec)
	})
}

// StoreInfo describes a record store.
type StoreInfo struct {
	MapName     string `json:"map_name"`
	PartitionID uint32 `json:"partition_id"`
	Entries     int    `json:"entries"`
	SizeBytes   int    `json:"size_bytes"`
	Sequence    uint64 `json:"sequence"`
}

// Info returns statistics about the store. SizeBytes is an estimate computed
// from a sample of the records.
func (s *Store) Info() StoreInfo {
	const samples = 100
	histogram := util.NewSizeHistogram()

	count := 0
	s.records.Range(func(_ string, rec Record) bool {
		histogram.AddSample(len(rec.Key) + len(rec.Value))
		count++
		return count < samples
	})

	// version, ttl and stats overhead per entry
	const entryOverhead = 8 + 8 + 8 + 3*24
	entries := s.records.Size()
	perEntry := (histogram.MedianEstimate()*60+histogram.AverageSize()*40)/100 + entryOverhead
	if count == 0 {
		perEntry = 0
	}

	return StoreInfo{
		MapName:     s.config.Name,
		PartitionID: s.partitionID,
		Entries:     entries,
		SizeBytes:   perEntry * entries,
		Sequence:    s.sequence.Load(),
	}
}
