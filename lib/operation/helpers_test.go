package operation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/codec"
	"github.com/ValentinKolb/dMap/lib/partition"
	"github.com/ValentinKolb/dMap/lib/persistence"
	"github.com/ValentinKolb/dMap/lib/record"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test doubles
// --------------------------------------------------------------------------

// recordingStore records every call and optionally fails them.
type recordingStore struct {
	mu      sync.Mutex
	deletes []any
	stores  map[any]any
	err     error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{stores: map[any]any{}}
}

func (s *recordingStore) Store(_ context.Context, key, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stores[key] = value
	return nil
}

func (s *recordingStore) Delete(_ context.Context, key any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	return s.err
}

func (s *recordingStore) Deletes() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.deletes...)
}

// failingLoader always fails.
type failingLoader struct{}

func (failingLoader) Load(context.Context, any) (any, bool, error) {
	return nil, false, errors.New("loader unavailable")
}

// recordingDispatcher records every backup and applies it to per-target
// replica stores.
type recordingDispatcher struct {
	mu       sync.Mutex
	sync     []cluster.NodeID
	async    []cluster.NodeID
	backups  []Backup
	replicas map[cluster.NodeID]*record.Store

	// block makes sync sends wait for it (or for ctx)
	block chan struct{}
	fail  error
	panic bool
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{replicas: map[cluster.NodeID]*record.Store{}}
}

func (d *recordingDispatcher) SendBackup(ctx context.Context, b Backup, target cluster.NodeID, sync bool) error {
	if d.panic {
		panic("dispatcher exploded")
	}
	if sync && d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if sync {
		d.sync = append(d.sync, target)
	} else {
		d.async = append(d.async, target)
	}
	d.backups = append(d.backups, b)

	rs, ok := d.replicas[target]
	if !ok {
		rs = record.NewStore(b.PartitionID, record.DefaultMapConfig(b.MapName), nil, nil)
		d.replicas[target] = rs
	}
	if _, err := b.Apply(rs); err != nil {
		return err
	}
	return d.fail
}

func (d *recordingDispatcher) targets() (syncTargets, asyncTargets []cluster.NodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]cluster.NodeID(nil), d.sync...), append([]cluster.NodeID(nil), d.async...)
}

func (d *recordingDispatcher) backupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.backups)
}

// --------------------------------------------------------------------------
// Fixture
// --------------------------------------------------------------------------

type fixture struct {
	table      *cluster.Table
	container  *partition.Container
	store      *recordingStore
	dispatcher *recordingDispatcher
	deps       Deps
	key        record.Data
	partition  uint32
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	members int
	config  record.MapConfig
	loader  persistence.Loader
	noStore bool
}

func withMembers(n int) fixtureOption {
	return func(c *fixtureConfig) { c.members = n }
}

func withMapConfig(cfg record.MapConfig) fixtureOption {
	return func(c *fixtureConfig) { c.config = cfg }
}

func withLoader(l persistence.Loader) fixtureOption {
	return func(c *fixtureConfig) { c.loader = l }
}

func withoutStore() fixtureOption {
	return func(c *fixtureConfig) { c.noStore = true }
}

// newFixture creates the environment of one partition owned by node-a,
// together with a key of that partition.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{
		members: 1,
		config:  record.MapConfig{Name: "m"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	members := make([]cluster.Member, cfg.members)
	for i := range members {
		members[i] = cluster.Member{ID: cluster.NodeID(fmt.Sprintf("node-%c", 'a'+i))}
	}
	table, err := cluster.NewTable("node-a", members, 8)
	require.NoError(t, err)

	key := ownedKey(t, table)
	pid := table.PartitionOf(key)

	f := &fixture{
		table:      table,
		dispatcher: newRecordingDispatcher(),
		key:        key,
		partition:  pid,
	}
	if !cfg.noStore {
		f.store = newRecordingStore()
	}
	f.container = partition.NewContainer(pid, func(id uint32, mapName string) *record.Store {
		c := cfg.config
		c.Name = mapName
		if f.store == nil {
			return record.NewStore(id, c, cfg.loader, nil)
		}
		return record.NewStore(id, c, cfg.loader, f.store)
	})
	f.deps = Deps{
		Table:         table,
		Container:     f.container,
		Codec:         codec.NewStringCodec(),
		Dispatcher:    f.dispatcher,
		BackupTimeout: time.Second,
	}
	return f
}

// ownedKey returns a key whose partition is owned by the local node.
func ownedKey(t *testing.T, table *cluster.Table) record.Data {
	t.Helper()
	for i := 0; i < 10000; i++ {
		key := record.Data(fmt.Sprintf("key-%d", i))
		if table.IsOwner(table.PartitionOf(key)) {
			return key
		}
	}
	t.Fatal("no key owned by the local node")
	return nil
}

func (f *fixture) recordStore() *record.Store {
	return f.container.RecordStore("m")
}

func (f *fixture) request(m Mutation) Request {
	return Request{
		MapName:     "m",
		PartitionID: f.partition,
		Key:         f.key,
		Mutation:    m,
	}
}

// run runs req to completion and returns its response.
func (f *fixture) run(t *testing.T, req Request) Response {
	t.Helper()
	future := NewFuture()
	req.Responder = future

	op, err := New(f.deps, req)
	require.NoError(t, err)
	op.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := future.Wait(ctx)
	require.NoError(t, err)
	return resp
}
