package record

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(3, DefaultMapConfig("users"), nil, nil)
}

func TestStorePutGetRemove(t *testing.T) {
	s := newTestStore()
	key, value := Data("k"), Data("v1")

	_, found := s.Get(key)
	assert.False(t, found)

	prior, loaded := s.Put(key, value, 0)
	assert.False(t, loaded)
	assert.Nil(t, prior.Value)

	rec, found := s.Get(key)
	require.True(t, found)
	assert.Equal(t, value, rec.Value)
	assert.Equal(t, uint64(1), rec.Stats.Hits)

	prior, loaded = s.Put(key, Data("v2"), 0)
	require.True(t, loaded)
	assert.Equal(t, value, prior.Value)

	prior, loaded = s.Remove(key)
	require.True(t, loaded)
	assert.Equal(t, Data("v2"), prior.Value)
	assert.False(t, s.Contains(key))
	assert.Equal(t, 0, s.Size())
}

func TestStoreRemoveAbsent(t *testing.T) {
	s := newTestStore()
	s.Put(Data("other"), Data("x"), 0)

	_, loaded := s.Remove(Data("missing"))
	assert.False(t, loaded)
	assert.Equal(t, 1, s.Size())
}

func TestStoreCopiesValues(t *testing.T) {
	s := newTestStore()
	value := Data("value")
	s.Put(Data("k"), value, 0)
	value[0] = 'X'

	rec, _ := s.Peek(Data("k"))
	assert.Equal(t, Data("value"), rec.Value)
}

func TestStoreUpdate(t *testing.T) {
	s := newTestStore()

	_, applied := s.Update(Data("k"), Data("v"), 0)
	assert.False(t, applied)
	assert.False(t, s.Contains(Data("k")))

	s.Put(Data("k"), Data("v1"), 0)
	prior, applied := s.Update(Data("k"), Data("v2"), 0)
	assert.True(t, applied)
	assert.Equal(t, Data("v1"), prior.Value)

	rec, _ := s.Peek(Data("k"))
	assert.Equal(t, Data("v2"), rec.Value)
}

func TestStoreVersionsNeverRepeat(t *testing.T) {
	s := newTestStore()
	s.Put(Data("k"), Data("a"), 0)
	first, _ := s.Peek(Data("k"))
	s.Remove(Data("k"))
	s.Put(Data("k"), Data("b"), 0)
	second, _ := s.Peek(Data("k"))

	assert.Greater(t, second.Version, first.Version)
	assert.Equal(t, second.Version, s.Sequence())
}

func TestStoreRemoveVersioned(t *testing.T) {
	s := newTestStore()
	s.Put(Data("k"), Data("a"), 0)
	put, _ := s.Peek(Data("k"))

	rec, ok, version := s.RemoveVersioned(Data("k"))
	require.True(t, ok)
	assert.Equal(t, Data("a"), rec.Value)
	assert.Greater(t, version, put.Version, "a removal never reuses the version of the removed put")
	assert.Equal(t, version, s.Sequence())

	_, ok, absent := s.RemoveVersioned(Data("k"))
	assert.False(t, ok)
	assert.Greater(t, absent, version)
}

func TestStoreApplyRemove(t *testing.T) {
	s := newTestStore()
	s.ApplyVersioned(Data("k"), Data("v"), 0, 3)

	assert.True(t, s.ApplyRemove(Data("k"), 8))
	assert.False(t, s.ApplyRemove(Data("k"), 8), "replaying a removal is a no-op")
	assert.False(t, s.Contains(Data("k")))
	assert.Equal(t, uint64(8), s.Sequence())
}

func TestStoreApplyVersioned(t *testing.T) {
	s := newTestStore()

	assert.True(t, s.ApplyVersioned(Data("k"), Data("new"), 0, 10))
	assert.False(t, s.ApplyVersioned(Data("k"), Data("old"), 0, 5), "older versions must not overwrite newer ones")
	assert.True(t, s.ApplyVersioned(Data("k"), Data("new"), 0, 10), "replaying the same version is allowed")

	rec, _ := s.Peek(Data("k"))
	assert.Equal(t, Data("new"), rec.Value)
	assert.Equal(t, uint64(10), rec.Version)
	assert.Equal(t, uint64(10), s.Sequence())
}

func TestStoreTTL(t *testing.T) {
	cfg := DefaultMapConfig("sessions")
	cfg.TTL = time.Minute
	s := NewStore(0, cfg, nil, nil)

	s.Put(Data("default"), Data("v"), 0)
	s.Put(Data("custom"), Data("v"), time.Second)

	rec, _ := s.Peek(Data("default"))
	assert.Equal(t, time.Minute, rec.TTL)
	expiresAt, ok := rec.ExpiresAt()
	assert.True(t, ok)
	assert.Equal(t, rec.Stats.UpdatedAt.Add(time.Minute), expiresAt)

	rec, _ = s.Peek(Data("custom"))
	assert.Equal(t, time.Second, rec.TTL)
}

func TestStoreInfo(t *testing.T) {
	s := newTestStore()
	assert.Equal(t, 0, s.Info().SizeBytes)

	for i := 0; i < 50; i++ {
		s.Put(Data(fmt.Sprintf("key-%d", i)), Data("some value"), 0)
	}
	info := s.Info()
	assert.Equal(t, "users", info.MapName)
	assert.Equal(t, uint32(3), info.PartitionID)
	assert.Equal(t, 50, info.Entries)
	assert.Greater(t, info.SizeBytes, 0)

	s.Clear()
	assert.Equal(t, 0, s.Size())
}

func TestMapConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  MapConfig
		wantErr bool
	}{
		{name: "default", config: DefaultMapConfig("m")},
		{name: "empty name", config: MapConfig{}, wantErr: true},
		{name: "negative backups", config: MapConfig{Name: "m", BackupCount: -1}, wantErr: true},
		{name: "too many backups", config: MapConfig{Name: "m", BackupCount: 4, AsyncBackupCount: 3}, wantErr: true},
		{name: "negative write delay", config: MapConfig{Name: "m", WriteDelay: -time.Second}, wantErr: true},
		{name: "write behind", config: MapConfig{Name: "m", WriteDelay: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
