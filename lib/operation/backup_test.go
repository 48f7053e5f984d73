package operation

import (
	"context"
	"errors"
	"testing"

	"github.com/ValentinKolb/dMap/lib/partition"
	"github.com/ValentinKolb/dMap/lib/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replicaStore() *record.Store {
	return record.NewStore(0, record.DefaultMapConfig("m"), nil, nil)
}

func TestRemoveBackupIsIdempotent(t *testing.T) {
	once, twice := replicaStore(), replicaStore()
	for _, rs := range []*record.Store{once, twice} {
		rs.Put(record.Data("k"), record.Data("v"), 0)
		rs.Put(record.Data("other"), record.Data("x"), 0)
	}

	b := Backup{MapName: "m", Key: record.Data("k"), Kind: KindRemove}

	changed, err := b.Apply(once)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = b.Apply(twice)
	require.NoError(t, err)
	changed, err = b.Apply(twice)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, once.Size(), twice.Size())
	assert.False(t, twice.Contains(record.Data("k")))
	assert.True(t, twice.Contains(record.Data("other")))
}

func TestPutBackupNeverOverwritesNewer(t *testing.T) {
	rs := replicaStore()

	newer := Backup{MapName: "m", Key: record.Data("k"), Value: record.Data("v2"), Version: 7, Kind: KindPut}
	older := Backup{MapName: "m", Key: record.Data("k"), Value: record.Data("v1"), Version: 3, Kind: KindUpdate}

	_, err := newer.Apply(rs)
	require.NoError(t, err)
	changed, err := older.Apply(rs)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = newer.Apply(rs)
	require.NoError(t, err)
	assert.True(t, changed, "replaying the same version reinstalls the same value")

	rec, ok := rs.Peek(record.Data("k"))
	require.True(t, ok)
	assert.Equal(t, record.Data("v2"), rec.Value)
	assert.Equal(t, uint64(7), rec.Version)
}

func TestBackupUnknownKind(t *testing.T) {
	_, err := Backup{Key: record.Data("k"), Kind: partition.Kind(42)}.Apply(replicaStore())
	assert.True(t, IsCode(err, RetCInvalidOperation))
}

func TestMutationOf(t *testing.T) {
	m, err := MutationOf(Remove{}.logItem("m", record.Data("k")))
	require.NoError(t, err)
	assert.Equal(t, KindRemove, m.Kind())

	m, err = MutationOf(Put{Value: record.Data("v")}.logItem("m", record.Data("k")))
	require.NoError(t, err)
	assert.Equal(t, Put{Value: record.Data("v")}, m)

	_, err = NewMutation(partition.Kind(0), nil, 0)
	assert.Error(t, err)
}

func TestFutureDeliversOnce(t *testing.T) {
	f := NewFuture()
	require.NoError(t, f.SendResponse(Response{Value: record.Data("a"), Found: true}))
	assert.ErrorIs(t, f.SendResponse(Response{}), ErrResponseAlreadySent)

	resp, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, record.Data("a"), resp.Value)

	calls := 0
	r := ResponderFunc(func(Response) { calls++ })
	assert.NoError(t, r.SendResponse(Response{}))
	assert.ErrorIs(t, r.SendResponse(Response{}), ErrResponseAlreadySent)
	assert.Equal(t, 1, calls)
}

func TestErrorCodes(t *testing.T) {
	cause := errors.New("io")
	err := WrapError(RetCPersistence, "store failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, RetCPersistence, CodeOf(err))
	assert.Equal(t, RetCSuccess, CodeOf(nil))
	assert.Equal(t, RetCInternalError, CodeOf(cause))
	assert.Contains(t, err.Error(), "RetCPersistence")
}
