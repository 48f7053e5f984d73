package lockmgr

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dMap/lib/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLockManager(now *time.Time) *lockMgrImpl {
	lm := NewLockManager().(*lockMgrImpl)
	lm.now = func() time.Time { return *now }
	return lm
}

func TestAcquireRelease(t *testing.T) {
	now := time.Now()
	lm := newTestLockManager(&now)
	key := record.Data("k")

	ok, token, err := lm.AcquireLock("m", key, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.True(t, lm.IsLocked("m", key))

	ok, _, err = lm.AcquireLock("m", key, 0)
	require.NoError(t, err)
	assert.False(t, ok, "lock is held by another owner")

	released, err := lm.ReleaseLock("m", key, Token("someone-else"))
	require.NoError(t, err)
	assert.False(t, released)

	released, err = lm.ReleaseLock("m", key, token)
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, lm.IsLocked("m", key))

	released, err = lm.ReleaseLock("m", key, token)
	require.NoError(t, err)
	assert.True(t, released, "releasing a missing lock succeeds")
}

func TestLocksAreScopedByMap(t *testing.T) {
	now := time.Now()
	lm := newTestLockManager(&now)

	ok, _, _ := lm.AcquireLock("a", record.Data("k"), 0)
	require.True(t, ok)
	ok, _, _ = lm.AcquireLock("b", record.Data("k"), 0)
	assert.True(t, ok)
}

func TestLeaseExpiry(t *testing.T) {
	now := time.Now()
	lm := newTestLockManager(&now)
	key := record.Data("k")

	ok, first, _ := lm.AcquireLock("m", key, time.Second)
	require.True(t, ok)
	assert.False(t, lm.CanWrite("m", key, ""))

	now = now.Add(2 * time.Second)
	assert.False(t, lm.IsLocked("m", key))
	assert.True(t, lm.CanWrite("m", key, ""))

	ok, second, _ := lm.AcquireLock("m", key, 0)
	require.True(t, ok)
	assert.NotEqual(t, first, second)
}

func TestCanWrite(t *testing.T) {
	now := time.Now()
	lm := newTestLockManager(&now)
	key := record.Data("k")

	assert.True(t, lm.CanWrite("m", key, ""), "unlocked keys are writable")

	_, token, _ := lm.AcquireLock("m", key, 0)
	assert.True(t, lm.CanWrite("m", key, token))
	assert.False(t, lm.CanWrite("m", key, ""))
	assert.False(t, lm.CanWrite("m", key, Token("other")))
}
