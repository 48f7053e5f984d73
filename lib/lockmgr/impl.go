package lockmgr

import (
	"time"

	"github.com/ValentinKolb/dMap/lib/record"
	"github.com/puzpuzpuz/xsync/v3"
)

// lease is a held lock
type lease struct {
	owner     Token
	expiresAt time.Time // zero = never
}

func (l lease) expired(now time.Time) bool {
	return !l.expiresAt.IsZero() && !now.Before(l.expiresAt)
}

type lockMgrImpl struct {
	locks *xsync.MapOf[string, lease]
	now   func() time.Time
}

// NewLockManager creates an empty lock table.
func NewLockManager() ILockManager {
	return &lockMgrImpl{
		locks: xsync.NewMapOf[string, lease](),
		now:   time.Now,
	}
}

func lockKey(mapName string, key record.Data) string {
	return mapName + "\x00" + string(key)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lockmgr.ILockManager)
// --------------------------------------------------------------------------

func (lm *lockMgrImpl) AcquireLock(mapName string, key record.Data, ttl time.Duration) (bool, Token, error) {
	owner, err := generateOwnerID()
	if err != nil {
		return false, "", err
	}

	now := lm.now()
	candidate := lease{owner: owner}
	if ttl > 0 {
		candidate.expiresAt = now.Add(ttl)
	}

	// set the lease only if there is no unexpired one (atomic CAS on the key)
	acquired := false
	lm.locks.Compute(lockKey(mapName, key), func(old lease, loaded bool) (lease, bool) {
		if loaded && !old.expired(now) {
			return old, false
		}
		acquired = true
		return candidate, false
	})

	if !acquired {
		return false, "", nil
	}
	return true, owner, nil
}

func (lm *lockMgrImpl) ReleaseLock(mapName string, key record.Data, token Token) (bool, error) {
	now := lm.now()
	released := true
	lm.locks.Compute(lockKey(mapName, key), func(old lease, loaded bool) (lease, bool) {
		if !loaded || old.expired(now) {
			return old, true
		}
		if old.owner != token {
			released = false
			return old, false
		}
		return old, true
	})
	return released, nil
}

func (lm *lockMgrImpl) CanWrite(mapName string, key record.Data, token Token) bool {
	l, ok := lm.locks.Load(lockKey(mapName, key))
	if !ok || l.expired(lm.now()) {
		return true
	}
	return l.owner == token
}

func (lm *lockMgrImpl) IsLocked(mapName string, key record.Data) bool {
	l, ok := lm.locks.Load(lockKey(mapName, key))
	return ok && !l.expired(lm.now())
}
