package lockmgr

import (
	"time"

	"github.com/ValentinKolb/dMap/lib/record"
)

// Token identifies the owner of a key lock. The zero Token owns nothing.
type Token string

// ILockManager manages explicit key locks of one partition.
//
// Key locks span several operations (e.g. lock, read, write, unlock). Mutating
// operations never acquire or release them; they only verify that the key is
// either unlocked or locked by the token they carry.
type ILockManager interface {
	// AcquireLock acquires the lock of key in mapName for ttl (zero = no lease
	// expiry). It returns false if another owner holds an unexpired lock.
	AcquireLock(mapName string, key record.Data, ttl time.Duration) (ok bool, token Token, err error)

	// ReleaseLock releases the lock if it is owned by token.
	// It also returns true if the lock did not exist.
	ReleaseLock(mapName string, key record.Data, token Token) (ok bool, err error)

	// CanWrite reports whether a mutation carrying token may modify key.
	CanWrite(mapName string, key record.Data, token Token) bool

	// IsLocked reports whether key currently has an unexpired lock.
	IsLocked(mapName string, key record.Data) bool
}
