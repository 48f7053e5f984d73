// Package lockmgr implements explicit key locks for multi-step protocols that
// span several operations on the same key.
//
// Every partition owns one lock table. Locks are leases: an optional TTL
// releases a lock automatically if its owner disappears, which prevents
// deadlocks when a client crashes.
//
// Core Functionality:
//   - Lock acquisition with a randomly generated owner token
//   - Lease expiry through an optional TTL
//   - Safe release that verifies ownership
//   - Write checks used by mutating operations (CanWrite)
//
// Mutating operations never acquire or release locks themselves. They carry
// the caller's Token and fail with a key-locked error if another owner holds
// the lock. Serial execution per partition already orders single operations;
// locks are only needed when a caller must keep other writers out between
// several of its own operations.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager()
//
//	ok, token, err := locks.AcquireLock("users", key, 30*time.Second)
//	if err != nil || !ok {
//	    // handle error or contention
//	}
//
//	// ... operations carrying token ...
//
//	released, err := locks.ReleaseLock("users", key, token)
package lockmgr
