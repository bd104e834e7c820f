// Package lock provides per-account locking so that read-modify-write
// sequences against the same account never interleave within this process.
// The SQL guards remain the final authority; the lock keeps contention off
// the database and serializes multi-statement service flows.
package lock

import "sync"

// accountMutex wraps a mutex with reuse via the pool.
type accountMutex struct {
	mu sync.Mutex
}

// AccountLock provides per-account mutual exclusion keyed by user id.
type AccountLock struct {
	locks sync.Map // map[int64]*accountMutex
	pool  sync.Pool
}

// New creates an AccountLock.
func New() *AccountLock {
	return &AccountLock{
		pool: sync.Pool{
			New: func() any {
				return &accountMutex{}
			},
		},
	}
}

// getLock retrieves or creates the mutex for a user id.
func (al *AccountLock) getLock(userID int64) *accountMutex {
	if v, ok := al.locks.Load(userID); ok {
		return v.(*accountMutex)
	}

	newLock := al.pool.Get().(*accountMutex)
	actual, loaded := al.locks.LoadOrStore(userID, newLock)
	if loaded {
		// Another goroutine won the race; recycle ours.
		al.pool.Put(newLock)
	}
	return actual.(*accountMutex)
}

// Lock acquires the lock for an account.
func (al *AccountLock) Lock(userID int64) {
	al.getLock(userID).mu.Lock()
}

// Unlock releases the lock for an account.
func (al *AccountLock) Unlock(userID int64) {
	if v, ok := al.locks.Load(userID); ok {
		v.(*accountMutex).mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (al *AccountLock) TryLock(userID int64) bool {
	return al.getLock(userID).mu.TryLock()
}

// WithLock runs fn while holding the account's lock.
func (al *AccountLock) WithLock(userID int64, fn func() error) error {
	al.Lock(userID)
	defer al.Unlock(userID)
	return fn()
}

// WithPairLock runs fn while holding both accounts' locks, always acquiring
// in ascending id order so concurrent transfers cannot deadlock.
func (al *AccountLock) WithPairLock(a, b int64, fn func() error) error {
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	al.Lock(first)
	defer al.Unlock(first)
	if second != first {
		al.Lock(second)
		defer al.Unlock(second)
	}
	return fn()
}
