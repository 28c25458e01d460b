package store

import "sync"

// accountLocks serializes appends per account while letting appends to
// different accounts interleave.
//
// Locks are created lazily on first use and never reclaimed; account
// cardinality is small (a person's credit facilities).
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for an account, creating it if needed.
func (a *accountLocks) get(accountID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[accountID] = l
	}
	return l
}
