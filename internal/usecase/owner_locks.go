package usecase

import "sync"

// OwnerLocks serializes work on one owner's ledger within this process.
// Mutations and valuations share one set so a valuation never observes a
// save halfway through.
type OwnerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOwnerLocks creates an empty lock set.
func NewOwnerLocks() *OwnerLocks {
	return &OwnerLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until owner is free and returns the matching unlock.
func (l *OwnerLocks) Lock(owner string) func() {
	l.mu.Lock()
	m, ok := l.locks[owner]
	if !ok {
		m = &sync.Mutex{}
		l.locks[owner] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
