package app

import "sync"

// DocumentLocks hands out one mutex per document ID. Entries are dropped once
// nobody holds or waits for them. Embedding generation and deletion share one
// instance so a document is never deleted under a running batch.
type DocumentLocks struct {
	mu    sync.Mutex
	locks map[uint]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func NewDocumentLocks() *DocumentLocks {
	return &DocumentLocks{locks: make(map[uint]*refMutex)}
}

// Lock blocks until the caller owns id and returns the matching unlock func.
func (l *DocumentLocks) Lock(id uint) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &refMutex{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *DocumentLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
