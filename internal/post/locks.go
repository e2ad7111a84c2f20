package post

import "sync"

// Locks serializes transitions per submitter. Entries are dropped when the
// last holder releases them, so the table only holds submitters in flight.
type Locks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocks returns an empty lock table.
func NewLocks() *Locks {
	return &Locks{entries: make(map[int64]*lockEntry)}
}

// Lock blocks until the submitter's lock is held and returns its release func.
func (l *Locks) Lock(submitterID int64) func() {
	l.mu.Lock()
	e, ok := l.entries[submitterID]
	if !ok {
		e = &lockEntry{}
		l.entries[submitterID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, submitterID)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of submitters currently holding or waiting for a lock.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
