package storage

import "sync"

// TableLocks serializes writers per table document.
//
// The file store itself does no locking: two unserialized read-modify-write
// cycles on the same table lose the first write. Callers that may run
// concurrently take the table lock around the whole cycle.
type TableLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the lock for a table and returns the matching unlock func.
func (l *TableLocks) Lock(database, schema, table string) func() {
	key := database + "\x00" + schema + "\x00" + table
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
