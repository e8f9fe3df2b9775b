// Package keylock serializes callers per string key. Table entries are
// reference counted and freed as soon as no goroutine holds or waits on
// them, so idle keys cost no memory.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Table is a set of per-key mutexes. The zero value is not usable; call New.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Lock blocks until the key's lock is held.
func (t *Table) Lock(key string) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &entry{}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()
	e.mu.Lock()
}

// Unlock releases the key's lock. The entry is removed once the last holder
// or waiter is gone.
func (t *Table) Unlock(key string) {
	t.mu.Lock()
	e := t.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(t.entries, key)
	}
	t.mu.Unlock()
	e.mu.Unlock()
}

// Len reports how many keys currently have a holder or waiter.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
