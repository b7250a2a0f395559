// Package keylock provides named mutexes for serializing work per ledger key.
//
// The batch ledger is logically single-threaded per (item, department):
// allocate+apply, deficit recording and reconciliation are check-then-act
// sequences. Operations on different keys stay fully parallel.
package keylock

import "sync"

// Map holds one mutex per string key. Mutexes are created on first use and
// kept for the process lifetime; the key space (items × departments) is small
// and bounded, so entries are never evicted.
type Map struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMap creates an empty lock map.
func NewMap() *Map {
	return &Map{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it if needed.
func (m *Map) Lock(key string) {
	m.get(key).Lock()
}

// Unlock releases the mutex for key.
// Panics if the key was never locked, same as an unlocked sync.Mutex would.
func (m *Map) Unlock(key string) {
	m.get(key).Unlock()
}

func (m *Map) get(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}
