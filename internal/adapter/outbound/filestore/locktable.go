package filestore

import "sync"

// lockTable hands out a dedicated mutex per key, so that two
// operations against different paths never contend, while two
// operations against the same path are strictly serialized — the
// per-path locking the registry store's ordering guarantees require.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use, and
// returns an unlock function.
func (t *lockTable) Lock(key string) func() {
	t.mu.Lock()
	m, ok := t.locks[key]
	if !ok {
		m = &sync.Mutex{}
		t.locks[key] = m
	}
	t.mu.Unlock()

	m.Lock()
	return m.Unlock
}
