package tools

import "sync"

// keyLocks serializes writes per subject-identity key so two concurrent
// edits to the same record never interleave. Entries are reference counted
// and garbage collected once unused.
type keyLocks struct {
	mu    sync.Mutex
	locks map[int64]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[int64]*keyLockEntry)}
}

// withLock runs fn while holding the lock for the given identity key.
func (k *keyLocks) withLock(key int64, fn func() error) error {
	entry := k.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		k.release(key)
	}()
	return fn()
}

func (k *keyLocks) acquire(key int64) *keyLockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.locks[key]
	if !ok {
		entry = &keyLockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (k *keyLocks) release(key int64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(k.locks, key)
	}
}
