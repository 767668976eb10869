package service

import "sync"

// keyMutex provides mutual exclusion per order number. Entries are reference
// counted and removed once the last holder unlocks, so the map does not grow
// with the order history.
type keyMutex struct {
	mu      sync.Mutex
	entries map[string]*keyMutexEntry
}

type keyMutexEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{entries: make(map[string]*keyMutexEntry)}
}

// Lock blocks until the key is exclusively held and returns the unlock func
func (km *keyMutex) Lock(key string) func() {
	km.mu.Lock()
	entry, ok := km.entries[key]
	if !ok {
		entry = &keyMutexEntry{}
		km.entries[key] = entry
	}
	entry.refs++
	km.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		km.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(km.entries, key)
		}
		km.mu.Unlock()
	}
}
