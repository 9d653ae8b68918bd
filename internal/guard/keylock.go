// Package guard provides per-key mutual exclusion for interaction handling.
// Operations sharing a logical key (participant+challenge, submission ID,
// challenge ID) must run as if serialized; unrelated keys proceed in parallel.
package guard

import (
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex serializes operations per string key
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewKeyedMutex creates a new keyed mutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[string]*entry),
	}
}

// Lock acquires the lock for a key, blocking until it is available
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for a key. The entry is dropped once no
// goroutine is waiting on it, so the map does not grow unbounded.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		panic("guard: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
