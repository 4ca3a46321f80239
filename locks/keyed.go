// Package locks provides per-tournament mutual exclusion. Every
// read-modify-write cycle against a tournament's participants or bracket runs
// under the gate for that tournament id, so interleaved requests can never
// produce a torn state. Distinct ids do not block each other.
package locks

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// KeyedMutex serializes critical sections per integer key. Entries are
// created on demand and reference-counted, so the map does not grow with the
// number of keys ever seen, only with the keys currently in use. Waiting
// happens on a weighted semaphore, never on a poll loop, and honors context
// cancellation.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[int]*gateEntry
}

type gateEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[int]*gateEntry)}
}

// Execute runs fn while holding the lock for key. At most one fn per key runs
// at a time across all callers; the lock is released on every exit path,
// including a panic inside fn. A context error is returned if the caller is
// cancelled while waiting to acquire.
func (k *KeyedMutex) Execute(ctx context.Context, key int, fn func() error) error {
	e := k.retain(key)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.release(key)
		return err
	}
	defer func() {
		e.sem.Release(1)
		k.release(key)
	}()
	return fn()
}

func (k *KeyedMutex) retain(key int) *gateEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &gateEntry{sem: semaphore.NewWeighted(1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *KeyedMutex) release(key int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(k.entries, key)
	}
}
