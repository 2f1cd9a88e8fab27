package keymutex

import "sync"

// KeyMutex serializes work per key so mutations of one entity never interleave
// while unrelated entities stay independent. Locks are created on first use
// and kept for the lifetime of the process; the entity id space is small
// (drivers, live sessions) so no eviction is needed.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *KeyMutex {
	return &KeyMutex{locks: map[string]*sync.Mutex{}}
}

func (k *KeyMutex) Lock(key string) {
	k.get(key).Lock()
}

func (k *KeyMutex) Unlock(key string) {
	k.get(key).Unlock()
}

func (k *KeyMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
