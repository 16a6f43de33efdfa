package services

import "sync"

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	waiters int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()

	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{}
		k.locks[key] = lock
	}

	lock.waiters++
	k.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		k.mu.Lock()
		defer k.mu.Unlock()

		lock.waiters--
		if lock.waiters == 0 {
			delete(k.locks, key)
		}
	}
}
