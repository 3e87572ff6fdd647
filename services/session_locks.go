package services

import (
	"sync"
)

// SessionLocks hands out one mutex per key. Entries are reference counted
// and dropped once nobody holds or waits for them.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free and returns its release func.
func (l *SessionLocks) Lock(key string) func() {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			kl.mu.Unlock()
			l.mu.Lock()
			kl.refs--
			if kl.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// WithLock runs fn while holding key.
func (l *SessionLocks) WithLock(key string, fn func() error) error {
	unlock := l.Lock(key)
	defer unlock()
	return fn()
}

func (l *SessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
