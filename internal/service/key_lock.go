package service

import (
	"sort"
	"sync"
)

// KeyedLocker serialises work on overlapping key sets, e.g. two rows sharing a NIS.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedMutex
}

type keyedMutex struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLocker constructs an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedMutex)}
}

// Lock acquires every key in sorted order and returns the matching unlock function.
// Empty keys are ignored.
func (l *KeyedLocker) Lock(keys ...string) func() {
	ordered := dedupeKeys(keys)
	held := make([]*keyedMutex, 0, len(ordered))
	for _, key := range ordered {
		m := l.acquire(key)
		m.mu.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(ordered[i])
		}
	}
}

func (l *KeyedLocker) acquire(key string) *keyedMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &keyedMutex{}
		l.locks[key] = m
	}
	m.refs++
	return m
}

func (l *KeyedLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		return
	}
	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func dedupeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
