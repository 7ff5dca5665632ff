package kvstore

import (
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-memory Store.
//
// It is used in tests and as the transient fallback substrate. A capacity of
// 0 means unbounded.
type MemStore struct {
	mu       sync.RWMutex
	capacity int64
	m        map[string]string
}

// NewMemStore creates an in-memory store with the given byte capacity.
func NewMemStore(capacity int64) *MemStore {
	return &MemStore{
		capacity: capacity,
		m:        make(map[string]string),
	}
}

// Get implements [Store].
func (s *MemStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

// Set implements [Store].
func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity > 0 {
		used := s.usedLocked()
		if old, ok := s.m[key]; ok {
			used -= int64(len(key) + len(old))
		}
		if used+int64(len(key)+len(value)) > s.capacity {
			return ErrCapacity
		}
	}
	s.m[key] = value
	return nil
}

// Remove implements [Store].
func (s *MemStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// Keys implements [Store].
func (s *MemStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// UsedBytes implements [Store].
func (s *MemStore) UsedBytes() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usedLocked(), nil
}

func (s *MemStore) usedLocked() int64 {
	var total int64
	for k, v := range s.m {
		total += int64(len(k) + len(v))
	}
	return total
}
