package sync

import (
	"sync"
)

const shardCount = 32

// ShardedMap is a string-keyed map split across 32 independently locked
// shards. Every per-key operation runs under its shard's lock, so
// read-modify-write sequences passed to Update are atomic for that key.
type ShardedMap[V any] struct {
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu    sync.Mutex
	items map[string]V
}

// NewShardedMap creates an empty ShardedMap.
func NewShardedMap[V any]() *ShardedMap[V] {
	m := &ShardedMap[V]{}
	for i := range m.shards {
		m.shards[i].items = make(map[string]V)
	}
	return m
}

// Get returns the value stored under key.
func (m *ShardedMap[V]) Get(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

// Set stores v under key, replacing any existing value.
func (m *ShardedMap[V]) Set(key string, v V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.items[key] = v
	s.mu.Unlock()
}

// Delete removes key. It reports whether a value was present.
func (m *ShardedMap[V]) Delete(key string) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	delete(s.items, key)
	return ok
}

// Update applies fn to the current value under the shard lock. fn receives
// the current value and whether it exists, and returns the next value and
// whether to keep it; returning keep=false deletes the key. The returned
// values are what fn produced.
func (m *ShardedMap[V]) Update(key string, fn func(cur V, exists bool) (next V, keep bool)) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.items[key]
	next, keep := fn(cur, exists)
	if keep {
		s.items[key] = next
	} else {
		delete(s.items, key)
	}
	return next, keep
}

// DeleteFunc removes every entry for which fn returns true and returns the
// number removed. Shards are scanned one at a time, so requests on other
// shards proceed while a sweep is running.
func (m *ShardedMap[V]) DeleteFunc(fn func(key string, v V) bool) int {
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, v := range s.items {
			if fn(k, v) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of entries across all shards.
func (m *ShardedMap[V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

func (m *ShardedMap[V]) shardFor(key string) *shard[V] {
	if key == "" {
		return &m.shards[0]
	}
	return &m.shards[hashString(key)%shardCount]
}

// hashString provides a simple hash for shard selection.
func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
