// Package state owns the per-user moderation working set: sliding activity
// windows, capped violation history and warning counters. Two bounding
// policies coexist: an idle sweep for session-scoped structures and a
// capacity eviction for long-lived aggregates.
package state

import (
	"sort"
	"sync"
	"time"
)

// evictFraction is the share of capacity removed in one eviction pass.
// Evicting a chunk instead of a single entry creates headroom so sustained
// load does not trigger an eviction on every insert.
const evictFraction = 0.1

type boundedEntry[V any] struct {
	value   V
	touched time.Time
}

// BoundedMap is a thread-safe map with a maximum entry count. When an insert
// pushes the map over capacity, the oldest entries by last-activity timestamp
// are evicted. All mutation runs under the map lock, so callers may safely
// mutate pointer values inside Update and Visit.
type BoundedMap[K comparable, V any] struct {
	mu         sync.Mutex
	data       map[K]boundedEntry[V]
	maxEntries int
}

// NewBoundedMap creates a BoundedMap holding at most maxEntries entries.
// A non-positive maxEntries disables capacity eviction.
func NewBoundedMap[K comparable, V any](maxEntries int) *BoundedMap[K, V] {
	return &BoundedMap[K, V]{
		data:       make(map[K]boundedEntry[V]),
		maxEntries: maxEntries,
	}
}

// Get returns the value for key without refreshing its activity timestamp.
func (m *BoundedMap[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key, marking it touched at now.
func (m *BoundedMap[K, V]) Set(key K, value V, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = boundedEntry[V]{value: value, touched: now}
	m.evictLocked()
}

// Update runs fn under the map lock with the current value (or the zero
// value when absent), stores the result and refreshes the activity
// timestamp. It returns the stored value.
func (m *BoundedMap[K, V]) Update(key K, now time.Time, fn func(value V, exists bool) V) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	next := fn(entry.value, ok)
	m.data[key] = boundedEntry[V]{value: next, touched: now}
	m.evictLocked()
	return next
}

// Visit runs fn under the map lock when key exists, without refreshing the
// activity timestamp. Returns whether the key was present.
func (m *BoundedMap[K, V]) Visit(key K, fn func(value V)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	if !ok {
		return false
	}
	fn(entry.value)
	return true
}

// Delete removes key from the map.
func (m *BoundedMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// Len reports the number of entries.
func (m *BoundedMap[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// DeleteIf removes every entry for which fn returns true and reports how
// many were removed. fn runs under the map lock.
func (m *BoundedMap[K, V]) DeleteIf(fn func(key K, value V) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.data {
		if fn(key, entry.value) {
			delete(m.data, key)
			removed++
		}
	}
	return removed
}

// evictLocked drops the oldest entries by activity timestamp when the map
// exceeds capacity. Caller must hold the lock.
func (m *BoundedMap[K, V]) evictLocked() {
	if m.maxEntries <= 0 || len(m.data) <= m.maxEntries {
		return
	}

	type aged struct {
		key     K
		touched time.Time
	}

	entries := make([]aged, 0, len(m.data))
	for key, entry := range m.data {
		entries = append(entries, aged{key: key, touched: entry.touched})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].touched.Before(entries[j].touched)
	})

	toRemove := int(float64(m.maxEntries) * evictFraction)
	if toRemove < 1 {
		toRemove = 1
	}
	for i := 0; i < toRemove && i < len(entries); i++ {
		delete(m.data, entries[i].key)
	}
}
