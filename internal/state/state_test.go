package state_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wardenbot/warden/internal/state"
)

func TestBoundedMapCapacityEviction(t *testing.T) {
	t.Parallel()

	m := state.NewBoundedMap[int, string](10)
	base := time.Now()

	// Fill to capacity with increasing activity timestamps.
	for i := range 10 {
		m.Set(i, "v", base.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, 10, m.Len())

	// One over capacity evicts the oldest entry (10% of 10 = 1).
	m.Set(99, "new", base.Add(time.Hour))
	assert.Equal(t, 10, m.Len())

	_, oldest := m.Get(0)
	assert.False(t, oldest, "oldest entry should be evicted")
	_, newest := m.Get(99)
	assert.True(t, newest)
}

func TestBoundedMapUpdateCreatesAndMutates(t *testing.T) {
	t.Parallel()

	m := state.NewBoundedMap[string, int](0)
	now := time.Now()

	got := m.Update("k", now, func(v int, exists bool) int {
		assert.False(t, exists)
		return 1
	})
	assert.Equal(t, 1, got)

	got = m.Update("k", now, func(v int, exists bool) int {
		assert.True(t, exists)
		return v + 1
	})
	assert.Equal(t, 2, got)
}

func TestActivityStoreIdleSweep(t *testing.T) {
	t.Parallel()

	store := state.NewActivityStore(100, time.Minute)
	now := time.Now()

	store.With(1, now.Add(-2*time.Minute), func(w *state.ActivityWindow) {
		w.Messages = append(w.Messages, now.Add(-2*time.Minute))
	})
	store.With(2, now, func(w *state.ActivityWindow) {
		w.Messages = append(w.Messages, now)
	})
	assert.Equal(t, 2, store.Len())

	removed := store.Sweep(now)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestHistoryStoreCapsPerUser(t *testing.T) {
	t.Parallel()

	store := state.NewHistoryStore(100, 3, time.Hour)
	now := time.Now()

	for i := range 5 {
		store.Record(7, state.Violation{
			Category: "rate",
			Excerpt:  string(rune('a' + i)),
			At:       now.Add(time.Duration(i) * time.Second),
		})
	}

	rec, ok := store.Snapshot(7)
	assert.True(t, ok)
	assert.Len(t, rec.Violations, 3)
	// Oldest entries dropped first.
	assert.Equal(t, "c", rec.Violations[0].Excerpt)
	assert.Equal(t, 5, rec.Counts["rate"])
}

func TestHistoryStoreRetentionSweep(t *testing.T) {
	t.Parallel()

	store := state.NewHistoryStore(100, 10, time.Hour)
	now := time.Now()

	store.Record(1, state.Violation{Category: "spam", At: now.Add(-2 * time.Hour)})
	store.Record(2, state.Violation{Category: "spam", At: now})

	removed := store.Sweep(now)
	assert.Equal(t, 1, removed)

	_, stale := store.Snapshot(1)
	assert.False(t, stale)
	_, fresh := store.Snapshot(2)
	assert.True(t, fresh)
}

func TestHistorySnapshotIsCopy(t *testing.T) {
	t.Parallel()

	store := state.NewHistoryStore(100, 10, time.Hour)
	now := time.Now()
	store.Record(1, state.Violation{Category: "spam", Excerpt: "x", At: now})

	rec, _ := store.Snapshot(1)
	rec.Violations[0].Excerpt = "mutated"
	rec.Counts["spam"] = 99

	again, _ := store.Snapshot(1)
	assert.Equal(t, "x", again.Violations[0].Excerpt)
	assert.Equal(t, 1, again.Counts["spam"])
}

func TestWarningStoreResetSemantics(t *testing.T) {
	t.Parallel()

	store := state.NewWarningStore(100, time.Hour)
	now := time.Now()

	assert.Equal(t, 1, store.Add(1, now))
	assert.Equal(t, 2, store.Add(1, now.Add(time.Minute)))
	assert.Equal(t, 3, store.Add(1, now.Add(2*time.Minute)))

	// After the reset window the count restarts at 1, not 4.
	assert.Equal(t, 1, store.Add(1, now.Add(2*time.Hour)))
}

func TestWarningStoreCountExpiry(t *testing.T) {
	t.Parallel()

	store := state.NewWarningStore(100, time.Hour)
	now := time.Now()

	store.Add(1, now)
	assert.Equal(t, 1, store.Count(1, now.Add(time.Minute)))
	assert.Equal(t, 0, store.Count(1, now.Add(2*time.Hour)))

	store.Add(2, now)
	store.Clear(2)
	assert.Equal(t, 0, store.Count(2, now))
}
