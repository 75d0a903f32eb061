package state

import (
	"time"
)

// WarningState tracks a user's outstanding warning count and when the last
// warning was issued.
type WarningState struct {
	Count       int
	LastWarning time.Time
}

// WarningStore keeps warning counters per user. Counts decay to a fresh
// start (reset to 1, not incremented) once the reset window has elapsed
// since the last warning.
type WarningStore struct {
	warnings   *BoundedMap[uint64, *WarningState]
	resetAfter time.Duration
}

// NewWarningStore creates a WarningStore with the given reset window.
func NewWarningStore(maxEntries int, resetAfter time.Duration) *WarningStore {
	return &WarningStore{
		warnings:   NewBoundedMap[uint64, *WarningState](maxEntries),
		resetAfter: resetAfter,
	}
}

// Add records a warning at now and returns the resulting count.
func (s *WarningStore) Add(userID uint64, now time.Time) int {
	state := s.warnings.Update(userID, now, func(w *WarningState, exists bool) *WarningState {
		if !exists {
			w = &WarningState{}
		}

		if now.Sub(w.LastWarning) > s.resetAfter {
			w.Count = 1
		} else {
			w.Count++
		}
		w.LastWarning = now
		return w
	})
	return state.Count
}

// Count returns the user's current warning count. An expired entry counts
// as zero and is removed.
func (s *WarningStore) Count(userID uint64, now time.Time) int {
	state, ok := s.warnings.Get(userID)
	if !ok {
		return 0
	}
	if now.Sub(state.LastWarning) > s.resetAfter {
		s.warnings.Delete(userID)
		return 0
	}
	return state.Count
}

// Clear removes the user's warning state, giving them a fresh start.
func (s *WarningStore) Clear(userID uint64) {
	s.warnings.Delete(userID)
}
