package state

import (
	"time"
)

// Fingerprint is the normalized, repeat-compressed form of a message kept for
// duplicate comparison.
type Fingerprint struct {
	Content string
	At      time.Time
}

// ActivityWindow is the transient per-user working set used by the sliding
// spam detectors. Created lazily on a user's first message; detectors prune
// expired entries on each access.
type ActivityWindow struct {
	// Messages holds recent message timestamps for rate limiting.
	Messages []time.Time
	// Recent holds recent message fingerprints for duplicate detection.
	Recent []Fingerprint
	// LinkCount counts links sent inside the current fixed window.
	LinkCount int
	// LinkWindowStart marks when the current link window opened.
	LinkWindowStart time.Time
}

// ActivityStore tracks an ActivityWindow per user. Windows are bounded by
// capacity eviction on insert and removed entirely by the idle sweep once a
// user has no activity inside the idle horizon.
type ActivityStore struct {
	windows     *BoundedMap[uint64, *ActivityWindow]
	idleHorizon time.Duration
}

// NewActivityStore creates an ActivityStore.
func NewActivityStore(maxEntries int, idleHorizon time.Duration) *ActivityStore {
	return &ActivityStore{
		windows:     NewBoundedMap[uint64, *ActivityWindow](maxEntries),
		idleHorizon: idleHorizon,
	}
}

// With runs fn with the user's activity window, creating it on first use.
// fn executes under the store lock so concurrent messages from the same user
// cannot race on the window's slices.
func (s *ActivityStore) With(userID uint64, now time.Time, fn func(w *ActivityWindow)) {
	s.windows.Update(userID, now, func(w *ActivityWindow, exists bool) *ActivityWindow {
		if !exists {
			w = &ActivityWindow{LinkWindowStart: now}
		}
		fn(w)
		return w
	})
}

// Len reports how many users currently hold a window.
func (s *ActivityStore) Len() int {
	return s.windows.Len()
}

// Sweep evicts every window with no activity inside the idle horizon and
// reports how many were removed.
func (s *ActivityStore) Sweep(now time.Time) int {
	cutoff := now.Add(-s.idleHorizon)
	return s.windows.DeleteIf(func(_ uint64, w *ActivityWindow) bool {
		for _, ts := range w.Messages {
			if ts.After(cutoff) {
				return false
			}
		}
		for _, fp := range w.Recent {
			if fp.At.After(cutoff) {
				return false
			}
		}
		return true
	})
}
