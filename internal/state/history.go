package state

import (
	"time"
)

// Violation is one recorded infraction: what category triggered, an excerpt
// of the offending content and when it happened.
type Violation struct {
	Category string
	Excerpt  string
	At       time.Time
}

// ViolationRecord aggregates a user's recent violations. The list is capped
// (oldest dropped first) and the per-category counts are cumulative for the
// record's lifetime.
type ViolationRecord struct {
	Violations  []Violation
	Counts      map[string]int
	LastUpdated time.Time
}

// HistoryStore keeps a ViolationRecord per user. Records are size-capped per
// user, capacity-evicted globally and purged after a retention period of
// inactivity.
type HistoryStore struct {
	records    *BoundedMap[uint64, *ViolationRecord]
	retention  time.Duration
	maxPerUser int
}

// NewHistoryStore creates a HistoryStore keeping at most maxPerUser entries
// per record and purging records untouched for longer than retention.
func NewHistoryStore(maxEntries, maxPerUser int, retention time.Duration) *HistoryStore {
	return &HistoryStore{
		records:    NewBoundedMap[uint64, *ViolationRecord](maxEntries),
		retention:  retention,
		maxPerUser: maxPerUser,
	}
}

// Record appends a violation to the user's history, dropping the oldest
// entry when the per-user cap is exceeded.
func (s *HistoryStore) Record(userID uint64, v Violation) {
	s.records.Update(userID, v.At, func(rec *ViolationRecord, exists bool) *ViolationRecord {
		if !exists {
			rec = &ViolationRecord{Counts: make(map[string]int)}
		}

		rec.Violations = append(rec.Violations, v)
		if over := len(rec.Violations) - s.maxPerUser; over > 0 {
			rec.Violations = rec.Violations[over:]
		}
		rec.Counts[v.Category]++
		rec.LastUpdated = v.At
		return rec
	})
}

// Snapshot returns a copy of the user's record so callers can read it
// without holding the store lock.
func (s *HistoryStore) Snapshot(userID uint64) (ViolationRecord, bool) {
	var copied ViolationRecord
	ok := s.records.Visit(userID, func(rec *ViolationRecord) {
		copied.Violations = append([]Violation(nil), rec.Violations...)
		copied.Counts = make(map[string]int, len(rec.Counts))
		for k, v := range rec.Counts {
			copied.Counts[k] = v
		}
		copied.LastUpdated = rec.LastUpdated
	})
	return copied, ok
}

// Clear removes the user's record entirely.
func (s *HistoryStore) Clear(userID uint64) {
	s.records.Delete(userID)
}

// Len reports how many users currently hold a record.
func (s *HistoryStore) Len() int {
	return s.records.Len()
}

// Sweep purges records untouched for longer than the retention period and
// reports how many were removed.
func (s *HistoryStore) Sweep(now time.Time) int {
	cutoff := now.Add(-s.retention)
	return s.records.DeleteIf(func(_ uint64, rec *ViolationRecord) bool {
		return rec.LastUpdated.Before(cutoff)
	})
}
