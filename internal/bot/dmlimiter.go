package bot

import (
	"sync"
	"time"
)

// DMLimiter throttles outbound direct messages with two independent gates: a
// minimum delay per recipient and a global fixed-window budget. Dropping a DM
// is always acceptable; notifications are best-effort.
type DMLimiter struct {
	mu          sync.Mutex
	lastPerUser map[uint64]time.Time
	userDelay   time.Duration

	windowStart time.Time
	windowCount int
	globalMax   int
	window      time.Duration
}

// NewDMLimiter creates a DMLimiter.
func NewDMLimiter(userDelay time.Duration, globalMax int, window time.Duration) *DMLimiter {
	return &DMLimiter{
		lastPerUser: make(map[uint64]time.Time),
		userDelay:   userDelay,
		globalMax:   globalMax,
		window:      window,
	}
}

// Allow reports whether a DM to the user may be sent at now, recording the
// send when permitted.
func (l *DMLimiter) Allow(userID uint64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.lastPerUser[userID]; ok && now.Sub(last) < l.userDelay {
		return false
	}

	if now.Sub(l.windowStart) > l.window {
		l.windowStart = now
		l.windowCount = 0
	}
	if l.windowCount >= l.globalMax {
		return false
	}

	l.windowCount++
	l.lastPerUser[userID] = now

	// Drop stale per-user entries opportunistically so the map stays small.
	if len(l.lastPerUser) > 1024 {
		cutoff := now.Add(-l.userDelay)
		for id, last := range l.lastPerUser {
			if last.Before(cutoff) {
				delete(l.lastPerUser, id)
			}
		}
	}
	return true
}
