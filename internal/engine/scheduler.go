package engine

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// timerKey identifies one scheduled action. Scheduling the same key again
// replaces the pending timer, so reschedules and cancellations are explicit
// rather than racing through stale closures.
type timerKey struct {
	guildID snowflake.ID
	userID  snowflake.ID
	kind    string
}

// Timer kinds used by the engine.
const (
	timerUnmute      = "unmute"
	timerLedgerReset = "ledger_reset"
)

// Scheduler owns the deferred moderation actions: mute expiries and ledger
// resets. All timers are cancellable by (guild, user, kind).
type Scheduler struct {
	mu     sync.Mutex
	timers map[timerKey]*time.Timer
	logger *zap.Logger
}

// NewScheduler creates an empty Scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[timerKey]*time.Timer),
		logger: logger.Named("scheduler"),
	}
}

// Schedule arms fn to run after d, replacing any pending timer with the same
// key. A non-positive delay fires immediately on the timer goroutine.
func (s *Scheduler) Schedule(guildID, userID snowflake.ID, kind string, d time.Duration, fn func()) {
	key := timerKey{guildID: guildID, userID: userID, kind: kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, exists := s.timers[key]; exists {
		prev.Stop()
	}

	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})

	s.logger.Debug("Scheduled action",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("userID", uint64(userID)),
		zap.String("kind", kind),
		zap.Duration("delay", d))
}

// Cancel stops the pending timer for the key, reporting whether one existed.
func (s *Scheduler) Cancel(guildID, userID snowflake.ID, kind string) bool {
	key := timerKey{guildID: guildID, userID: userID, kind: kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	timer, exists := s.timers[key]
	if !exists {
		return false
	}
	timer.Stop()
	delete(s.timers, key)
	return true
}

// Stop cancels every pending timer. Used during shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}

// Pending reports how many timers are armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
