// Package engine turns detected violations into moderation actions. It owns
// the per-user state stores, the persisted ledgers and the scheduled actions
// (mute expiry, ledger reset), and drives the warn → short mute → long mute /
// read-only escalation.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/wardenbot/warden/internal/badwords"
	"github.com/wardenbot/warden/internal/spam"
	"github.com/wardenbot/warden/internal/state"
	"github.com/wardenbot/warden/internal/storage"
)

// excerptLimit caps how much offending content is kept in history entries
// and reports.
const excerptLimit = 100

// Config carries the escalation thresholds and housekeeping intervals.
type Config struct {
	// WarningThreshold is the warning count that triggers the short mute.
	WarningThreshold int
	// ShortMuteDuration is how long the warning-driven mute lasts.
	ShortMuteDuration time.Duration
	// LongMuteThreshold is the persisted spam-ledger total that triggers the
	// long mute.
	LongMuteThreshold int64
	// LongMuteDuration is how long the ledger-driven mute lasts.
	LongMuteDuration time.Duration
	// ReadOnlyThreshold is the combined-ledger total that triggers the
	// read-only role.
	ReadOnlyThreshold int64
	// CleanupInterval is how often the idle and retention sweeps run.
	CleanupInterval time.Duration
}

// Message is the engine-facing view of an inbound chat message, after the
// bot layer has applied bypass and channel-exemption checks.
type Message struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	MessageID snowflake.ID
	AuthorID  snowflake.ID
	Author    string
	Content   string

	UserMentions     int
	RoleMentions     int
	MentionsEveryone bool

	// KeepMessage leaves the offending message in place. Violations are
	// still recorded and reported.
	KeepMessage bool
}

type mutedKey struct {
	guildID snowflake.ID
	userID  snowflake.ID
}

// Engine is the escalation engine. One instance serves every guild.
type Engine struct {
	cfg      Config
	matcher  *badwords.Matcher
	detector *spam.Detector

	activity *state.ActivityStore
	history  *state.HistoryStore
	warnings *state.WarningStore

	mutes   *storage.MuteStore
	ledgers *storage.LedgerStore

	mod   Moderator
	sink  ReportSink
	sched *Scheduler

	mu    sync.Mutex
	muted map[mutedKey]struct{}

	now    func() time.Time
	logger *zap.Logger
}

// New creates an Engine.
func New(
	cfg Config,
	matcher *badwords.Matcher,
	detector *spam.Detector,
	activity *state.ActivityStore,
	history *state.HistoryStore,
	warnings *state.WarningStore,
	mutes *storage.MuteStore,
	ledgers *storage.LedgerStore,
	mod Moderator,
	sink ReportSink,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		matcher:  matcher,
		detector: detector,
		activity: activity,
		history:  history,
		warnings: warnings,
		mutes:    mutes,
		ledgers:  ledgers,
		mod:      mod,
		sink:     sink,
		sched:    NewScheduler(logger),
		muted:    make(map[mutedKey]struct{}),
		now:      time.Now,
		logger:   logger.Named("engine"),
	}
}

// Process runs the full moderation pipeline for one message. It never
// returns an error: every side effect is individually fault-isolated and
// failures are logged, so one broken call cannot block violation recording.
func (e *Engine) Process(ctx context.Context, msg Message) {
	now := e.now()

	var reasons []string
	var spamCount int64

	if terms := e.matcher.Find(msg.Content); len(terms) > 0 {
		reasons = append(reasons, "Inappropriate language: "+strings.Join(terms, ", "))
	}

	e.activity.With(uint64(msg.AuthorID), now, func(w *state.ActivityWindow) {
		spamReasons := e.detector.Evaluate(w, spam.Message{
			AuthorID:         msg.AuthorID,
			Content:          msg.Content,
			UserMentions:     msg.UserMentions,
			RoleMentions:     msg.RoleMentions,
			MentionsEveryone: msg.MentionsEveryone,
		}, now)
		spamCount = int64(len(spamReasons))
		reasons = append(reasons, spamReasons...)
	})

	if len(reasons) == 0 {
		return
	}

	excerpt := truncate(msg.Content, excerptLimit)
	e.logger.Info("Message violated moderation rules",
		zap.Uint64("guildID", uint64(msg.GuildID)),
		zap.Uint64("userID", uint64(msg.AuthorID)),
		zap.Strings("reasons", reasons))

	if !msg.KeepMessage {
		if err := e.mod.DeleteMessage(ctx, msg.ChannelID, msg.MessageID, strings.Join(reasons, "; ")); err != nil {
			e.logger.Warn("Failed to delete offending message",
				zap.Uint64("messageID", uint64(msg.MessageID)),
				zap.Error(err))
		}
	}

	for _, reason := range reasons {
		e.history.Record(uint64(msg.AuthorID), state.Violation{
			Category: reason,
			Excerpt:  excerpt,
			At:       now,
		})
	}

	warningCount := e.warnings.Add(uint64(msg.AuthorID), now)

	combinedTotal, err := e.ledgers.Increment(ctx, storage.LedgerCombined, msg.GuildID, msg.AuthorID, int64(len(reasons)))
	if err != nil {
		e.logger.Warn("Failed to update combined ledger", zap.Error(err))
	}

	var spamTotal int64
	if spamCount > 0 {
		spamTotal, err = e.ledgers.Increment(ctx, storage.LedgerSpam, msg.GuildID, msg.AuthorID, spamCount)
		if err != nil {
			e.logger.Warn("Failed to update spam ledger", zap.Error(err))
		}
	}

	action := "warned"
	switch {
	case warningCount >= e.cfg.WarningThreshold:
		action = "muted"
	case spamTotal >= e.cfg.LongMuteThreshold:
		action = "long mute"
	}

	e.sink.Submit(ctx, Report{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		UserID:    msg.AuthorID,
		Username:  msg.Author,
		Reasons:   reasons,
		Excerpt:   excerpt,
		Warnings:  warningCount,
		Action:    action,
	})

	if warningCount >= e.cfg.WarningThreshold {
		e.applyMute(ctx, msg.GuildID, msg.AuthorID, e.cfg.ShortMuteDuration,
			fmt.Sprintf("Reached %d warnings", warningCount))
		e.warnings.Clear(uint64(msg.AuthorID))
	}

	if spamTotal >= e.cfg.LongMuteThreshold && !e.IsMuted(msg.GuildID, msg.AuthorID) {
		e.applyLongMute(ctx, msg.GuildID, msg.AuthorID, spamTotal)
	}

	if combinedTotal >= e.cfg.ReadOnlyThreshold {
		if err := e.mod.SetReadOnly(ctx, msg.GuildID, msg.AuthorID,
			fmt.Sprintf("Reached %d recorded violations", combinedTotal)); err != nil {
			e.logger.Warn("Failed to assign read-only role",
				zap.Uint64("userID", uint64(msg.AuthorID)),
				zap.Error(err))
		}
	}
}

// applyMute mutes the user for the duration and, when the mute is backed by
// a persistent role, records it for restart restoration.
func (e *Engine) applyMute(ctx context.Context, guildID, userID snowflake.ID, duration time.Duration, reason string) {
	now := e.now()
	until := now.Add(duration)

	persistent, err := e.mod.Mute(ctx, guildID, userID, until, reason)
	if err != nil {
		e.logger.Warn("Failed to mute user",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))
		return
	}

	e.setMuted(guildID, userID, true)

	if persistent {
		if err := e.mutes.Record(ctx, storage.MuteRecord{
			GuildID:   guildID,
			UserID:    userID,
			ExpiresAt: until,
			Reason:    reason,
			CreatedAt: now,
		}); err != nil {
			e.logger.Warn("Failed to persist mute", zap.Error(err))
		}
	}

	e.sched.Schedule(guildID, userID, timerUnmute, duration, func() {
		e.liftMute(context.Background(), guildID, userID, persistent)
	})

	e.logger.Info("Muted user",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("userID", uint64(userID)),
		zap.Duration("duration", duration),
		zap.Bool("persistent", persistent),
		zap.String("reason", reason))
}

// applyLongMute applies the ledger-driven long mute, notifies the user and
// schedules the ledger reset and history clear for when it expires.
func (e *Engine) applyLongMute(ctx context.Context, guildID, userID snowflake.ID, total int64) {
	reason := fmt.Sprintf("Accumulated %d spam violations", total)
	e.applyMute(ctx, guildID, userID, e.cfg.LongMuteDuration, reason)

	if err := e.mod.NotifyUser(ctx, userID, fmt.Sprintf(
		"You have been muted for %s due to repeated spam violations. Your record resets when the mute expires.",
		e.cfg.LongMuteDuration)); err != nil {
		e.logger.Debug("Failed to notify user of long mute",
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))
	}

	e.sched.Schedule(guildID, userID, timerLedgerReset, e.cfg.LongMuteDuration, func() {
		e.resetRecord(context.Background(), guildID, userID)
	})
}

// liftMute removes the mute effect and its persisted record.
func (e *Engine) liftMute(ctx context.Context, guildID, userID snowflake.ID, persistent bool) {
	if persistent {
		if err := e.mod.Unmute(ctx, guildID, userID); err != nil {
			e.logger.Warn("Failed to unmute user",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Uint64("userID", uint64(userID)),
				zap.Error(err))
		}
		if err := e.mutes.Remove(ctx, guildID, userID); err != nil {
			e.logger.Warn("Failed to remove persisted mute", zap.Error(err))
		}
	}

	e.setMuted(guildID, userID, false)
	e.logger.Info("Mute expired",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("userID", uint64(userID)))
}

// resetRecord clears the user's spam ledger and violation history after a
// completed long mute, giving them a clean slate.
func (e *Engine) resetRecord(ctx context.Context, guildID, userID snowflake.ID) {
	if err := e.ledgers.Reset(ctx, storage.LedgerSpam, guildID, userID); err != nil {
		e.logger.Warn("Failed to reset spam ledger", zap.Error(err))
	}
	e.history.Clear(uint64(userID))
	e.warnings.Clear(uint64(userID))
}

// RestoreMutes reconciles persisted mutes against wall-clock time at
// startup: expired records are resolved immediately, future ones are
// rescheduled with their remaining duration.
func (e *Engine) RestoreMutes(ctx context.Context) error {
	records, err := e.mutes.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore mutes: %w", err)
	}

	now := e.now()
	restored, resolved := 0, 0
	for _, rec := range records {
		remaining := rec.Remaining(now)
		if remaining == 0 {
			e.liftMute(ctx, rec.GuildID, rec.UserID, true)
			resolved++
			continue
		}

		e.setMuted(rec.GuildID, rec.UserID, true)
		guildID, userID := rec.GuildID, rec.UserID
		e.sched.Schedule(guildID, userID, timerUnmute, remaining, func() {
			e.liftMute(context.Background(), guildID, userID, true)
		})
		restored++
	}

	e.logger.Info("Reconciled persisted mutes",
		zap.Int("restored", restored),
		zap.Int("resolvedExpired", resolved))
	return nil
}

// Unmute lifts a user's mute early, cancelling the pending expiry.
func (e *Engine) Unmute(ctx context.Context, guildID, userID snowflake.ID) {
	e.sched.Cancel(guildID, userID, timerUnmute)
	e.liftMute(ctx, guildID, userID, true)
}

// IsMuted reports whether the engine currently considers the user muted.
func (e *Engine) IsMuted(guildID, userID snowflake.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.muted[mutedKey{guildID: guildID, userID: userID}]
	return ok
}

func (e *Engine) setMuted(guildID, userID snowflake.ID, muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := mutedKey{guildID: guildID, userID: userID}
	if muted {
		e.muted[key] = struct{}{}
	} else {
		delete(e.muted, key)
	}
}

// RunSweeps blocks running the periodic idle and retention sweeps until the
// context is cancelled.
func (e *Engine) RunSweeps(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := e.now()
			idle := e.activity.Sweep(now)
			stale := e.history.Sweep(now)
			if idle > 0 || stale > 0 {
				e.logger.Debug("Swept expired state",
					zap.Int("idleWindows", idle),
					zap.Int("staleRecords", stale))
			}
		}
	}
}

// Close cancels every scheduled action. Persisted mutes survive for the next
// start to reconcile.
func (e *Engine) Close() {
	e.sched.Stop()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
