package storage

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// LedgerKind selects which persistent violation counter a call operates on.
type LedgerKind string

const (
	// LedgerCombined counts every violation (badwords and spam) and drives
	// the read-only escalation.
	LedgerCombined LedgerKind = "combined"
	// LedgerSpam counts spam violations only and drives the long mute.
	LedgerSpam LedgerKind = "spam"
)

// LedgerStore persists per-user violation counters in Redis. Counters
// survive restarts, unlike the in-memory warning state.
type LedgerStore struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewLedgerStore creates a LedgerStore.
func NewLedgerStore(client rueidis.Client, logger *zap.Logger) *LedgerStore {
	return &LedgerStore{
		client: client,
		logger: logger.Named("ledger_store"),
	}
}

// Increment adds delta to the counter and returns the new total.
func (s *LedgerStore) Increment(ctx context.Context, kind LedgerKind, guildID, userID snowflake.ID, delta int64) (int64, error) {
	total, err := s.client.Do(ctx, s.client.B().Incrby().
		Key(ledgerKey(kind, guildID, userID)).Increment(delta).Build()).ToInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s ledger: %w", kind, err)
	}

	s.logger.Debug("Incremented violation ledger",
		zap.String("kind", string(kind)),
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("userID", uint64(userID)),
		zap.Int64("total", total))
	return total, nil
}

// Get returns the counter's current value, zero when absent.
func (s *LedgerStore) Get(ctx context.Context, kind LedgerKind, guildID, userID snowflake.ID) (int64, error) {
	total, err := s.client.Do(ctx, s.client.B().Get().
		Key(ledgerKey(kind, guildID, userID)).Build()).ToInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read %s ledger: %w", kind, err)
	}
	return total, nil
}

// Reset deletes the counter.
func (s *LedgerStore) Reset(ctx context.Context, kind LedgerKind, guildID, userID snowflake.ID) error {
	err := s.client.Do(ctx, s.client.B().Del().
		Key(ledgerKey(kind, guildID, userID)).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to reset %s ledger: %w", kind, err)
	}
	return nil
}

func ledgerKey(kind LedgerKind, guildID, userID snowflake.ID) string {
	return fmt.Sprintf("ledger:%s:%d:%d", kind, guildID, userID)
}
