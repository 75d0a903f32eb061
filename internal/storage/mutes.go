// Package storage persists the moderation state that must survive restarts:
// active mutes and the per-user violation ledgers.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// muteHashKey is the single hash holding every active mute, keyed by
// "guildID:userID" fields.
const muteHashKey = "moderation:mutes"

// MuteRecord is one persisted mute. GuildID and UserID live in the hash field
// rather than the serialized value.
type MuteRecord struct {
	GuildID   snowflake.ID `json:"-"`
	UserID    snowflake.ID `json:"-"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Reason    string       `json:"reason"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Remaining returns how long the mute has left at now, or zero if expired.
func (r MuteRecord) Remaining(now time.Time) time.Duration {
	if d := r.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// MuteStore persists mute records in Redis.
type MuteStore struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewMuteStore creates a MuteStore.
func NewMuteStore(client rueidis.Client, logger *zap.Logger) *MuteStore {
	return &MuteStore{
		client: client,
		logger: logger.Named("mute_store"),
	}
}

// Record upserts a mute record.
func (s *MuteStore) Record(ctx context.Context, rec MuteRecord) error {
	value, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize mute record: %w", err)
	}

	err = s.client.Do(ctx, s.client.B().Hset().Key(muteHashKey).
		FieldValue().FieldValue(muteField(rec.GuildID, rec.UserID), string(value)).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to persist mute record: %w", err)
	}

	s.logger.Debug("Persisted mute record",
		zap.Uint64("guildID", uint64(rec.GuildID)),
		zap.Uint64("userID", uint64(rec.UserID)),
		zap.Time("expiresAt", rec.ExpiresAt))
	return nil
}

// Remove deletes a mute record. Removing an absent record is not an error.
func (s *MuteStore) Remove(ctx context.Context, guildID, userID snowflake.ID) error {
	err := s.client.Do(ctx, s.client.B().Hdel().Key(muteHashKey).
		Field(muteField(guildID, userID)).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to remove mute record: %w", err)
	}
	return nil
}

// Get fetches a single mute record, reporting whether one exists.
func (s *MuteStore) Get(ctx context.Context, guildID, userID snowflake.ID) (MuteRecord, bool, error) {
	raw, err := s.client.Do(ctx, s.client.B().Hget().Key(muteHashKey).
		Field(muteField(guildID, userID)).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return MuteRecord{}, false, nil
		}
		return MuteRecord{}, false, fmt.Errorf("failed to fetch mute record: %w", err)
	}

	rec, err := parseMuteRecord(muteField(guildID, userID), raw)
	if err != nil {
		return MuteRecord{}, false, err
	}
	return rec, true, nil
}

// All returns every persisted mute record. Entries that fail to parse are
// logged and skipped so one corrupt record cannot block startup restoration.
func (s *MuteStore) All(ctx context.Context) ([]MuteRecord, error) {
	entries, err := s.client.Do(ctx, s.client.B().Hgetall().Key(muteHashKey).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("failed to load mute records: %w", err)
	}

	records := make([]MuteRecord, 0, len(entries))
	for field, raw := range entries {
		rec, err := parseMuteRecord(field, raw)
		if err != nil {
			s.logger.Warn("Skipping corrupt mute record",
				zap.String("field", field),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func muteField(guildID, userID snowflake.ID) string {
	return fmt.Sprintf("%d:%d", guildID, userID)
}

func parseMuteRecord(field, raw string) (MuteRecord, error) {
	guildStr, userStr, ok := strings.Cut(field, ":")
	if !ok {
		return MuteRecord{}, fmt.Errorf("malformed mute field %q", field)
	}

	guildID, err := snowflake.Parse(guildStr)
	if err != nil {
		return MuteRecord{}, fmt.Errorf("malformed guild ID in mute field %q: %w", field, err)
	}
	userID, err := snowflake.Parse(userStr)
	if err != nil {
		return MuteRecord{}, fmt.Errorf("malformed user ID in mute field %q: %w", field, err)
	}

	var rec MuteRecord
	if err := sonic.Unmarshal([]byte(raw), &rec); err != nil {
		return MuteRecord{}, fmt.Errorf("failed to parse mute record %q: %w", field, err)
	}
	rec.GuildID = guildID
	rec.UserID = userID
	return rec, nil
}
