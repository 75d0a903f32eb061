package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/wardenbot/warden/internal/setup/config"
)

// Moderator executes the guild-side effects: message deletion, mutes, the
// read-only role and user notifications. It implements engine.Moderator.
type Moderator struct {
	rest      rest.Rest
	cfg       config.Discord
	dmLimiter *DMLimiter
	logger    *zap.Logger
}

// NewModerator creates a Moderator.
func NewModerator(restClient rest.Rest, cfg config.Discord, dmLimiter *DMLimiter, logger *zap.Logger) *Moderator {
	return &Moderator{
		rest:      restClient,
		cfg:       cfg,
		dmLimiter: dmLimiter,
		logger:    logger.Named("moderator"),
	}
}

// DeleteMessage removes the offending message.
func (m *Moderator) DeleteMessage(_ context.Context, channelID, messageID snowflake.ID, reason string) error {
	if err := m.rest.DeleteMessage(channelID, messageID, rest.WithReason(reason)); err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}

// Mute silences the user until the given time. When a muted role is
// configured the role is assigned and the mute reported as persistent;
// otherwise a native timeout is applied, which the platform expires on its
// own.
func (m *Moderator) Mute(_ context.Context, guildID, userID snowflake.ID, until time.Time, reason string) (bool, error) {
	if m.cfg.MutedRoleID != 0 {
		err := m.rest.AddMemberRole(guildID, userID, snowflake.ID(m.cfg.MutedRoleID), rest.WithReason(reason))
		if err != nil {
			return false, fmt.Errorf("failed to assign muted role: %w", err)
		}
		return true, nil
	}

	_, err := m.rest.UpdateMember(guildID, userID, discord.MemberUpdate{
		CommunicationDisabledUntil: json.NewNullablePtr(until),
	}, rest.WithReason(reason))
	if err != nil {
		return false, fmt.Errorf("failed to time out member: %w", err)
	}
	return false, nil
}

// Unmute removes the muted role.
func (m *Moderator) Unmute(_ context.Context, guildID, userID snowflake.ID) error {
	if m.cfg.MutedRoleID == 0 {
		return nil
	}

	err := m.rest.RemoveMemberRole(guildID, userID, snowflake.ID(m.cfg.MutedRoleID), rest.WithReason("Mute expired"))
	if err != nil {
		return fmt.Errorf("failed to remove muted role: %w", err)
	}
	return nil
}

// SetReadOnly assigns the restrictive read-only role.
func (m *Moderator) SetReadOnly(_ context.Context, guildID, userID snowflake.ID, reason string) error {
	if m.cfg.ReadOnlyRoleID == 0 {
		m.logger.Warn("Read-only role not configured, skipping assignment",
			zap.Uint64("userID", uint64(userID)))
		return nil
	}

	err := m.rest.AddMemberRole(guildID, userID, snowflake.ID(m.cfg.ReadOnlyRoleID), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to assign read-only role: %w", err)
	}
	return nil
}

// NotifyUser delivers a direct message, subject to the DM limiter. A dropped
// or failed DM is not an error worth surfacing; users with closed DMs are
// common.
func (m *Moderator) NotifyUser(_ context.Context, userID snowflake.ID, content string) error {
	if !m.dmLimiter.Allow(uint64(userID), time.Now()) {
		m.logger.Debug("DM suppressed by rate limiter", zap.Uint64("userID", uint64(userID)))
		return nil
	}

	channel, err := m.rest.CreateDMChannel(userID)
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}

	_, err = m.rest.CreateMessage(channel.ID(), discord.NewMessageCreateBuilder().
		SetContent(content).
		Build())
	if err != nil {
		return fmt.Errorf("failed to send DM: %w", err)
	}
	return nil
}
