package bot

import (
	"context"
	"sync"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/wardenbot/warden/internal/engine"
	"github.com/wardenbot/warden/internal/setup/config"
)

// MessageHandler routes inbound guild messages: it applies the bypass and
// channel-scoping rules, forwards application submissions to the intake and
// everything else to the moderation engine.
type MessageHandler struct {
	rest   rest.Rest
	engine *engine.Engine
	intake *ApplicationIntake
	logger *zap.Logger

	appsChannelID       snowflake.ID
	bugReportsChannelID snowflake.ID
	generalChannelID    snowflake.ID
	bypassRoles         map[snowflake.ID]struct{}
	exemptChannels      map[snowflake.ID]struct{}
	enforcedCategories  map[snowflake.ID]struct{}

	mu      sync.Mutex
	parents map[snowflake.ID]snowflake.ID // channel -> category, 0 when none
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(
	restClient rest.Rest,
	eng *engine.Engine,
	intake *ApplicationIntake,
	cfg config.Discord,
	appsChannelID uint64,
	logger *zap.Logger,
) *MessageHandler {
	return &MessageHandler{
		rest:                restClient,
		engine:              eng,
		intake:              intake,
		logger:              logger.Named("handler"),
		appsChannelID:       snowflake.ID(appsChannelID),
		bugReportsChannelID: snowflake.ID(cfg.BugReportsChannelID),
		generalChannelID:    snowflake.ID(cfg.GeneralChannelID),
		bypassRoles:         idSet(cfg.BypassRoleIDs),
		exemptChannels:      idSet(cfg.ExemptChannelIDs),
		enforcedCategories:  idSet(cfg.EnforcedCategoryIDs),
		parents:             make(map[snowflake.ID]snowflake.ID),
	}
}

// OnGuildMessageCreate is the gateway entry point for the moderation
// pipeline. It never returns an error; the engine fault-isolates every side
// effect.
func (h *MessageHandler) OnGuildMessageCreate(event *events.GuildMessageCreate) {
	msg := event.Message
	if msg.Author.Bot || msg.WebhookID != nil {
		return
	}

	ctx := context.Background()

	if h.appsChannelID != 0 && msg.ChannelID == h.appsChannelID {
		h.intake.Handle(ctx, event)
		return
	}

	if !h.inScope(msg) {
		return
	}
	if h.hasBypassRole(msg.Member) {
		return
	}

	h.engine.Process(ctx, engine.Message{
		GuildID:          event.GuildID,
		ChannelID:        msg.ChannelID,
		MessageID:        msg.ID,
		AuthorID:         msg.Author.ID,
		Author:           msg.Author.Username,
		Content:          msg.Content,
		UserMentions:     len(msg.Mentions),
		RoleMentions:     len(msg.MentionRoles),
		MentionsEveryone: msg.MentionEveryone,
		KeepMessage:      h.generalChannelID != 0 && msg.ChannelID == h.generalChannelID,
	})
}

// inScope applies the channel-scoping rules: the bug-reports channel is
// skipped entirely (pasted logs trip the detectors), exempt channels are
// skipped, and when enforced categories are configured only channels inside
// them are moderated.
func (h *MessageHandler) inScope(msg discord.Message) bool {
	if h.bugReportsChannelID != 0 && msg.ChannelID == h.bugReportsChannelID {
		return false
	}
	if _, exempt := h.exemptChannels[msg.ChannelID]; exempt {
		return false
	}

	if len(h.enforcedCategories) == 0 {
		return true
	}

	parent := h.channelParent(msg.ChannelID)
	_, enforced := h.enforcedCategories[parent]
	return enforced
}

// channelParent resolves and caches a channel's category. Channels are not
// recategorized often enough to justify invalidation; a restart picks up
// moves.
func (h *MessageHandler) channelParent(channelID snowflake.ID) snowflake.ID {
	h.mu.Lock()
	parent, known := h.parents[channelID]
	h.mu.Unlock()
	if known {
		return parent
	}

	channel, err := h.rest.GetChannel(channelID)
	if err != nil {
		h.logger.Warn("Failed to resolve channel category",
			zap.Uint64("channelID", uint64(channelID)),
			zap.Error(err))
		return 0
	}

	if guildChannel, ok := channel.(discord.GuildChannel); ok {
		if id := guildChannel.ParentID(); id != nil {
			parent = *id
		}
	}

	h.mu.Lock()
	h.parents[channelID] = parent
	h.mu.Unlock()
	return parent
}

func (h *MessageHandler) hasBypassRole(member *discord.Member) bool {
	if member == nil || len(h.bypassRoles) == 0 {
		return false
	}
	for _, roleID := range member.RoleIDs {
		if _, ok := h.bypassRoles[roleID]; ok {
			return true
		}
	}
	return false
}

func idSet(ids []uint64) map[snowflake.ID]struct{} {
	set := make(map[snowflake.ID]struct{}, len(ids))
	for _, id := range ids {
		set[snowflake.ID(id)] = struct{}{}
	}
	return set
}
