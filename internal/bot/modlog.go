package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/wardenbot/warden/internal/engine"
)

// ModLog delivers moderation reports to the log channel with
// create-or-update-by-subject semantics: repeated violations from the same
// user edit the running report instead of flooding the channel. It implements
// engine.ReportSink.
type ModLog struct {
	rest        rest.Rest
	channelID   snowflake.ID
	staffRoleID snowflake.ID
	logger      *zap.Logger

	mu       sync.Mutex
	messages map[snowflake.ID]snowflake.ID // subject user -> report message
}

// NewModLog creates a ModLog sink.
func NewModLog(restClient rest.Rest, channelID, staffRoleID snowflake.ID, logger *zap.Logger) *ModLog {
	return &ModLog{
		rest:        restClient,
		channelID:   channelID,
		staffRoleID: staffRoleID,
		logger:      logger.Named("modlog"),
		messages:    make(map[snowflake.ID]snowflake.ID),
	}
}

// Submit posts or updates the subject's report. Delivery is best-effort: a
// failed update falls back to creating a fresh message, and a failed create
// is logged and dropped.
func (l *ModLog) Submit(_ context.Context, report engine.Report) {
	if l.channelID == 0 {
		return
	}

	embed := l.buildEmbed(report)

	l.mu.Lock()
	messageID, exists := l.messages[report.UserID]
	l.mu.Unlock()

	if exists {
		_, err := l.rest.UpdateMessage(l.channelID, messageID, discord.NewMessageUpdateBuilder().
			SetEmbeds(embed).
			Build())
		if err == nil {
			return
		}
		// The message may have been deleted by a moderator; start over.
		l.logger.Debug("Failed to update report message, creating a new one",
			zap.Uint64("messageID", uint64(messageID)),
			zap.Error(err))
	}

	builder := discord.NewMessageCreateBuilder().SetEmbeds(embed)
	if l.staffRoleID != 0 {
		builder.SetContent(fmt.Sprintf("<@&%d>", l.staffRoleID))
	}

	message, err := l.rest.CreateMessage(l.channelID, builder.Build())
	if err != nil {
		l.logger.Warn("Failed to deliver moderation report",
			zap.Uint64("userID", uint64(report.UserID)),
			zap.Error(err))
		return
	}

	l.mu.Lock()
	l.messages[report.UserID] = message.ID
	l.mu.Unlock()
}

func (l *ModLog) buildEmbed(report engine.Report) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("Moderation report").
		SetDescription(fmt.Sprintf("<@%d> (%s) in <#%d>", report.UserID, report.Username, report.ChannelID)).
		AddField("Violations", strings.Join(report.Reasons, "\n"), false).
		AddField("Message excerpt", report.Excerpt, false).
		AddField("Warnings", fmt.Sprintf("%d", report.Warnings), true).
		AddField("Action", report.Action, true).
		SetColor(0xE74C3C).
		SetTimestamp(time.Now()).
		Build()
}
