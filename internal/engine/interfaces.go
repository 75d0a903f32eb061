package engine

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Moderator performs the guild-side effects the engine decides on. Every
// implementation is expected to be best-effort: the engine logs failures and
// keeps going, so one failed side effect never blocks another.
type Moderator interface {
	// DeleteMessage removes the offending message.
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID, reason string) error

	// Mute silences the user until the given time. It reports persistent=true
	// when the mute was applied through a dedicated role that must be
	// persisted and restored across restarts, and false when a native
	// self-expiring timeout was used instead.
	Mute(ctx context.Context, guildID, userID snowflake.ID, until time.Time, reason string) (persistent bool, err error)

	// Unmute lifts a previously applied mute.
	Unmute(ctx context.Context, guildID, userID snowflake.ID) error

	// SetReadOnly assigns the restrictive read-only role.
	SetReadOnly(ctx context.Context, guildID, userID snowflake.ID, reason string) error

	// NotifyUser delivers a direct message to the user.
	NotifyUser(ctx context.Context, userID snowflake.ID, content string) error
}

// Report is one moderation event delivered to the log surface.
type Report struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	UserID    snowflake.ID
	Username  string
	Reasons   []string
	Excerpt   string
	Warnings  int
	Action    string
}

// ReportSink delivers moderation reports. Implementations provide
// create-or-update-by-subject semantics so repeated violations from the same
// user collapse into one running report.
type ReportSink interface {
	Submit(ctx context.Context, report Report)
}
