package bot

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/wardenbot/warden/internal/storage"
)

var (
	// snowflakePattern is the strict format for externally supplied IDs.
	// Anything else is refused outright rather than parsed leniently.
	snowflakePattern = regexp.MustCompile(`^[0-9]{17,20}$`)

	linkPattern = regexp.MustCompile(`(?i)https?://\S+`)
)

// TicketCreator opens application tickets. The ticket lifecycle itself lives
// outside this bot; the intake only validates and hands off. CreateTicket
// returns storage.ErrDuplicateTicket when the user already has a ticket open.
type TicketCreator interface {
	HasOpenTicket(ctx context.Context, userID snowflake.ID) (bool, error)
	CreateTicket(ctx context.Context, userID snowflake.ID, submission string) error
}

// ApplicationIntake validates submissions in the applications channel and
// opens tickets for them. A per-user in-progress marker guards against two
// rapid messages from the same user racing the duplicate-ticket check.
type ApplicationIntake struct {
	rest    rest.Rest
	tickets TicketCreator
	logger  *zap.Logger

	mu         sync.Mutex
	inProgress map[snowflake.ID]struct{}
}

// NewApplicationIntake creates an ApplicationIntake.
func NewApplicationIntake(restClient rest.Rest, tickets TicketCreator, logger *zap.Logger) *ApplicationIntake {
	return &ApplicationIntake{
		rest:       restClient,
		tickets:    tickets,
		logger:     logger.Named("applications"),
		inProgress: make(map[snowflake.ID]struct{}),
	}
}

// Handle processes one message in the applications channel.
func (a *ApplicationIntake) Handle(ctx context.Context, event *events.GuildMessageCreate) {
	msg := event.Message
	userID := msg.Author.ID

	// The applicant ID ends up in the external ticket payload, so it gets
	// the strict format check before any processing.
	if !ValidSnowflake(userID.String()) {
		a.logger.Warn("Refusing submission with malformed user ID",
			zap.String("userID", userID.String()))
		return
	}

	// Validation happens before the marker so a refused submission never
	// blocks the user's next attempt.
	if !ValidSubmission(msg) {
		a.reply(msg.ChannelID, msg.ID,
			"Your application needs an attachment or a link to your work. Please resubmit.")
		return
	}

	if !a.acquire(userID) {
		a.logger.Debug("Submission ignored, another is already in flight",
			zap.Uint64("userID", uint64(userID)))
		return
	}
	defer a.release(userID)

	// The duplicate check runs under the marker so two rapid submissions
	// cannot both pass it.
	open, err := a.tickets.HasOpenTicket(ctx, userID)
	if err != nil {
		a.logger.Error("Failed to check for open ticket",
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))
		return
	}
	if open {
		a.reply(msg.ChannelID, msg.ID,
			"You already have an open application. Please wait for it to be reviewed.")
		return
	}

	submission := msg.Content
	if len(msg.Attachments) > 0 {
		submission = msg.Attachments[0].URL
	}

	if err := a.tickets.CreateTicket(ctx, userID, submission); err != nil {
		if errors.Is(err, storage.ErrDuplicateTicket) {
			a.reply(msg.ChannelID, msg.ID,
				"You already have an open application. Please wait for it to be reviewed.")
			return
		}
		a.logger.Error("Failed to create application ticket",
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))
		return
	}

	a.reply(msg.ChannelID, msg.ID, "Thanks! Your application has been received.")
	a.logger.Info("Opened application ticket", zap.Uint64("userID", uint64(userID)))
}

// ValidSubmission reports whether the message carries reviewable material:
// at least one attachment or an http(s) link.
func ValidSubmission(msg discord.Message) bool {
	if len(msg.Attachments) > 0 {
		return true
	}
	return linkPattern.MatchString(msg.Content)
}

// ValidSnowflake reports whether an externally supplied ID has the strict
// snowflake shape. Callers refuse anything else instead of parsing leniently.
func ValidSnowflake(s string) bool {
	return snowflakePattern.MatchString(s)
}

func (a *ApplicationIntake) acquire(userID snowflake.ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inProgress[userID]; busy {
		return false
	}
	a.inProgress[userID] = struct{}{}
	return true
}

func (a *ApplicationIntake) release(userID snowflake.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inProgress, userID)
}

func (a *ApplicationIntake) reply(channelID, messageID snowflake.ID, content string) {
	_, err := a.rest.CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetContent(content).
		SetMessageReferenceByID(messageID).
		Build())
	if err != nil {
		a.logger.Warn("Failed to reply in applications channel", zap.Error(err))
	}
}
