// Package bot wires the moderation engine to the Discord gateway: event
// routing, side-effect execution and report delivery.
package bot

import (
	"context"

	"github.com/disgoorg/disgo"
	disgobot "github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/wardenbot/warden/internal/badwords"
	"github.com/wardenbot/warden/internal/engine"
	"github.com/wardenbot/warden/internal/setup"
	"github.com/wardenbot/warden/internal/setup/config"
	"github.com/wardenbot/warden/internal/spam"
	"github.com/wardenbot/warden/internal/state"
	"github.com/wardenbot/warden/internal/storage"
)

// Bot owns the Discord client and the moderation engine behind it.
type Bot struct {
	client  disgobot.Client
	engine  *engine.Engine
	handler *MessageHandler
	logger  *zap.Logger

	sweeps      conc.WaitGroup
	sweepCancel context.CancelFunc
}

// New assembles the full moderation stack and the Discord client around it.
func New(app *setup.App) (*Bot, error) {
	cfg := app.Config
	logger := app.Logger

	moderationClient, err := app.ModerationClient()
	if err != nil {
		return nil, err
	}

	matcher := badwords.NewMatcher(app.WordCorpus)
	logger.Info("Built badword index", zap.Int("entries", matcher.Size()))

	detector := spam.NewDetector(detectorConfig(cfg))

	dmLimiter := NewDMLimiter(
		config.Millis(cfg.Applications.DMUserDelay),
		cfg.Applications.DMGlobalMax,
		config.Millis(cfg.Applications.DMGlobalWindow),
	)

	b := &Bot{logger: logger}

	client, err := disgo.New(cfg.Discord.Token,
		disgobot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
				gateway.IntentDirectMessages,
			),
		),
		disgobot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageCreate: b.onGuildMessageCreate,
			OnReady:              b.onReady,
		}),
	)
	if err != nil {
		return nil, err
	}
	b.client = client

	moderator := NewModerator(client.Rest(), cfg.Discord, dmLimiter, logger)
	modLog := NewModLog(client.Rest(),
		snowflake.ID(cfg.Discord.ModLogChannelID),
		snowflake.ID(cfg.Discord.StaffRoleID),
		logger)

	b.engine = engine.New(
		engineConfig(cfg),
		matcher,
		detector,
		state.NewActivityStore(cfg.Moderation.MapMaxEntries, config.Millis(cfg.Moderation.IdleHorizon)),
		state.NewHistoryStore(cfg.Moderation.MapMaxEntries, cfg.Moderation.HistoryMaxPerUser,
			config.Millis(cfg.Moderation.HistoryRetention)),
		state.NewWarningStore(cfg.Moderation.MapMaxEntries, config.Millis(cfg.Moderation.WarningReset)),
		app.Mutes,
		app.Ledgers,
		moderator,
		modLog,
		logger,
	)

	intake := NewApplicationIntake(client.Rest(),
		storage.NewTicketStore(moderationClient, logger), logger)

	b.handler = NewMessageHandler(client.Rest(), b.engine, intake,
		cfg.Discord, cfg.Applications.ChannelID, logger)

	return b, nil
}

// Start opens the gateway connection and launches the periodic sweeps.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.client.OpenGateway(ctx); err != nil {
		return err
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	b.sweepCancel = cancel
	b.sweeps.Go(func() {
		b.engine.RunSweeps(sweepCtx)
	})

	b.logger.Info("Bot connected to gateway")
	return nil
}

// Close shuts the bot down: sweeps first, then scheduled actions, then the
// gateway. Persisted mutes survive for the next start to reconcile.
func (b *Bot) Close(ctx context.Context) {
	if b.sweepCancel != nil {
		b.sweepCancel()
		b.sweeps.Wait()
	}
	b.engine.Close()
	b.client.Close(ctx)
	b.logger.Info("Bot shut down")
}

func (b *Bot) onGuildMessageCreate(event *events.GuildMessageCreate) {
	b.handler.OnGuildMessageCreate(event)
}

// onReady reconciles persisted mutes against wall-clock time once the
// gateway session is live.
func (b *Bot) onReady(*events.Ready) {
	if err := b.engine.RestoreMutes(context.Background()); err != nil {
		b.logger.Error("Failed to restore persisted mutes", zap.Error(err))
	}
}

// detectorConfig maps the millisecond-based config onto the detector's
// duration-based thresholds.
func detectorConfig(cfg *config.Config) spam.Config {
	allowed := make([]snowflake.ID, len(cfg.Discord.AllowedGlobalMentionIDs))
	for i, id := range cfg.Discord.AllowedGlobalMentionIDs {
		allowed[i] = snowflake.ID(id)
	}

	return spam.Config{
		RateWindow:            config.Millis(cfg.Spam.RateWindow),
		RateMaxMessages:       cfg.Spam.RateMaxMessages,
		DuplicateWindow:       config.Millis(cfg.Spam.DuplicateWindow),
		DuplicateMax:          cfg.Spam.DuplicateMax,
		MaxMentions:           cfg.Spam.MaxMentions,
		MaxRoleMentions:       cfg.Spam.MaxRoleMentions,
		LinkWindow:            config.Millis(cfg.Spam.LinkWindow),
		MaxLinks:              cfg.Spam.MaxLinks,
		MaxEmojis:             cfg.Spam.MaxEmojis,
		CapsEnabled:           cfg.Spam.CapsEnabled,
		CapsMinLetters:        cfg.Spam.CapsMinLetters,
		CapsPercentage:        cfg.Spam.CapsPercentage,
		StretchMinLength:      cfg.Spam.StretchMinLength,
		StretchRatio:          cfg.Spam.StretchRatio,
		AllowedInvites:        cfg.Discord.AllowedInvites,
		AllowedGlobalMentions: allowed,
	}
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		WarningThreshold:  cfg.Moderation.WarningsBeforeMute,
		ShortMuteDuration: config.Millis(cfg.Moderation.ShortMuteDuration),
		LongMuteThreshold: cfg.Moderation.LongMuteThreshold,
		LongMuteDuration:  config.Millis(cfg.Moderation.LongMuteDuration),
		ReadOnlyThreshold: cfg.Moderation.ReadOnlyThreshold,
		CleanupInterval:   config.Millis(cfg.Moderation.CleanupInterval),
	}
}
