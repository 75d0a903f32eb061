// Package setup bootstraps the application dependencies in order: config,
// logging, Redis, persistence stores and the word corpus.
package setup

import (
	"os"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/wardenbot/warden/internal/redis"
	"github.com/wardenbot/warden/internal/setup/config"
	"github.com/wardenbot/warden/internal/storage"
)

// configFileEnv optionally points at a TOML config file. Everything works
// from defaults and environment overrides without one.
const configFileEnv = "WARDEN_CONFIG_FILE"

// App bundles the core dependencies every part of the application needs.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	RedisManager *redis.Manager
	Mutes        *storage.MuteStore
	Ledgers      *storage.LedgerStore
	WordCorpus   []string
}

// InitializeApp bootstraps all application dependencies in the correct
// order, ensuring each component has its requirements available.
func InitializeApp(logDir string) (*App, error) {
	cfg, err := config.LoadConfig(os.Getenv(configFileEnv))
	if err != nil {
		return nil, err
	}

	// Logging comes up next so every later setup issue is captured.
	logger, err := SetupLogging(logDir, cfg.Debug.LogLevel, cfg.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	redisManager := redis.NewManager(&cfg.Redis, logger)

	moderationClient, err := redisManager.GetClient(redis.ModerationDBIndex)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:       cfg,
		Logger:       logger,
		RedisManager: redisManager,
		Mutes:        storage.NewMuteStore(moderationClient, logger),
		Ledgers:      storage.NewLedgerStore(moderationClient, logger),
		WordCorpus:   config.LoadWordCorpus(cfg.Badwords, logger),
	}
	return app, nil
}

// ModerationClient exposes the raw moderation-DB client for components that
// need it directly.
func (a *App) ModerationClient() (rueidis.Client, error) {
	return a.RedisManager.GetClient(redis.ModerationDBIndex)
}

// CleanupApp tears down the application in reverse initialization order.
func (a *App) CleanupApp() {
	a.RedisManager.Close()
	_ = a.Logger.Sync()
}
