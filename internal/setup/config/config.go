// Package config loads the typed application configuration: baked-in
// defaults, an optional TOML file and WARDEN_-prefixed environment overrides,
// in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrTokenMissing     = errors.New("discord token is not configured")
	ErrInvalidThreshold = errors.New("threshold must be positive")
)

// envPrefix is stripped from environment variables before mapping them onto
// config keys. A double underscore separates nesting levels, so
// WARDEN_SPAM__MAX_LINKS maps to spam.max_links.
const envPrefix = "WARDEN_"

// Config is the entire application configuration.
type Config struct {
	Debug        Debug        `koanf:"debug"`
	Redis        Redis        `koanf:"redis"`
	Discord      Discord      `koanf:"discord"`
	Moderation   Moderation   `koanf:"moderation"`
	Spam         Spam         `koanf:"spam"`
	Badwords     Badwords     `koanf:"badwords"`
	Applications Applications `koanf:"applications"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log session directories to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Discord contains the bot token and the guild surface the bot operates on.
type Discord struct {
	// Bot token for authentication.
	Token string `koanf:"token"`
	// Role assigned to muted users. Zero falls back to native timeouts.
	MutedRoleID uint64 `koanf:"muted_role_id"`
	// Restrictive role assigned at the read-only threshold.
	ReadOnlyRoleID uint64 `koanf:"read_only_role_id"`
	// Roles whose members bypass moderation entirely.
	BypassRoleIDs []uint64 `koanf:"bypass_role_ids"`
	// Role mentioned on new moderation reports.
	StaffRoleID uint64 `koanf:"staff_role_id"`
	// Channel receiving moderation reports.
	ModLogChannelID uint64 `koanf:"mod_log_channel_id"`
	// Channel where offending messages are reported but never deleted.
	GeneralChannelID uint64 `koanf:"general_channel_id"`
	// Channel skipped entirely (pasted logs trip the detectors).
	BugReportsChannelID uint64 `koanf:"bug_reports_channel_id"`
	// Channels exempt from moderation.
	ExemptChannelIDs []uint64 `koanf:"exempt_channel_ids"`
	// Categories where moderation applies. Empty means every category.
	EnforcedCategoryIDs []uint64 `koanf:"enforced_category_ids"`
	// Users allowed to mention @everyone/@here.
	AllowedGlobalMentionIDs []uint64 `koanf:"allowed_global_mention_ids"`
	// Invite code fragments that may be posted freely.
	AllowedInvites []string `koanf:"allowed_invites"`
}

// Moderation contains the escalation thresholds. Durations are milliseconds.
type Moderation struct {
	// Warnings that trigger the short mute.
	WarningsBeforeMute int `koanf:"warnings_before_mute"`
	// Short mute duration in milliseconds.
	ShortMuteDuration int `koanf:"short_mute_duration"`
	// Inactivity after which the warning count restarts at 1, in milliseconds.
	WarningReset int `koanf:"warning_reset"`
	// Spam-ledger total that triggers the long mute.
	LongMuteThreshold int64 `koanf:"long_mute_threshold"`
	// Long mute duration in milliseconds.
	LongMuteDuration int `koanf:"long_mute_duration"`
	// Combined-ledger total that triggers the read-only role.
	ReadOnlyThreshold int64 `koanf:"read_only_threshold"`
	// Sweep interval in milliseconds.
	CleanupInterval int `koanf:"cleanup_interval"`
	// Global per-map entry ceiling before oldest-first eviction.
	MapMaxEntries int `koanf:"map_max_entries"`
	// Violation history entries kept per user.
	HistoryMaxPerUser int `koanf:"history_max_per_user"`
	// Violation history retention in milliseconds.
	HistoryRetention int `koanf:"history_retention"`
	// Activity-window idle horizon in milliseconds.
	IdleHorizon int `koanf:"idle_horizon"`
}

// Spam contains the detector thresholds. Durations are milliseconds.
type Spam struct {
	RateWindow       int     `koanf:"rate_window"`
	RateMaxMessages  int     `koanf:"rate_max_messages"`
	DuplicateWindow  int     `koanf:"duplicate_window"`
	DuplicateMax     int     `koanf:"duplicate_max"`
	MaxMentions      int     `koanf:"max_mentions"`
	MaxRoleMentions  int     `koanf:"max_role_mentions"`
	LinkWindow       int     `koanf:"link_window"`
	MaxLinks         int     `koanf:"max_links"`
	MaxEmojis        int     `koanf:"max_emojis"`
	CapsEnabled      bool    `koanf:"caps_enabled"`
	CapsMinLetters   int     `koanf:"caps_min_letters"`
	CapsPercentage   float64 `koanf:"caps_percentage"`
	StretchMinLength int     `koanf:"stretch_min_length"`
	StretchRatio     float64 `koanf:"stretch_ratio"`
}

// Badwords contains the word corpus sources.
type Badwords struct {
	// Structured JSONC word list path.
	WordlistPath string `koanf:"wordlist_path"`
	// Plain one-word-per-line list path.
	PlainListPath string `koanf:"plain_list_path"`
}

// Applications contains the application-intake configuration. Durations are
// milliseconds.
type Applications struct {
	// Channel where applications are submitted.
	ChannelID uint64 `koanf:"channel_id"`
	// Minimum delay between DMs to the same user.
	DMUserDelay int `koanf:"dm_user_delay"`
	// Global DM budget per window.
	DMGlobalMax int `koanf:"dm_global_max"`
	// Global DM window in milliseconds.
	DMGlobalWindow int `koanf:"dm_global_window"`
}

// defaults mirror the long-standing production values.
func defaults() map[string]any {
	return map[string]any{
		"debug.log_level":        "info",
		"debug.max_logs_to_keep": 10,

		"redis.host": "localhost",
		"redis.port": 6379,

		"moderation.warnings_before_mute": 3,
		"moderation.short_mute_duration":  300_000,
		"moderation.warning_reset":        3_600_000,
		"moderation.long_mute_threshold":  int64(10),
		"moderation.long_mute_duration":   86_400_000,
		"moderation.read_only_threshold":  int64(10),
		"moderation.cleanup_interval":     300_000,
		"moderation.map_max_entries":      5000,
		"moderation.history_max_per_user": 50,
		"moderation.history_retention":    21_600_000,
		"moderation.idle_horizon":         60_000,

		"spam.rate_window":        8000,
		"spam.rate_max_messages":  5,
		"spam.duplicate_window":   30_000,
		"spam.duplicate_max":      3,
		"spam.max_mentions":       5,
		"spam.max_role_mentions":  2,
		"spam.link_window":        60_000,
		"spam.max_links":          3,
		"spam.max_emojis":         15,
		"spam.caps_enabled":       false,
		"spam.caps_min_letters":   10,
		"spam.caps_percentage":    0.70,
		"spam.stretch_min_length": 6,
		"spam.stretch_ratio":      0.55,

		"badwords.wordlist_path":   "config/wordlist.jsonc",
		"badwords.plain_list_path": "config/badwords.txt",

		"applications.dm_user_delay":    2000,
		"applications.dm_global_max":    20,
		"applications.dm_global_window": 60_000,
	}
}

// LoadConfig loads configuration from defaults, an optional TOML file at
// configPath and environment overrides, then validates it.
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading config defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", configPath, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("error loading environment overrides: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations that would disable the pipeline outright.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return ErrTokenMissing
	}

	positives := map[string]int64{
		"moderation.warnings_before_mute": int64(c.Moderation.WarningsBeforeMute),
		"moderation.short_mute_duration":  int64(c.Moderation.ShortMuteDuration),
		"moderation.long_mute_threshold":  c.Moderation.LongMuteThreshold,
		"moderation.long_mute_duration":   int64(c.Moderation.LongMuteDuration),
		"moderation.read_only_threshold":  c.Moderation.ReadOnlyThreshold,
		"moderation.cleanup_interval":     int64(c.Moderation.CleanupInterval),
		"moderation.map_max_entries":      int64(c.Moderation.MapMaxEntries),
		"spam.rate_window":                int64(c.Spam.RateWindow),
		"spam.rate_max_messages":          int64(c.Spam.RateMaxMessages),
		"spam.duplicate_window":           int64(c.Spam.DuplicateWindow),
		"spam.duplicate_max":              int64(c.Spam.DuplicateMax),
	}
	for key, value := range positives {
		if value <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidThreshold, key)
		}
	}
	return nil
}

// Millis converts a millisecond config value into a time.Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
