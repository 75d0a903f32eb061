package bot_test

import (
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/stretchr/testify/assert"

	"github.com/wardenbot/warden/internal/bot"
)

func TestDMLimiterPerUserDelay(t *testing.T) {
	t.Parallel()

	limiter := bot.NewDMLimiter(2*time.Second, 100, time.Minute)
	now := time.Now()

	assert.True(t, limiter.Allow(1, now))
	assert.False(t, limiter.Allow(1, now.Add(time.Second)), "same user inside the delay")
	assert.True(t, limiter.Allow(2, now.Add(time.Second)), "other users are unaffected")
	assert.True(t, limiter.Allow(1, now.Add(3*time.Second)))
}

func TestDMLimiterGlobalWindow(t *testing.T) {
	t.Parallel()

	limiter := bot.NewDMLimiter(0, 3, time.Minute)
	now := time.Now()

	for i := range 3 {
		assert.True(t, limiter.Allow(uint64(i), now))
	}
	assert.False(t, limiter.Allow(99, now), "global budget exhausted")

	// A fresh window restores the budget.
	assert.True(t, limiter.Allow(99, now.Add(2*time.Minute)))
}

func TestValidSubmission(t *testing.T) {
	t.Parallel()

	assert.True(t, bot.ValidSubmission(discord.Message{
		Attachments: []discord.Attachment{{}},
	}), "attachment qualifies")

	assert.True(t, bot.ValidSubmission(discord.Message{
		Content: "here is my portfolio https://example.com/work",
	}), "link qualifies")

	assert.False(t, bot.ValidSubmission(discord.Message{
		Content: "i would like to join please",
	}), "bare text does not qualify")

	assert.False(t, bot.ValidSubmission(discord.Message{
		Content: "see example.com",
	}), "scheme-less text is not a link")
}

func TestValidSnowflake(t *testing.T) {
	t.Parallel()

	assert.True(t, bot.ValidSnowflake("123456789012345678"))
	assert.True(t, bot.ValidSnowflake("12345678901234567"))
	assert.False(t, bot.ValidSnowflake("1234567890123456"), "too short")
	assert.False(t, bot.ValidSnowflake("123456789012345678901"), "too long")
	assert.False(t, bot.ValidSnowflake("12345678901234567x"), "non-digit")
	assert.False(t, bot.ValidSnowflake(""))
}
