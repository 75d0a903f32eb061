package spam_test

import (
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"

	"github.com/wardenbot/warden/internal/spam"
	"github.com/wardenbot/warden/internal/state"
)

func testConfig() spam.Config {
	return spam.Config{
		RateWindow:            8 * time.Second,
		RateMaxMessages:       5,
		DuplicateWindow:       30 * time.Second,
		DuplicateMax:          3,
		MaxMentions:           5,
		MaxRoleMentions:       2,
		LinkWindow:            time.Minute,
		MaxLinks:              3,
		MaxEmojis:             15,
		CapsMinLetters:        10,
		CapsPercentage:        0.70,
		StretchMinLength:      6,
		StretchRatio:          0.55,
		AllowedInvites:        []string{"discord.gg/ourserver"},
		AllowedGlobalMentions: []snowflake.ID{42},
	}
}

func TestRateLimitWindow(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())
	w := &state.ActivityWindow{}
	now := time.Now()

	for i := range 5 {
		triggered, _ := d.CheckRateLimit(w, now.Add(time.Duration(i)*time.Second))
		assert.False(t, triggered, "message %d should pass", i+1)
	}

	triggered, reason := d.CheckRateLimit(w, now.Add(5*time.Second))
	assert.True(t, triggered, "sixth message inside the window should trigger")
	assert.Equal(t, "Rate limit exceeded (too many messages)", reason)
}

func TestRateLimitSlidesForward(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())
	w := &state.ActivityWindow{}
	now := time.Now()

	// Messages spaced wider than the window never accumulate.
	for i := range 10 {
		triggered, _ := d.CheckRateLimit(w, now.Add(time.Duration(i)*9*time.Second))
		assert.False(t, triggered)
	}
}

func TestDuplicateDetection(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())
	w := &state.ActivityWindow{}
	now := time.Now()

	triggered, _ := d.CheckDuplicate(w, "buy my stuff", now)
	assert.False(t, triggered)
	triggered, _ = d.CheckDuplicate(w, "buy my stuff", now.Add(time.Second))
	assert.False(t, triggered)

	triggered, reason := d.CheckDuplicate(w, "buy my stuff", now.Add(2*time.Second))
	assert.True(t, triggered, "third identical message should trigger")
	assert.Equal(t, "Duplicate message spam", reason)
}

func TestDuplicateSeesThroughObfuscation(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())
	w := &state.ActivityWindow{}
	now := time.Now()

	// Leetspeak and symbol noise fold to the same fingerprint.
	d.CheckDuplicate(w, "free nitro", now)
	d.CheckDuplicate(w, "FR33 N1TRO!!!", now.Add(time.Second))
	triggered, _ := d.CheckDuplicate(w, "fr*ee n*itro", now.Add(2*time.Second))
	assert.True(t, triggered)
}

func TestDuplicateWindowExpiry(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())
	w := &state.ActivityWindow{}
	now := time.Now()

	d.CheckDuplicate(w, "hello", now)
	d.CheckDuplicate(w, "hello", now.Add(time.Second))

	// The first two fall out of the window before the third arrives.
	triggered, _ := d.CheckDuplicate(w, "hello", now.Add(time.Minute))
	assert.False(t, triggered)
}

func TestMentionChecks(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())

	triggered, reason := d.CheckMentions(spam.Message{AuthorID: 1, MentionsEveryone: true})
	assert.True(t, triggered)
	assert.Equal(t, "Mention spam: unauthorized @everyone/@here", reason)

	triggered, _ = d.CheckMentions(spam.Message{AuthorID: 42, MentionsEveryone: true})
	assert.False(t, triggered, "allow-listed user may mention everyone")

	triggered, _ = d.CheckMentions(spam.Message{AuthorID: 1, UserMentions: 6})
	assert.True(t, triggered)

	triggered, _ = d.CheckMentions(spam.Message{AuthorID: 1, RoleMentions: 3})
	assert.True(t, triggered)

	// User and role mentions count against the cap together.
	triggered, reason = d.CheckMentions(spam.Message{AuthorID: 1, UserMentions: 4, RoleMentions: 2})
	assert.True(t, triggered)
	assert.Equal(t, "Mention spam: too many user/role mentions (6)", reason)

	triggered, _ = d.CheckMentions(spam.Message{AuthorID: 1, UserMentions: 3, RoleMentions: 2})
	assert.False(t, triggered, "mentions at the cap should pass")
}

func TestLinkSpam(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())
	w := &state.ActivityWindow{}
	now := time.Now()

	for i := range 3 {
		triggered, _ := d.CheckLinks(w, "check https://example.com/page", now.Add(time.Duration(i)*time.Second))
		assert.False(t, triggered)
	}

	triggered, reason := d.CheckLinks(w, "also https://example.org", now.Add(3*time.Second))
	assert.True(t, triggered, "fourth link inside the window should trigger")
	assert.Equal(t, "Link spam (too many links)", reason)
}

func TestLinkSpamIgnoresGifs(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())
	w := &state.ActivityWindow{}
	now := time.Now()

	gifs := []string{
		"https://tenor.com/view/funny-cat-123",
		"https://media.tenor.com/abc/cat.gif",
		"https://c.tenor.com/xyz/view",
		"https://giphy.com/gifs/xyz",
		"https://media0.giphy.com/media/abc/giphy.webp",
		"https://cdn.example.com/reaction.gif",
	}
	for i, link := range gifs {
		triggered, _ := d.CheckLinks(w, link, now.Add(time.Duration(i)*time.Second))
		assert.False(t, triggered, "gif link %q should not count", link)
	}
	assert.Equal(t, 0, w.LinkCount)
}

func TestLinkWindowResets(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())
	w := &state.ActivityWindow{LinkWindowStart: time.Now()}
	now := time.Now()

	for i := range 3 {
		d.CheckLinks(w, "https://example.com", now.Add(time.Duration(i)*time.Second))
	}

	// A fresh fixed window opens after expiry, so the count starts over.
	triggered, _ := d.CheckLinks(w, "https://example.com", now.Add(2*time.Minute))
	assert.False(t, triggered)
	assert.Equal(t, 1, w.LinkCount)
}

func TestInviteDetection(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())

	triggered, reason := d.CheckInvites("join discord.gg/totallylegit now")
	assert.True(t, triggered)
	assert.Contains(t, reason, "Unauthorized Discord invite")
	assert.Contains(t, reason, "discord.gg/totallylegit")

	triggered, _ = d.CheckInvites("our server: discord.gg/ourserver")
	assert.False(t, triggered, "allow-listed invite should pass")

	triggered, _ = d.CheckInvites("https://discordapp.com/invite/sketchy")
	assert.True(t, triggered)

	triggered, _ = d.CheckInvites("no invites here")
	assert.False(t, triggered)
}

func TestEmojiSpam(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())

	triggered, _ := d.CheckEmojis(strings.Repeat("\U0001F600", 15))
	assert.False(t, triggered, "emoji count at the cap should pass")

	triggered, reason := d.CheckEmojis(strings.Repeat("\U0001F600", 16))
	assert.True(t, triggered)
	assert.Equal(t, "Emoji spam (excessive emojis)", reason)

	// Custom emoji tags count alongside unicode emojis.
	mixed := strings.Repeat("<:pog:123456789012345678>", 10) + strings.Repeat("❤", 6)
	triggered, _ = d.CheckEmojis(mixed)
	assert.True(t, triggered)
}

func TestCapsSpamGatedByConfig(t *testing.T) {
	t.Parallel()

	shouting := "STOP SHOUTING IN THE CHAT PLEASE"

	d := spam.NewDetector(testConfig())
	triggered, _ := d.CheckCaps(shouting)
	assert.False(t, triggered, "caps check is off unless enabled")

	cfg := testConfig()
	cfg.CapsEnabled = true
	d = spam.NewDetector(cfg)

	triggered, reason := d.CheckCaps(shouting)
	assert.True(t, triggered)
	assert.Equal(t, "Caps spam (excessive capitals)", reason)

	triggered, _ = d.CheckCaps("OK")
	assert.False(t, triggered, "too few letters to judge")

	triggered, _ = d.CheckCaps("this is a normal sentence with One Capital")
	assert.False(t, triggered)
}

func TestStretchedText(t *testing.T) {
	t.Parallel()

	d := spam.NewDetector(testConfig())

	triggered, reason := d.CheckStretched("aaaaaaaaaaaaaaaaaaaa")
	assert.True(t, triggered)
	assert.Equal(t, "Stretched characters/letters", reason)

	triggered, _ = d.CheckStretched("hello there friend")
	assert.False(t, triggered)

	triggered, _ = d.CheckStretched("hiiii")
	assert.False(t, triggered, "short messages are never judged")
}

func TestEvaluateCollectsAllSignals(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateMaxMessages = 0
	d := spam.NewDetector(cfg)
	store := state.NewActivityStore(100, time.Minute)
	now := time.Now()

	msg := spam.Message{
		AuthorID:         1,
		Content:          "discord.gg/sketchy aaaaaaaaaaaaaaaaaaaa",
		MentionsEveryone: true,
	}

	var reasons []string
	store.With(1, now, func(w *state.ActivityWindow) {
		reasons = d.Evaluate(w, msg, now)
	})

	assert.Contains(t, reasons, "Rate limit exceeded (too many messages)")
	assert.Contains(t, reasons, "Mention spam: unauthorized @everyone/@here")
	assert.Contains(t, reasons, "Stretched characters/letters")
	assert.True(t, len(reasons) >= 4, "invite signal should be collected too: %v", reasons)
}
