// Package spam implements the per-message spam signal detectors. Each check
// is independent and every triggered signal is collected, so a single message
// can accumulate multiple violations in one pass.
package spam

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/disgoorg/snowflake/v2"

	"github.com/wardenbot/warden/internal/normalize"
	"github.com/wardenbot/warden/internal/state"
)

var (
	urlPattern         = regexp.MustCompile(`https?://\S+`)
	invitePattern      = regexp.MustCompile(`(?i)(?:discord\.(?:gg|io|me|li)|discordapp\.com/invite)/[a-zA-Z0-9-]+`)
	customEmojiPattern = regexp.MustCompile(`<a?:\w+:\d+>`)
)

// gifHosts are the link hosts exempt from link-rate counting. GIF embeds are
// ordinary chat, not promotion.
var gifHosts = map[string]struct{}{
	"tenor.com":       {},
	"media.tenor.com": {},
	"giphy.com":       {},
	"media.giphy.com": {},
}

// Config carries the detector thresholds. Zero values disable nothing; the
// caller is expected to populate every field from configuration.
type Config struct {
	RateWindow      time.Duration
	RateMaxMessages int

	DuplicateWindow time.Duration
	DuplicateMax    int

	MaxMentions     int
	MaxRoleMentions int

	LinkWindow time.Duration
	MaxLinks   int

	MaxEmojis int

	CapsEnabled    bool
	CapsMinLetters int
	CapsPercentage float64

	StretchMinLength int
	StretchRatio     float64

	// AllowedInvites are invite code fragments that may be posted freely.
	AllowedInvites []string
	// AllowedGlobalMentions are user IDs permitted to use @everyone/@here.
	AllowedGlobalMentions []snowflake.ID
}

// Message is the detector-facing view of an incoming chat message.
type Message struct {
	AuthorID         snowflake.ID
	Content          string
	UserMentions     int
	RoleMentions     int
	MentionsEveryone bool
}

// Detector evaluates messages against every spam signal.
type Detector struct {
	cfg            Config
	allowedGlobal  map[snowflake.ID]struct{}
	allowedInvites []string
}

// NewDetector builds a Detector from config.
func NewDetector(cfg Config) *Detector {
	allowed := make(map[snowflake.ID]struct{}, len(cfg.AllowedGlobalMentions))
	for _, id := range cfg.AllowedGlobalMentions {
		allowed[id] = struct{}{}
	}

	invites := make([]string, 0, len(cfg.AllowedInvites))
	for _, inv := range cfg.AllowedInvites {
		if inv = strings.ToLower(strings.TrimSpace(inv)); inv != "" {
			invites = append(invites, inv)
		}
	}

	return &Detector{
		cfg:            cfg,
		allowedGlobal:  allowed,
		allowedInvites: invites,
	}
}

// Evaluate runs every detector against the message and returns the reasons of
// all triggered signals. The window checks mutate w (recording the message in
// the sliding windows), so callers must hold the window via its store.
func (d *Detector) Evaluate(w *state.ActivityWindow, msg Message, now time.Time) []string {
	var reasons []string
	collect := func(triggered bool, reason string) {
		if triggered {
			reasons = append(reasons, reason)
		}
	}

	collect(d.CheckRateLimit(w, now))
	collect(d.CheckDuplicate(w, msg.Content, now))
	collect(d.CheckMentions(msg))
	collect(d.CheckLinks(w, msg.Content, now))
	collect(d.CheckInvites(msg.Content))
	collect(d.CheckEmojis(msg.Content))
	collect(d.CheckCaps(msg.Content))
	collect(d.CheckStretched(msg.Content))
	return reasons
}

// CheckRateLimit records the message timestamp and triggers once the sliding
// window holds more than the allowed count.
func (d *Detector) CheckRateLimit(w *state.ActivityWindow, now time.Time) (triggered bool, reason string) {
	cutoff := now.Add(-d.cfg.RateWindow)
	kept := w.Messages[:0]
	for _, ts := range w.Messages {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.Messages = append(kept, now)

	if len(w.Messages) > d.cfg.RateMaxMessages {
		return true, "Rate limit exceeded (too many messages)"
	}
	return false, ""
}

// CheckDuplicate fingerprints the message and triggers when enough identical
// fingerprints already sit inside the duplicate window.
func (d *Detector) CheckDuplicate(w *state.ActivityWindow, content string, now time.Time) (triggered bool, reason string) {
	fp := normalize.Fingerprint(content)
	if fp == "" {
		return false, ""
	}

	cutoff := now.Add(-d.cfg.DuplicateWindow)
	kept := w.Recent[:0]
	matches := 0
	for _, prev := range w.Recent {
		if !prev.At.After(cutoff) {
			continue
		}
		kept = append(kept, prev)
		if prev.Content == fp {
			matches++
		}
	}
	w.Recent = append(kept, state.Fingerprint{Content: fp, At: now})

	// The current message is the Nth occurrence when N-1 priors match.
	if matches >= d.cfg.DuplicateMax-1 {
		return true, "Duplicate message spam"
	}
	return false, ""
}

// CheckMentions triggers on @everyone/@here from non-allowed users, on the
// combined user plus role mention total, and on role mentions alone.
func (d *Detector) CheckMentions(msg Message) (triggered bool, reason string) {
	if msg.MentionsEveryone {
		if _, ok := d.allowedGlobal[msg.AuthorID]; !ok {
			return true, "Mention spam: unauthorized @everyone/@here"
		}
	}
	if total := msg.UserMentions + msg.RoleMentions; total > d.cfg.MaxMentions {
		return true, fmt.Sprintf("Mention spam: too many user/role mentions (%d)", total)
	}
	if msg.RoleMentions > d.cfg.MaxRoleMentions {
		return true, fmt.Sprintf("Mention spam: too many role mentions (%d)", msg.RoleMentions)
	}
	return false, ""
}

// CheckLinks counts non-GIF links inside a fixed window that resets once
// elapsed, and triggers when the count exceeds the cap.
func (d *Detector) CheckLinks(w *state.ActivityWindow, content string, now time.Time) (triggered bool, reason string) {
	links := urlPattern.FindAllString(content, -1)
	counted := 0
	for _, link := range links {
		if !isGifLink(link) {
			counted++
		}
	}
	if counted == 0 {
		return false, ""
	}

	if now.Sub(w.LinkWindowStart) > d.cfg.LinkWindow {
		w.LinkWindowStart = now
		w.LinkCount = 0
	}
	w.LinkCount += counted

	if w.LinkCount > d.cfg.MaxLinks {
		return true, "Link spam (too many links)"
	}
	return false, ""
}

// CheckInvites triggers on Discord invite links whose code is not on the
// allow list.
func (d *Detector) CheckInvites(content string) (triggered bool, reason string) {
	invites := invitePattern.FindAllString(content, -1)
	if len(invites) == 0 {
		return false, ""
	}

	var blocked []string
	for _, inv := range invites {
		if !d.inviteAllowed(inv) {
			blocked = append(blocked, inv)
		}
	}
	if len(blocked) > 0 {
		return true, "Unauthorized Discord invite: " + strings.Join(blocked, ", ")
	}
	return false, ""
}

func (d *Detector) inviteAllowed(invite string) bool {
	invite = strings.ToLower(invite)
	for _, allowed := range d.allowedInvites {
		if strings.Contains(invite, allowed) {
			return true
		}
	}
	return false
}

// CheckEmojis triggers when custom plus unicode emojis together exceed the
// cap.
func (d *Detector) CheckEmojis(content string) (triggered bool, reason string) {
	count := len(customEmojiPattern.FindAllString(content, -1))
	stripped := customEmojiPattern.ReplaceAllString(content, "")
	for _, r := range stripped {
		if isEmojiRune(r) {
			count++
		}
	}

	if count > d.cfg.MaxEmojis {
		return true, "Emoji spam (excessive emojis)"
	}
	return false, ""
}

// CheckCaps triggers when a long-enough message is mostly uppercase. The
// check is disabled by default since many communities shout in good faith.
func (d *Detector) CheckCaps(content string) (triggered bool, reason string) {
	if !d.cfg.CapsEnabled {
		return false, ""
	}

	letters, upper := 0, 0
	for _, r := range normalize.StripMarks(content) {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}

	if letters < d.cfg.CapsMinLetters {
		return false, ""
	}
	if float64(upper)/float64(letters) >= d.cfg.CapsPercentage {
		return true, "Caps spam (excessive capitals)"
	}
	return false, ""
}

// CheckStretched triggers when compressing repeated runs shrinks the message
// dramatically, catching "aaaaaaaaaa"-style stretching.
func (d *Detector) CheckStretched(content string) (triggered bool, reason string) {
	normalized := normalize.ForSpam(content)
	if len([]rune(normalized)) < d.cfg.StretchMinLength {
		return false, ""
	}

	compressed := normalize.CompressRepeats(normalized)
	ratio := float64(len([]rune(compressed))) / float64(len([]rune(normalized)))
	if ratio <= d.cfg.StretchRatio {
		return true, "Stretched characters/letters"
	}
	return false, ""
}

// isGifLink reports whether the link points at a known GIF host (or one of
// its subdomains) or directly at a .gif file.
func isGifLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for gifHost := range gifHosts {
		if host == gifHost || strings.HasSuffix(host, "."+gifHost) {
			return true
		}
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".gif")
}

// isEmojiRune covers the common unicode emoji blocks.
func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F9FF: // pictographs, emoticons, transport, supplemental
		return true
	case r >= 0x2600 && r <= 0x26FF: // miscellaneous symbols
		return true
	case r >= 0x2700 && r <= 0x27BF: // dingbats
		return true
	}
	return false
}
