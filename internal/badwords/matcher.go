// Package badwords builds an obfuscation-resistant index over a word corpus
// and classifies message text against it. Single tokens match whole tokens
// only; multi-word phrases match at whitespace boundaries only.
package badwords

import (
	"regexp"
	"strings"

	"github.com/wardenbot/warden/internal/normalize"
)

var (
	urlPattern      = regexp.MustCompile(`(?i)https?://\S+`)
	invitePattern   = regexp.MustCompile(`(?i)discord\.gg/\S+`)
	wwwPattern      = regexp.MustCompile(`(?i)www\.\S+`)
	tokenPattern    = regexp.MustCompile(`[a-z0-9]+`)
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)
)

// phrasePattern pairs a boundary-anchored pattern with the original corpus
// entry it was built from.
type phrasePattern struct {
	re       *regexp.Regexp
	original string
}

// Matcher holds the immutable badword index built once at startup.
type Matcher struct {
	tokens  map[string]string // normalized token -> original corpus entry
	phrases []phrasePattern
}

// NewMatcher builds the index from a merged, de-duplicated corpus. Entries
// containing whitespace become phrase patterns; everything else becomes an
// exact-token lookup. Entries that normalize to nothing are skipped.
func NewMatcher(words []string) *Matcher {
	m := &Matcher{tokens: make(map[string]string, len(words))}

	seen := make(map[string]struct{}, len(words))
	for _, entry := range words {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}

		if strings.ContainsAny(trimmed, " \t") {
			normalized := normalize.ForBadwords(trimmed)
			if normalized == "" {
				continue
			}
			m.phrases = append(m.phrases, phrasePattern{
				re:       regexp.MustCompile(`(^|\s)` + regexp.QuoteMeta(normalized) + `(\s|$)`),
				original: trimmed,
			})
			continue
		}

		normalized := normalizeToken(trimmed)
		if normalized == "" {
			continue
		}
		if _, exists := m.tokens[normalized]; !exists {
			m.tokens[normalized] = trimmed
		}
	}

	return m
}

// Size reports how many corpus entries the index holds.
func (m *Matcher) Size() int {
	return len(m.tokens) + len(m.phrases)
}

// Contains reports whether text holds at least one restricted term.
func (m *Matcher) Contains(text string) bool {
	if text == "" {
		return false
	}

	for _, token := range m.tokenize(text) {
		if _, ok := m.tokens[token]; ok {
			return true
		}
	}

	phraseText := normalize.ForBadwords(stripURLs(text))
	for _, p := range m.phrases {
		if p.re.MatchString(phraseText) {
			return true
		}
	}

	return false
}

// Find returns the distinct original corpus entries that matched, in order of
// first occurrence (tokens first, then phrases in index order).
func (m *Matcher) Find(text string) []string {
	if text == "" {
		return nil
	}

	var matched []string
	added := make(map[string]struct{})

	for _, token := range m.tokenize(text) {
		original, ok := m.tokens[token]
		if !ok {
			continue
		}
		if _, dup := added[original]; dup {
			continue
		}
		added[original] = struct{}{}
		matched = append(matched, original)
	}

	phraseText := normalize.ForBadwords(stripURLs(text))
	for _, p := range m.phrases {
		if !p.re.MatchString(phraseText) {
			continue
		}
		if _, dup := added[p.original]; dup {
			continue
		}
		added[p.original] = struct{}{}
		matched = append(matched, p.original)
	}

	return matched
}

// tokenize splits text into normalized alphanumeric tokens after URL removal.
// The token form matches normalizeToken so lookups stay consistent.
func (m *Matcher) tokenize(text string) []string {
	return tokenPattern.FindAllString(normalize.ForBadwords(stripURLs(text)), -1)
}

// normalizeToken reduces a corpus word to the form used for exact lookup:
// lowercase, accent-free, alphanumeric runes only.
func normalizeToken(word string) string {
	return nonAlphanumeric.ReplaceAllString(normalize.StripDiacritics(word), "")
}

// stripURLs blanks out links before matching so domain names cannot produce
// false positives.
func stripURLs(text string) string {
	text = urlPattern.ReplaceAllString(text, " ")
	text = invitePattern.ReplaceAllString(text, " ")
	return wwwPattern.ReplaceAllString(text, " ")
}
