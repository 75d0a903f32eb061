package badwords_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wardenbot/warden/internal/badwords"
)

func newTestMatcher() *badwords.Matcher {
	return badwords.NewMatcher([]string{"spam", "grift", "bad phrase", "Mörk"})
}

func TestContainsWholeTokenOnly(t *testing.T) {
	t.Parallel()
	m := newTestMatcher()

	// Substring inside a longer benign word must not match.
	assert.False(t, m.Contains("this is not spammy"))
	assert.True(t, m.Contains("this is SPAM now"))
}

func TestPhraseBoundaryAnchoring(t *testing.T) {
	t.Parallel()
	m := newTestMatcher()

	assert.True(t, m.Contains("this is a bad phrase here"))
	assert.False(t, m.Contains("this is a badphrase here"))
	assert.True(t, m.Contains("bad phrase"))
	assert.True(t, m.Contains("ends with a bad phrase"))
}

func TestAccentAndObfuscationInsensitive(t *testing.T) {
	t.Parallel()
	m := newTestMatcher()

	assert.True(t, m.Contains("spæm? no, just spám"))
	assert.True(t, m.Contains("sp**am"), "asterisk obfuscation folds away")
	assert.True(t, m.Contains("some mörk here"))
	assert.True(t, m.Contains("plain mork too"))
}

func TestURLsDoNotMatch(t *testing.T) {
	t.Parallel()
	m := newTestMatcher()

	assert.False(t, m.Contains("see https://spam.example.com/page"))
	assert.False(t, m.Contains("visit www.spam.net"))
	assert.True(t, m.Contains("spam https://ok.example.com"))
}

func TestFindReturnsOriginalEntries(t *testing.T) {
	t.Parallel()
	m := newTestMatcher()

	found := m.Find("grift and SPAM and more grift with a bad phrase")
	assert.Equal(t, []string{"grift", "spam", "bad phrase"}, found)
}

func TestFindDeduplicates(t *testing.T) {
	t.Parallel()
	m := newTestMatcher()

	found := m.Find("spam spam spam")
	assert.Equal(t, []string{"spam"}, found)
}

func TestEmptyAndCleanText(t *testing.T) {
	t.Parallel()
	m := newTestMatcher()

	assert.False(t, m.Contains(""))
	assert.Empty(t, m.Find(""))
	assert.Empty(t, m.Find("a perfectly fine message"))
}

func TestCorpusDeduplication(t *testing.T) {
	t.Parallel()

	m := badwords.NewMatcher([]string{"spam", "spam", " spam ", "", "bad phrase", "bad phrase"})
	assert.Equal(t, 2, m.Size())
}
