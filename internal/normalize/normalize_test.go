package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wardenbot/warden/internal/normalize"
)

func TestStripDiacritics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "plain ascii lowered", input: "Hello World", expected: "hello world"},
		{name: "accents removed", input: "héllo wörld", expected: "hello world"},
		{name: "uppercase accents", input: "CAFÉ", expected: "cafe"},
		{name: "zero width stripped", input: "ba\u200Bd", expected: "bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, normalize.StripDiacritics(tt.input))
		})
	}
}

func TestSymbols(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "symbols to spaces", input: "b.a.d", expected: "b a d"},
		{name: "asterisks removed", input: "p**n", expected: "pn"},
		{name: "collapse whitespace", input: "a   b\t c", expected: "a b c"},
		{name: "trimmed", input: "  hello  ", expected: "hello"},
		{name: "non breaking space", input: "a\u00A0b", expected: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, normalize.Symbols(tt.input))
		})
	}
}

func TestLeet(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "soiaet", normalize.Leet("501437"))
	assert.Equal(t, "big", normalize.Leet("819"))
	assert.Equal(t, "hiii", normalize.Leet("h1l|"))
}

func TestCompressRepeats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "no repeats", input: "hello", expected: "hello"},
		{name: "long run", input: "heeeeello", expected: "heello"},
		{name: "multiple runs", input: "aaabbbccc", expected: "aabbcc"},
		{name: "exactly two kept", input: "aabb", expected: "aabb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, normalize.CompressRepeats(tt.input))
		})
	}
}

func TestForSpamFoldsLeet(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "spam", normalize.ForSpam("5P4M"))
	assert.Equal(t, "free stuff", normalize.ForSpam("FR33   STUFF"))
}

func TestForBadwordsSkipsLeet(t *testing.T) {
	t.Parallel()

	// Digits survive the badword pipeline so "1337" cannot collide with "ieet".
	assert.Equal(t, "1337 word", normalize.ForBadwords("1337-wörd"))
}

func TestFingerprintDeterministic(t *testing.T) {
	t.Parallel()

	input := "FFuuuucckk 5paaaam héllo"
	first := normalize.Fingerprint(input)
	for range 10 {
		assert.Equal(t, first, normalize.Fingerprint(input))
	}
}
