// Package normalize canonicalizes raw message text into the comparable forms
// used by the badword matcher and the spam detectors. Normalization is a pure
// function of its input and never mutates caller state.
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// zeroWidth holds the zero-width characters commonly used to obfuscate text.
var zeroWidth = runes.In(&unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200B, Hi: 0x200D, Stride: 1}, // zero-width space, non-joiner, joiner
		{Lo: 0xFEFF, Hi: 0xFEFF, Stride: 1}, // zero-width no-break space
	},
})

// symbolSet is the punctuation/symbol class that gets folded into a single
// space so symbol-separated obfuscation ("b.a.d") collapses into tokens.
const symbolSet = "-_. ,/\\+~=`'\"()[]{}<>^%$#@!?;:|"

// chainPool hands out fresh transformer chains. transform.Transformer values
// are stateful, so a shared instance is not safe for concurrent use.
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFD,                           // decompose so marks become standalone runes
			runes.Remove(runes.In(unicode.Mn)), // strip diacritical marks
			runes.Remove(zeroWidth),            // strip zero-width obfuscation
			norm.NFC,
		)
	},
}

// StripMarks removes diacritical marks and zero-width characters while
// preserving case. Invalid UTF-8 bytes are dropped rather than propagated.
func StripMarks(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	if err != nil {
		return s
	}
	return out
}

// StripDiacritics lowercases s and removes diacritical marks and zero-width
// characters.
func StripDiacritics(s string) string {
	return StripMarks(strings.ToLower(s))
}

// Symbols replaces the obfuscation symbol class with spaces, removes
// asterisks entirely (so "p**n" folds to "pn" rather than "p n"), collapses
// consecutive whitespace and trims.
func Symbols(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	inSpace := false
	for _, r := range s {
		switch {
		case r == '*' || r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\uFEFF':
			// dropped outright
		case r == ' ' || unicode.IsSpace(r) || strings.ContainsRune(symbolSet, r):
			inSpace = true
		default:
			if inSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			inSpace = false
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Leet folds common leetspeak substitutions back to letters. Only the spam
// pipeline applies this; folding before badword lookup would collide distinct
// dictionary words.
func Leet(s string) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch r {
		case '0':
			b.WriteRune('o')
		case '1', 'l', '!', '|':
			b.WriteRune('i')
		case '3', '?':
			b.WriteRune('e')
		case '4', '@':
			b.WriteRune('a')
		case '5', '$':
			b.WriteRune('s')
		case '7':
			b.WriteRune('t')
		case '8':
			b.WriteRune('b')
		case '9':
			b.WriteRune('g')
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// CompressRepeats shortens any run of 3 or more identical runes down to
// exactly 2, so "heeeeello" becomes "heello".
func CompressRepeats(s string) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run <= 2 {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// ForSpam runs the full spam-detection pipeline: lowercase, diacritic and
// zero-width stripping, symbol folding, then leetspeak folding.
func ForSpam(s string) string {
	return strings.TrimSpace(Leet(Symbols(StripDiacritics(s))))
}

// ForBadwords runs the badword pipeline, which deliberately skips leetspeak
// folding to avoid false positives between distinct words.
func ForBadwords(s string) string {
	return Symbols(StripDiacritics(s))
}

// Fingerprint produces the duplicate-detection form of a message: the spam
// pipeline output with stretched runs compressed.
func Fingerprint(s string) string {
	return CompressRepeats(ForSpam(s))
}
