package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/tailscale/hujson"
	"go.uber.org/zap"
)

// WordlistEntry is a single term in the structured word list. Phrases are
// allowed; related terms are indexed alongside the primary term.
type WordlistEntry struct {
	// Primary term.
	Term string `json:"term"`
	// Related terms, variations, abbreviations.
	RelatedTerms []string `json:"relatedTerms,omitempty"`
}

// Wordlist is the structured word list file.
type Wordlist struct {
	Words []WordlistEntry `json:"words"`
}

// LoadWordCorpus merges the structured JSONC list and the plain text list
// into one corpus. Loading fails open: an unreadable or malformed source is
// logged and skipped, so a broken file can never block startup. The matcher
// works with whatever subset loaded.
func LoadWordCorpus(cfg Badwords, logger *zap.Logger) []string {
	var corpus []string

	structured, err := loadStructuredList(cfg.WordlistPath)
	if err != nil {
		logger.Warn("Failed to load structured word list",
			zap.String("path", cfg.WordlistPath),
			zap.Error(err))
	}
	corpus = append(corpus, structured...)

	plain, err := loadPlainList(cfg.PlainListPath)
	if err != nil {
		logger.Warn("Failed to load plain word list",
			zap.String("path", cfg.PlainListPath),
			zap.Error(err))
	}
	corpus = append(corpus, plain...)

	logger.Info("Loaded word corpus",
		zap.Int("structured", len(structured)),
		zap.Int("plain", len(plain)))
	return corpus
}

// loadStructuredList parses the JSONC word list and flattens every entry's
// primary and related terms.
func loadStructuredList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wordlist file: %w", err)
	}

	standardJSON, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to standardize JSONC: %w", err)
	}

	var wordlist Wordlist
	if err := sonic.Unmarshal(standardJSON, &wordlist); err != nil {
		return nil, fmt.Errorf("failed to parse wordlist JSON: %w", err)
	}

	var terms []string
	for _, entry := range wordlist.Words {
		if term := strings.TrimSpace(entry.Term); term != "" {
			terms = append(terms, term)
		}
		for _, related := range entry.RelatedTerms {
			if related = strings.TrimSpace(related); related != "" {
				terms = append(terms, related)
			}
		}
	}
	return terms, nil
}

// loadPlainList reads a one-term-per-line text file. Blank lines and
// #-prefixed comment lines are skipped.
func loadPlainList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plain list file: %w", err)
	}

	var terms []string
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	return terms, nil
}
