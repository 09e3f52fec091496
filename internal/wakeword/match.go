package wakeword

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Matcher compares transcripts against wake phrases.
type Matcher struct {
	phrases   []string
	threshold float64
}

// NewMatcher lowercases and trims phrases, dropping empty ones
func NewMatcher(phrases []string, threshold float64) *Matcher {
	m := &Matcher{threshold: threshold}
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			m.phrases = append(m.phrases, p)
		}
	}
	return m
}

// Phrases returns the normalized phrases
func (m *Matcher) Phrases() []string { return m.phrases }

// Match reports whether text contains a phrase, or is close enough to one.
// The whole text and each of its lines are tried.
func (m *Matcher) Match(text string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return "", false
	}

	candidates := []string{normalized}
	for line := range strings.Lines(normalized) {
		if line = strings.TrimSpace(line); line != "" {
			candidates = append(candidates, line)
		}
	}

	for _, c := range candidates {
		for _, p := range m.phrases {
			if strings.Contains(c, p) || Similarity(c, p) >= m.threshold {
				return p, true
			}
		}
	}
	return "", false
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)), over runes.
func Similarity(a, b string) float64 {
	n := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if n == 0 {
		return 1
	}
	return 1 - float64(matchr.Levenshtein(a, b))/float64(n)
}
