// Package transcript tidies recognized speech before it enters the
// conversation history.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	pronounIPattern = regexp.MustCompile(`\bi(?:['’](?:m|d|ll|ve|re|s))?\b`)

	// Tokens whose trailing period does not end a sentence.
	nonTerminalAbbreviations = map[string]struct{}{
		"dr":     {},
		"mr":     {},
		"mrs":    {},
		"ms":     {},
		"prof":   {},
		"jr":     {},
		"sr":     {},
		"st":     {},
		"e.g":    {},
		"i.e":    {},
		"vs":     {},
		"etc":    {},
		"approx": {},
	}
)

// Options controls which rewrites Normalize applies.
type Options struct {
	CapitalizeSentences bool
}

// Normalize collapses whitespace and, when enabled, capitalizes sentence
// starts and the standalone pronoun "i".
func Normalize(text string, opts Options) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" || !opts.CapitalizeSentences {
		return normalized
	}
	normalized = capitalizeSentenceStarts(normalized)
	return pronounIPattern.ReplaceAllStringFunc(normalized, func(match string) string {
		return "I" + match[1:]
	})
}

func capitalizeSentenceStarts(text string) string {
	runes := []rune(text)
	capitalize := true
	for i, r := range runes {
		switch {
		case capitalize && unicode.IsLetter(r):
			runes[i] = unicode.ToUpper(r)
			capitalize = false
		case capitalize && unicode.IsDigit(r):
			capitalize = false
		case r == '!' || r == '?':
			capitalize = true
		case r == '.':
			capitalize = endsSentence(runes, i)
		}
	}
	return string(runes)
}

// endsSentence reports whether the period at idx is followed by whitespace
// and does not close a known abbreviation.
func endsSentence(runes []rune, idx int) bool {
	if idx+1 < len(runes) && !unicode.IsSpace(runes[idx+1]) {
		return false
	}
	start := idx
	for start > 0 && (unicode.IsLetter(runes[start-1]) || runes[start-1] == '.') {
		start--
	}
	token := strings.ToLower(string(runes[start:idx]))
	_, abbreviation := nonTerminalAbbreviations[token]
	return !abbreviation
}
