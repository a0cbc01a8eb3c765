// Package moderation masks configured words in chat text.
package moderation

import (
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher  *goahocorasick.Machine
	maskChar rune
}

// NewModerator builds the Aho-Corasick automaton over the lowercased
// word list. An empty list yields a no-op moderator.
func NewModerator(censoredWords []string, maskChar rune) (Moderator, error) {
	words := make([][]rune, 0, len(censoredWords))
	for _, w := range censoredWords {
		w = strings.TrimSpace(strings.ToLower(w))
		if w != "" {
			words = append(words, []rune(w))
		}
	}
	if len(words) == 0 {
		return Moderator{maskChar: maskChar}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(words); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, maskChar: maskChar}, nil
}

// Censor replaces every occurrence of a censored word with the mask
// character, case-insensitively, preserving the rest of the text.
func (m Moderator) Censor(original string) string {
	if m.matcher == nil || original == "" {
		return original
	}

	runes := []rune(original)
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}

	spans := m.matcher.MultiPatternSearch(lowered, false)
	if len(spans) == 0 {
		return original
	}

	for _, span := range spans {
		end := span.Pos + len(span.Word)
		if span.Pos < 0 || end > len(runes) {
			continue
		}
		for i := span.Pos; i < end; i++ {
			runes[i] = m.maskChar
		}
	}
	return string(runes)
}
