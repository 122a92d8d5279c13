package analyzer

import (
	"strings"
	"unicode/utf8"
)

// Tokenizer splits queries into lexical search terms.
// Terms are whitespace-separated, lowercased, and must be longer than
// minLen-1 characters; short words act as a light stopword filter.
type Tokenizer struct {
	minLen int
}

// NewTokenizer creates a new Tokenizer. minLen <= 0 keeps every term.
func NewTokenizer(minLen int) *Tokenizer {
	return &Tokenizer{minLen: minLen}
}

// Tokenize splits text into search terms. Punctuation stays attached to
// the term, matching how the terms are later counted as raw substrings.
func (t *Tokenizer) Tokenize(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		if utf8.RuneCountInString(word) < t.minLen {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// CountOccurrences returns the number of non-overlapping occurrences of
// term inside text, ignoring case. Matches inside longer words count.
func (t *Tokenizer) CountOccurrences(text, term string) int {
	if term == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), strings.ToLower(term))
}
