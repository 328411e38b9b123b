package store

import (
	"regexp"
	"strings"
)

// tokenRegex matches runs of Unicode letters and digits. Punctuation and
// whitespace act as separators; hyphenated words split into their parts.
var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize splits text into lowercase word tokens. This is the single
// tokenization contract shared by the chunker and the keyword index, so a
// chunk's token count and its indexed terms always agree.
func Tokenize(text string) []string {
	words := tokenRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, strings.ToLower(w))
	}
	return tokens
}

// CountTokens returns the number of tokens in text without materializing them.
func CountTokens(text string) int {
	return len(tokenRegex.FindAllStringIndex(text, -1))
}

// TokenSpans returns the [start, end) byte offsets of every token in text.
// The chunker uses these to cut chunks on token boundaries while preserving
// the original text between them.
func TokenSpans(text string) [][]int {
	return tokenRegex.FindAllStringIndex(text, -1)
}
