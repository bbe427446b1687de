package utils

import (
	"strings"
	"unicode/utf8"
)

// Token counts are estimates at about four characters per token. They feed
// cost estimates and prompt caps, not billing.
const charsPerToken = 4

// CountTokens estimates the number of tokens in text, rounding up.
func CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// TruncateToTokenLimit cuts text to roughly limit tokens. When a newline falls
// in the last quarter of the kept text the cut moves back to it, so structured
// text (JSON, tables) loses whole lines.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	max := limit * charsPerToken
	if max >= len(runes) {
		return text
	}
	kept := string(runes[:max])
	if i := strings.LastIndexByte(kept, '\n'); i >= len(kept)*3/4 {
		return kept[:i]
	}
	return kept
}

// Section is one labeled part of a prompt.
type Section struct {
	Name   string
	Text   string
	Tokens int
}

// TokenBreakdown fills in Tokens for every section and returns the total.
func TokenBreakdown(sections []Section) int {
	total := 0
	for i := range sections {
		sections[i].Tokens = CountTokens(sections[i].Text)
		total += sections[i].Tokens
	}
	return total
}
