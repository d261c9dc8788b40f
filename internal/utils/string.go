package utils

import (
	"strings"
	"unicode"
)

// HasSearchableRunes reports whether s carries at least one letter or digit.
func HasSearchableRunes(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// IsRepetitive checks if a string consists of a single repeated character,
// e.g. "aaa" or "....".
func IsRepetitive(s string) bool {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= 2 {
		return false
	}
	for _, r := range runes[1:] {
		if r != runes[0] {
			return false
		}
	}
	return true
}

// IsValidInput checks if a query is worth sending to the indexes.
// Blank queries, punctuation-only queries and keyboard mashing are rejected.
func IsValidInput(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	if !HasSearchableRunes(s) {
		return false
	}
	return !IsRepetitive(s)
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
