package search

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Query validation errors, shared by every transport.
var (
	ErrEmptyQuery    = errors.New("missing 'q' parameter")
	ErrQueryTooShort = errors.New("query too short")
	ErrQueryTooLong  = errors.New("query too long")
)

// ValidateQuery checks the rune length of a raw query against the
// transport limits.
func ValidateQuery(query string, minLen, maxLen int) error {
	if query == "" {
		return ErrEmptyQuery
	}
	n := utf8.RuneCountInString(query)
	if n < minLen {
		return fmt.Errorf("%w: must be at least %d characters", ErrQueryTooShort, minLen)
	}
	if n > maxLen {
		return fmt.Errorf("%w: exceeds maximum length of %d characters", ErrQueryTooLong, maxLen)
	}
	return nil
}
