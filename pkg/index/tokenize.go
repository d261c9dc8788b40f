package index

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Tokenize splits s on whitespace and case-folds each token.
// Duplicate tokens are dropped while keeping first-seen order.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	if len(fields) == 0 {
		return nil
	}

	folder := cases.Fold()
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := folder.String(f)
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}
