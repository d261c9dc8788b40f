package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidInput(t *testing.T) {
	testCases := []struct {
		input    string
		expected bool
	}{
		{"kathmandu", true},
		{"Covid19-Testing Labs", true},
		{" District Level Hospital", true},
		{"44", true},
		{"", false},
		{"   ", false},
		{"---", false},
		{"aaaa", false},
		{"aa", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsValidInput(tc.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd...", Truncate("abcdefghij", 7))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "नेपाल", Truncate("नेपाल", 5))
}
