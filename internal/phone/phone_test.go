package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {

	testCases := []struct {
		input    string
		expected string
	}{
		{"0712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"0712 345 678", "254712345678"},
		{"0712-345-678", "254712345678"},
		{"(071) 234-5678", "254712345678"},
		// unrecognized shapes pass through cleaned of non-digits
		{"1234567", "1234567"},
		{"44712345678", "44712345678"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, Normalize(tc.input))
		})
	}
}

func TestValid(t *testing.T) {

	testCases := []struct {
		number string
		result bool
	}{
		{"254712345678", true},
		{"254112345678", true},
		{"0712345678", false},
		{"25471234567", false},
		{"2547123456789", false},
		{"1234567", false},
		{"254712345abc", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.number, func(t *testing.T) {
			assert.Equal(t, tc.result, Valid(tc.number))
		})
	}
}
